package relay

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/scrubmark/scrubmark/internal/annotate"
	"github.com/scrubmark/scrubmark/internal/config"
	"github.com/scrubmark/scrubmark/internal/logger"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()

	cfg := config.GetDefaults()
	cfg.Cache.Enabled = false
	cfg.Store.Enabled = false
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	log := &logger.Logger{Logger: zap.NewNop()}
	server, err := New(cfg, log)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return server
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// TestAnnotateEndpoint tests the meta merge endpoint
func TestAnnotateEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("ChunksAttached", func(t *testing.T) {
		body := `{
			"event": {"message": "hello bob"},
			"meta": {"message": {"": {"rem": [["@name", "s", 6, 9]], "len": 9}}}
		}`
		rec := doJSON(t, s, "POST", "/api/v1/annotate", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d, body = %s", rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("X-Cache"); got != "MISS" {
			t.Errorf("X-Cache = %q, want MISS", got)
		}

		var resp annotateResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		leaf := resp.Meta.Child("message")
		if leaf == nil || leaf.Annotation == nil {
			t.Fatal("Annotated string missing from response")
		}
		chunks := leaf.Annotation.Chunks
		if len(chunks) != 2 {
			t.Fatalf("Chunks = %+v, want 2", chunks)
		}
		if chunks[0].Text != "hello " || chunks[0].Redacted {
			t.Errorf("First chunk = %+v", chunks[0])
		}
		if chunks[1].Text != "bob" || !chunks[1].Redacted {
			t.Errorf("Second chunk = %+v", chunks[1])
		}
	})

	t.Run("NoMetaYieldsEmpty", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/api/v1/annotate", `{"event": {"a": 1}}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d", rec.Code)
		}
		var resp struct {
			Meta json.RawMessage `json:"meta"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if string(resp.Meta) != "null" && string(resp.Meta) != "{}" {
			t.Errorf("Meta = %s, want empty", resp.Meta)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		rec := doJSON(t, s, "POST", "/api/v1/annotate", `{"event": `)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})

	t.Run("NonNumericArrayKey", func(t *testing.T) {
		body := `{
			"event": {"items": ["a"]},
			"meta": {"items": {"x": {"": {"len": 1}}}}
		}`
		rec := doJSON(t, s, "POST", "/api/v1/annotate", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("Status = %d, want 422", rec.Code)
		}
	})

	t.Run("DepthExceeded", func(t *testing.T) {
		deep := newTestServer(t, func(cfg *config.Config) {
			cfg.Annotate.MaxDepth = 2
		})

		body := `{
			"event": {"a": {"b": {"c": {"d": 1}}}},
			"meta": {"a": {"b": {"c": {"d": {"": {"len": 1}}}}}}
		}`
		rec := doJSON(t, deep, "POST", "/api/v1/annotate", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("Status = %d, want 422", rec.Code)
		}
	})

	t.Run("BodyTooLarge", func(t *testing.T) {
		small := newTestServer(t, func(cfg *config.Config) {
			cfg.Annotate.MaxBodyBytes = 16
		})

		body := `{"event": {"message": "` + strings.Repeat("x", 64) + `"}}`
		rec := doJSON(t, small, "POST", "/api/v1/annotate", body)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("Status = %d, want 413", rec.Code)
		}
	})
}

// TestChunksEndpoint tests the standalone chunk splitting endpoint
func TestChunksEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"text": "abcdef", "remarks": [["r1", "x", 0, 2], ["r2", "s", 4, 6]]}`
	rec := doJSON(t, s, "POST", "/api/v1/chunks", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp chunksResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	want := []annotate.Chunk{
		{Text: "ab", RuleIDs: []string{"r1"}, Redacted: true},
		{Text: "cd"},
		{Text: "ef", RuleIDs: []string{"r2"}, Redacted: true},
	}
	if len(resp.Chunks) != len(want) {
		t.Fatalf("Chunks = %+v", resp.Chunks)
	}
	for i := range want {
		if resp.Chunks[i].Text != want[i].Text || resp.Chunks[i].Redacted != want[i].Redacted {
			t.Errorf("Chunk %d = %+v, want %+v", i, resp.Chunks[i], want[i])
		}
	}
}

// TestGlobEndpoint tests the pattern evaluation endpoint
func TestGlobEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	t.Run("Match", func(t *testing.T) {
		body := `{"subject": "foo/bar/baz", "pattern": "foo/**", "options": {"double_star": true}}`
		rec := doJSON(t, s, "POST", "/api/v1/glob", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("Status = %d", rec.Code)
		}
		var resp globResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !resp.Match {
			t.Error("Expected match")
		}
	})

	t.Run("NoMatch", func(t *testing.T) {
		body := `{"subject": "FOO", "pattern": "foo", "options": {}}`
		rec := doJSON(t, s, "POST", "/api/v1/glob", body)
		var resp globResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if resp.Match {
			t.Error("Expected no match")
		}
	})

	t.Run("BadPattern", func(t *testing.T) {
		body := `{"subject": "x", "pattern": "[unterminated", "options": {}}`
		rec := doJSON(t, s, "POST", "/api/v1/glob", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", rec.Code)
		}
	})
}

// TestPlatformsEndpoint tests the platform list endpoint
func TestPlatformsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	rec := doJSON(t, s, "GET", "/api/v1/platforms", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var resp map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	found := false
	for _, p := range resp["platforms"] {
		if p == "go" {
			found = true
		}
	}
	if !found {
		t.Errorf("Platforms = %v, expected go in list", resp["platforms"])
	}
}

// TestAuditEndpointsWithoutStore tests that audit endpoints degrade cleanly
func TestAuditEndpointsWithoutStore(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/api/v1/audit/recent", "/api/v1/audit/stats"} {
		rec := doJSON(t, s, "GET", path, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", path, rec.Code)
		}
	}
}

// TestRateLimit tests per-client request throttling
func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerMin = 60
		cfg.RateLimit.Burst = 1
	})

	first := doJSON(t, s, "GET", "/api/v1/platforms", "")
	if first.Code != http.StatusOK {
		t.Fatalf("First request = %d", first.Code)
	}
	second := doJSON(t, s, "GET", "/api/v1/platforms", "")
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("Second request = %d, want 429", second.Code)
	}
}

// TestHealthEndpoint tests the liveness endpoint
func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest("GET", "/health", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("Body = %s", rec.Body.String())
	}
}
