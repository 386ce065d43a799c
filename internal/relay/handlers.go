package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/scrubmark/scrubmark/internal/annotate"
	"github.com/scrubmark/scrubmark/internal/glob"
	"github.com/scrubmark/scrubmark/internal/store"
	"github.com/scrubmark/scrubmark/internal/websocket"
)

type annotateRequest struct {
	Event annotate.Value     `json:"event"`
	Meta  *annotate.MetaNode `json:"meta"`
}

type annotateResponse struct {
	Meta *annotate.MetaNode `json:"meta"`
}

type chunksRequest struct {
	Text    string            `json:"text"`
	Remarks []annotate.Remark `json:"remarks"`
}

type chunksResponse struct {
	Chunks []annotate.Chunk `json:"chunks"`
}

type globRequest struct {
	Subject string `json:"subject"`
	Pattern string `json:"pattern"`
	Options struct {
		CaseInsensitive bool `json:"case_insensitive"`
		DoubleStar      bool `json:"double_star"`
		PathNormalize   bool `json:"path_normalize"`
		AllowNewline    bool `json:"allow_newline"`
	} `json:"options"`
}

type globResponse struct {
	Match bool `json:"match"`
}

// handleAnnotate merges a meta tree against its event and returns the
// enriched meta tree with chunk lists attached to annotated strings.
func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)
	start := time.Now()

	body, err := s.readBody(w, r)
	if err != nil {
		return
	}

	// Equal bodies produce byte-equal results, so the cache can serve
	// the response verbatim.
	if s.cache != nil {
		if cached, _ := s.cache.Get(r.Context(), body); cached != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.Write(cached)

			s.recordAnnotation(requestID, getClientIP(r), nil, int64(len(body)), true, time.Since(start))
			return
		}
	}

	var req annotateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body", err)
		return
	}

	merged, err := annotate.Merge(req.Event, req.Meta, annotate.MergeOptions{
		MaxDepth: s.config.Annotate.MaxDepth,
	})
	if err != nil {
		// Contract violations between the scrub engine and this service,
		// not malformed JSON.
		if errors.Is(err, annotate.ErrDepthExceeded) {
			s.writeError(w, http.StatusUnprocessableEntity, "maximum tree depth exceeded", err)
			return
		}
		s.writeError(w, http.StatusUnprocessableEntity, "merge failed", err)
		return
	}

	respBody, err := json.Marshal(annotateResponse{Meta: merged})
	if err != nil {
		log.Error("Failed to marshal merge result", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), body, respBody); err != nil {
			log.Warn("Failed to cache merge result", zap.Error(err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.Write(respBody)

	s.recordAnnotation(requestID, getClientIP(r), merged, int64(len(body)), false, time.Since(start))
}

// handleChunks splits a single string by its remark ranges
func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		return
	}

	var req chunksRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body", err)
		return
	}

	chunks := annotate.SplitChunks(req.Text, req.Remarks)
	s.writeJSON(w, chunksResponse{Chunks: chunks})
}

// handleGlob evaluates one glob pattern against one subject
func (s *Server) handleGlob(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		return
	}

	var req globRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body", err)
		return
	}

	matched, err := glob.Match(req.Subject, req.Pattern, glob.Options{
		CaseInsensitive: req.Options.CaseInsensitive,
		DoubleStar:      req.Options.DoubleStar,
		PathNormalize:   req.Options.PathNormalize,
		AllowNewline:    req.Options.AllowNewline,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid pattern", err)
		return
	}

	s.writeJSON(w, globResponse{Match: matched})
}

// handlePlatforms returns the set of recognized platform identifiers
func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string][]string{"platforms": annotate.KnownPlatforms()})
}

// handleAuditRecent returns the most recent audit records
func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "audit store disabled", nil)
		return
	}

	records, err := s.store.Recent(r.Context(), 50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to query audit records", err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"records": records})
}

// handleAuditStats returns aggregate audit statistics
func (s *Server) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusServiceUnavailable, "audit store disabled", nil)
		return
	}

	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to query audit stats", err)
		return
	}
	s.writeJSON(w, stats)
}

// readBody reads a size-limited request body, writing the error response itself
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Annotate.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", err)
		} else {
			s.writeError(w, http.StatusBadRequest, "failed to read request body", err)
		}
		return nil, err
	}
	return body, nil
}

// recordAnnotation broadcasts a dashboard event and persists an audit row
func (s *Server) recordAnnotation(requestID, clientIP string, merged *annotate.MetaNode, bodyBytes int64, cacheHit bool, duration time.Duration) {
	remarkCount, chunkCount, ruleHits := summarize(merged)

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeAnnotation,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.AnnotationEvent{
			RequestID:    requestID,
			ClientIP:     clientIP,
			RuleHits:     ruleHits,
			RemarkCount:  remarkCount,
			ChunkCount:   chunkCount,
			CacheHit:     cacheHit,
			ProcessingMS: float64(duration.Nanoseconds()) / 1e6,
		},
	})

	if s.store == nil {
		return
	}

	ruleIDs := make([]string, 0, len(ruleHits))
	for id := range ruleHits {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)

	record := &store.AuditRecord{
		RequestID:   requestID,
		ClientIP:    clientIP,
		RemarkCount: remarkCount,
		ChunkCount:  chunkCount,
		RuleIDs:     pq.StringArray(ruleIDs),
		BodyBytes:   bodyBytes,
		CacheHit:    cacheHit,
		DurationMS:  float64(duration.Nanoseconds()) / 1e6,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.Insert(ctx, record); err != nil {
			s.logger.Warn("Failed to persist audit record", zap.Error(err))
		}
	}()
}

// summarize walks a merged meta tree and counts remarks, chunks and rule hits
func summarize(node *annotate.MetaNode) (remarks, chunks int, ruleHits map[string]int) {
	ruleHits = make(map[string]int)
	var walk func(n *annotate.MetaNode)
	walk = func(n *annotate.MetaNode) {
		if n == nil {
			return
		}
		if n.Annotation != nil {
			remarks += len(n.Annotation.Remarks)
			chunks += len(n.Annotation.Chunks)
			for _, rem := range n.Annotation.Remarks {
				ruleHits[rem.RuleID]++
			}
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(node)
	return remarks, chunks, ruleHits
}

// writeJSON writes a JSON response body
func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.logger.Debug("Request failed",
			zap.Int("status", status),
			zap.String("message", message),
			zap.Error(err),
		)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
