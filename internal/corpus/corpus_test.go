package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// TestRunnerCSV tests corpus replay from CSV files
func TestRunnerCSV(t *testing.T) {
	csvData := "subject,pattern,flags,expect\n" +
		"foo/bar,foo/*,,1\n" +
		"foo/bar/baz,foo/**,double_star,1\n" +
		"FOO,foo,i,true\n" +
		"foo,bar,,0\n"

	path := writeTempFile(t, "corpus.csv", csvData)
	runner := NewRunner(&Config{}, zap.NewNop())

	result, err := runner.RunFile(context.Background(), path)
	if err != nil {
		t.Fatalf("RunFile failed: %v", err)
	}

	if result.TotalCases != 4 {
		t.Errorf("TotalCases = %d, want 4", result.TotalCases)
	}
	if result.Passed != 4 || result.Failed != 0 {
		t.Errorf("Passed = %d, Failed = %d, mismatches: %+v", result.Passed, result.Failed, result.Mismatches)
	}
}

// TestRunnerJSONLines tests corpus replay from JSON-lines files
func TestRunnerJSONLines(t *testing.T) {
	jsonData := `{"subject": "a\nb", "pattern": "a*b", "flags": "allow_newline", "expect": true}
{"subject": "a\nb", "pattern": "a*b", "flags": "", "expect": false}
{"subject": "cat", "pattern": "c[abc]t", "flags": "", "expect": true}
`

	path := writeTempFile(t, "corpus.jsonl", jsonData)
	runner := NewRunner(&Config{}, zap.NewNop())

	result, err := runner.RunFile(context.Background(), path)
	if err != nil {
		t.Fatalf("RunFile failed: %v", err)
	}

	if result.TotalCases != 3 || result.Passed != 3 {
		t.Errorf("TotalCases = %d, Passed = %d, mismatches: %+v", result.TotalCases, result.Passed, result.Mismatches)
	}
}

// TestRunnerRecordsMismatches tests that disagreements are reported
func TestRunnerRecordsMismatches(t *testing.T) {
	csvData := "subject,pattern,flags,expect\n" +
		"foo,foo,,0\n" +
		"x,[bad,,1\n"

	path := writeTempFile(t, "corpus.csv", csvData)
	runner := NewRunner(&Config{MaxMismatches: 10}, zap.NewNop())

	result, err := runner.RunFile(context.Background(), path)
	if err != nil {
		t.Fatalf("RunFile failed: %v", err)
	}

	if result.Failed != 2 {
		t.Fatalf("Failed = %d, want 2", result.Failed)
	}
	if len(result.Mismatches) != 2 {
		t.Fatalf("Mismatches = %+v", result.Mismatches)
	}
	if result.Mismatches[0].Expect != false || result.Mismatches[0].Got != true {
		t.Errorf("First mismatch = %+v", result.Mismatches[0])
	}
	if result.Mismatches[1].Err == "" {
		t.Errorf("Pattern error not recorded: %+v", result.Mismatches[1])
	}
}

// TestRunnerBadFlags tests unknown flag handling in both modes
func TestRunnerBadFlags(t *testing.T) {
	csvData := "subject,pattern,flags,expect\n" +
		"foo,foo,bogus,1\n"
	path := writeTempFile(t, "corpus.csv", csvData)

	t.Run("FailByDefault", func(t *testing.T) {
		runner := NewRunner(&Config{}, zap.NewNop())
		result, err := runner.RunFile(context.Background(), path)
		if err != nil {
			t.Fatalf("RunFile failed: %v", err)
		}
		if result.Failed != 1 {
			t.Errorf("Failed = %d, want 1", result.Failed)
		}
	})

	t.Run("SkipWhenConfigured", func(t *testing.T) {
		runner := NewRunner(&Config{SkipBadFlags: true}, zap.NewNop())
		result, err := runner.RunFile(context.Background(), path)
		if err != nil {
			t.Fatalf("RunFile failed: %v", err)
		}
		if result.Skipped != 1 || result.Failed != 0 {
			t.Errorf("Skipped = %d, Failed = %d", result.Skipped, result.Failed)
		}
	})
}

// TestDetectFileFormat tests extension-based format detection
func TestDetectFileFormat(t *testing.T) {
	cases := map[string]FileFormat{
		"corpus.csv":     FormatCSV,
		"corpus.parquet": FormatParquet,
		"corpus.json":    FormatJSON,
		"corpus.jsonl":   FormatJSON,
		"corpus.txt":     FormatCSV,
	}
	for name, want := range cases {
		if got := DetectFileFormat(name); got != want {
			t.Errorf("DetectFileFormat(%q) = %s, want %s", name, got, want)
		}
	}
}
