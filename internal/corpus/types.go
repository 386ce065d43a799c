package corpus

import (
	"fmt"
	"strings"
	"time"

	"github.com/scrubmark/scrubmark/internal/glob"
)

// GlobCase represents a single pattern-matching case from a corpus file
type GlobCase struct {
	Subject string `csv:"subject" parquet:"subject" json:"subject"`
	Pattern string `csv:"pattern" parquet:"pattern" json:"pattern"`
	Flags   string `csv:"flags" parquet:"flags" json:"flags"`
	Expect  bool   `csv:"expect" parquet:"expect" json:"expect"`
}

// Options parses the case's flags field into matcher options
func (c *GlobCase) Options() (glob.Options, error) {
	var opts glob.Options
	if c.Flags == "" {
		return opts, nil
	}
	for _, flag := range strings.Split(c.Flags, ",") {
		switch strings.TrimSpace(flag) {
		case "":
		case "case_insensitive", "i":
			opts.CaseInsensitive = true
		case "double_star", "d":
			opts.DoubleStar = true
		case "path_normalize", "p":
			opts.PathNormalize = true
		case "allow_newline", "n":
			opts.AllowNewline = true
		default:
			return opts, fmt.Errorf("unknown flag %q", flag)
		}
	}
	return opts, nil
}

// Mismatch records one corpus case whose outcome disagreed with the matcher
type Mismatch struct {
	Row     int64  `json:"row"`
	Subject string `json:"subject"`
	Pattern string `json:"pattern"`
	Flags   string `json:"flags"`
	Expect  bool   `json:"expect"`
	Got     bool   `json:"got"`
	Err     string `json:"err,omitempty"`
}

// Result represents the outcome of a corpus run
type Result struct {
	TotalCases int64         `json:"total_cases"`
	Passed     int64         `json:"passed"`
	Failed     int64         `json:"failed"`
	Skipped    int64         `json:"skipped"`
	Duration   time.Duration `json:"duration"`
	Mismatches []Mismatch    `json:"mismatches,omitempty"`
}

// FileFormat represents supported corpus file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".csv"):
		return FormatCSV
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".json") || strings.HasSuffix(filename, ".jsonl"):
		return FormatJSON
	default:
		return FormatCSV
	}
}
