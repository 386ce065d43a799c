package corpus

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/scrubmark/scrubmark/internal/glob"
)

// Runner replays recorded pattern-matching cases against the matcher
// and reports every disagreement.
type Runner struct {
	config *Config
	logger *zap.Logger
}

// Config contains corpus runner configuration
type Config struct {
	BatchSize      int  `yaml:"batch_size" mapstructure:"batch_size"`
	MaxMismatches  int  `yaml:"max_mismatches" mapstructure:"max_mismatches"`
	SkipBadFlags   bool `yaml:"skip_bad_flags" mapstructure:"skip_bad_flags"`
	ProgressReport int  `yaml:"progress_report" mapstructure:"progress_report"`
}

// NewRunner creates a new corpus runner
func NewRunner(config *Config, logger *zap.Logger) *Runner {
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	if config.MaxMismatches <= 0 {
		config.MaxMismatches = 100
	}
	return &Runner{
		config: config,
		logger: logger,
	}
}

// RunFile replays a corpus file (CSV, Parquet, or JSON lines)
func (r *Runner) RunFile(ctx context.Context, filePath string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	format := DetectFileFormat(filePath)
	r.logger.Info("Starting corpus run",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("batch_size", r.config.BatchSize))

	var err error
	switch format {
	case FormatCSV:
		err = r.runCSV(ctx, filePath, result)
	case FormatParquet:
		err = r.runParquet(ctx, filePath, result)
	case FormatJSON:
		err = r.runJSON(ctx, filePath, result)
	default:
		return result, fmt.Errorf("unsupported corpus format: %s", format)
	}
	if err != nil {
		return result, err
	}

	result.Duration = time.Since(start)

	r.logger.Info("Corpus run completed",
		zap.Int64("total_cases", result.TotalCases),
		zap.Int64("passed", result.Passed),
		zap.Int64("failed", result.Failed),
		zap.Int64("skipped", result.Skipped),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// runCSV replays CSV corpus files with a subject,pattern,flags,expect header
func (r *Runner) runCSV(ctx context.Context, filePath string, result *Result) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 4

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	r.logger.Debug("CSV header detected", zap.Strings("columns", header))

	return r.runBatches(ctx, func() ([]GlobCase, error) {
		var batch []GlobCase
		for len(batch) < r.config.BatchSize {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				r.logger.Warn("Failed to read CSV record", zap.Error(err))
				continue
			}
			if len(record) != 4 {
				r.logger.Warn("Invalid CSV record length", zap.Int("length", len(record)))
				continue
			}

			expect := record[3] == "1" || strings.EqualFold(record[3], "true")
			batch = append(batch, GlobCase{
				Subject: record[0],
				Pattern: record[1],
				Flags:   strings.TrimSpace(record[2]),
				Expect:  expect,
			})
		}
		return batch, nil
	}, result)
}

// runParquet replays Parquet corpus files
func (r *Runner) runParquet(ctx context.Context, filePath string, result *Result) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	return r.runBatches(ctx, func() ([]GlobCase, error) {
		var batch []GlobCase
		for len(batch) < r.config.BatchSize {
			var c GlobCase
			err := reader.Read(&c)
			if err == io.EOF {
				break
			}
			if err != nil {
				r.logger.Warn("Failed to read Parquet record", zap.Error(err))
				continue
			}
			batch = append(batch, c)
		}
		return batch, nil
	}, result)
}

// runJSON replays JSON corpus files (one JSON object per line)
func (r *Runner) runJSON(ctx context.Context, filePath string, result *Result) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	return r.runBatches(ctx, func() ([]GlobCase, error) {
		var batch []GlobCase
		for len(batch) < r.config.BatchSize {
			var c GlobCase
			err := decoder.Decode(&c)
			if err == io.EOF {
				break
			}
			if err != nil {
				r.logger.Warn("Failed to read JSON record", zap.Error(err))
				continue
			}
			batch = append(batch, c)
		}
		return batch, nil
	}, result)
}

// runBatches evaluates batches of cases until the reader is exhausted
func (r *Runner) runBatches(ctx context.Context, readBatch func() ([]GlobCase, error), result *Result) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := readBatch()
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		for i := range batch {
			result.TotalCases++
			r.evaluate(&batch[i], result)

			if r.config.ProgressReport > 0 && result.TotalCases%int64(r.config.ProgressReport) == 0 {
				r.logger.Info("Corpus run progress",
					zap.Int64("cases", result.TotalCases),
					zap.Int64("failed", result.Failed))
			}
		}
	}
}

// evaluate runs one case and records the outcome
func (r *Runner) evaluate(c *GlobCase, result *Result) {
	opts, err := c.Options()
	if err != nil {
		if r.config.SkipBadFlags {
			result.Skipped++
			r.logger.Warn("Skipping case with unknown flags",
				zap.Int64("row", result.TotalCases),
				zap.String("flags", c.Flags))
			return
		}
		result.Failed++
		r.recordMismatch(result, c, false, err)
		return
	}

	got, err := glob.Match(c.Subject, c.Pattern, opts)
	if err != nil {
		result.Failed++
		r.recordMismatch(result, c, got, err)
		return
	}

	if got != c.Expect {
		result.Failed++
		r.recordMismatch(result, c, got, nil)
		return
	}

	result.Passed++
}

// recordMismatch appends a mismatch up to the configured cap
func (r *Runner) recordMismatch(result *Result, c *GlobCase, got bool, err error) {
	if len(result.Mismatches) >= r.config.MaxMismatches {
		return
	}
	m := Mismatch{
		Row:     result.TotalCases,
		Subject: c.Subject,
		Pattern: c.Pattern,
		Flags:   c.Flags,
		Expect:  c.Expect,
		Got:     got,
	}
	if err != nil {
		m.Err = err.Error()
	}
	result.Mismatches = append(result.Mismatches, m)
}
