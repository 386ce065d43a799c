package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/scrubmark/scrubmark/internal/config"
	"github.com/scrubmark/scrubmark/internal/corpus"
	"github.com/scrubmark/scrubmark/internal/logger"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Configuration file path")
		inputFile     = flag.String("input", "", "Corpus file (CSV, Parquet, or JSON lines)")
		batchSize     = flag.Int("batch-size", 1000, "Batch size for processing")
		maxMismatches = flag.Int("max-mismatches", 100, "Maximum mismatches to report")
		skipBadFlags  = flag.Bool("skip-bad-flags", false, "Skip cases with unknown flag names instead of failing them")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input corpus.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input corpus.parquet --batch-size 500\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input corpus.jsonl --skip-bad-flags\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting glob corpus check",
		zap.String("version", "0.1.0"),
		zap.String("input", *inputFile))

	if _, err := os.Stat(*inputFile); os.IsNotExist(err) {
		log.Fatal("Input file does not exist", zap.String("file", *inputFile))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling run...")
		cancel()
	}()

	runner := corpus.NewRunner(&corpus.Config{
		BatchSize:      *batchSize,
		MaxMismatches:  *maxMismatches,
		SkipBadFlags:   *skipBadFlags,
		ProgressReport: 10000,
	}, log.Logger)

	result, err := runner.RunFile(ctx, *inputFile)
	if err != nil {
		log.Fatal("Corpus run failed", zap.Error(err))
	}

	fmt.Printf("\n=== Glob Corpus Results ===\n")
	fmt.Printf("Total Cases:  %d\n", result.TotalCases)
	fmt.Printf("Passed:       %d\n", result.Passed)
	fmt.Printf("Failed:       %d\n", result.Failed)
	fmt.Printf("Skipped:      %d\n", result.Skipped)
	fmt.Printf("Duration:     %v\n", result.Duration)

	for _, m := range result.Mismatches {
		if m.Err != "" {
			fmt.Printf("row %d: subject=%q pattern=%q flags=%q error: %s\n",
				m.Row, m.Subject, m.Pattern, m.Flags, m.Err)
		} else {
			fmt.Printf("row %d: subject=%q pattern=%q flags=%q expect=%v got=%v\n",
				m.Row, m.Subject, m.Pattern, m.Flags, m.Expect, m.Got)
		}
	}

	if result.Failed > 0 {
		os.Exit(1)
	}
}
