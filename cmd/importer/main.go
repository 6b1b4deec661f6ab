// Package main is a CLI runner for movement file imports: validates or
// commits one CSV against the same pipeline the API uses.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"bookledger/internal/app"
	"bookledger/internal/domain/imports"
	"bookledger/internal/infrastructure/storage/postgres"
	"bookledger/pkg/logger"
)

func main() {
	var (
		validateOnly    = flag.Bool("validate", false, "parse and rule-check without committing")
		dryRun          = flag.Bool("dry-run", false, "resolve and validate rows, commit nothing")
		continueOnError = flag.Bool("continue-on-error", false, "isolate row failures instead of aborting chunks")
		batchSize       = flag.Int("batch-size", 0, "commit chunk size (0 = default)")
		actor           = flag.String("actor", "importer-cli", "actor id stamped on committed movements")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: importer [flags] <file.csv[.gz]>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.IsDevelopment()})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	services := app.BuildServices(pool, log)
	defer services.Hub.Close()

	f, err := os.Open(path)
	if err != nil {
		log.Fatalw("failed to open file", "path", path, "error", err)
	}
	defer f.Close()

	if *validateOnly {
		report, err := services.Imports.ValidateCSV(ctx, f)
		if err != nil {
			log.Fatalw("validation failed", "error", err)
		}
		printJSON(report)
		if len(report.Errors) > 0 {
			os.Exit(1)
		}
		return
	}

	job, err := services.Imports.ProcessMonthlyImport(ctx, path, f, imports.Options{
		BatchSize:       *batchSize,
		ContinueOnError: *continueOnError,
		DryRun:          *dryRun,
		CreatedBy:       *actor,
	})
	if err != nil {
		log.Fatalw("import failed", "error", err)
	}

	printJSON(job)
	if job.Status == imports.StatusFailed {
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
