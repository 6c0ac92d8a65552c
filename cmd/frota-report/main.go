// Command frota-report looks up every access key in the keys file and writes
// the fuel report as CSV and XLSX, optionally publishing the rows to Kafka.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"frota/internal/app"
	"frota/internal/export"
	"frota/internal/keys"
	"frota/internal/nfe/batch"
	"frota/internal/platform/config"
	"frota/internal/platform/logger"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("frota-report", flag.ContinueOnError)
	keysFile := fs.String("keys", cfg.Batch.KeysFile, "file with one access key per line")
	outDir := fs.String("out", cfg.Batch.OutputDir, "directory for report.csv and report.xlsx")
	kafka := fs.Bool("kafka", cfg.Kafka.Enabled(), "also publish rows to KAFKA_TOPIC")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accessKeys, err := keys.ReadFile(*keysFile)
	if err != nil {
		return err
	}
	if bad := keys.Invalid(accessKeys); len(bad) > 0 {
		log.WarnContext(ctx, "keys file has malformed entries", "count", len(bad))
	}

	a, err := app.Build(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := batch.New(a.Service, cfg.Station,
		batch.WithConcurrency(cfg.Batch.Concurrency),
		batch.WithKeyTimeout(cfg.Batch.KeyTimeout),
		batch.WithLogger(log),
	)
	if err != nil {
		return err
	}

	report, runErr := runner.Run(ctx, accessKeys)
	for _, f := range report.Failures {
		fmt.Fprintf(stdout, "Error processing %s: %v\n", f.AccessKey, f.Err)
	}
	if runErr != nil {
		return fmt.Errorf("run interrupted: %w", runErr)
	}
	if len(report.Rows) == 0 {
		fmt.Fprintln(stdout, "No valid data extracted.")
		return nil
	}

	csvSink := export.NewCSVSink(filepath.Join(*outDir, "report.csv"))
	xlsxSink := export.NewXLSXSink(filepath.Join(*outDir, "report.xlsx"))
	sinks := []export.Sink{csvSink, xlsxSink}

	if *kafka {
		if !cfg.Kafka.Enabled() {
			return errors.New("-kafka requires KAFKA_BROKERS")
		}
		ks, err := export.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, export.WithRunID(report.Summary.RunID))
		if err != nil {
			return err
		}
		defer ks.Close()
		if err := ks.EnsureTopic(ctx, 1, 1); err != nil {
			return err
		}
		sinks = append(sinks, ks)
	}

	if err := export.Multi(sinks...).Write(ctx, report.Rows); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Report saved to %s and %s\n", csvSink.Path(), xlsxSink.Path())
	fmt.Fprintf(stdout, "Processed %d keys: %d extracted, %d without data, %d failed\n",
		report.Summary.Processed, report.Summary.Extracted, report.Summary.Absent, report.Summary.Failed)
	return nil
}
