package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/notify"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/registry"
	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/runner"
)

// #region main

func main() {
	resultsDir := flag.String("results", "results", "base directory for run artifacts")
	dataDir := flag.String("data", "data", "directory holding dataset CSV files")
	dbPath := flag.String("db", "", "optional run registry database")
	webhook := flag.String("webhook", "", "optional completion webhook URL")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: trainer [--results dir] [--data dir] [--db path] [--webhook url] config.json")
		os.Exit(2)
	}
	configPath := flag.Arg(0)
	if _, err := os.Stat(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	r := runner.New(*resultsDir, *dataDir)
	if *webhook != "" {
		r.Notifier = notify.NewWebhookNotifier(*webhook)
	}
	if *dbPath != "" {
		reg, err := registry.Open(*dbPath)
		if err != nil {
			log.Fatalf("open registry: %v", err)
		}
		defer reg.Close()
		r.Registry = reg
	}

	// SIGINT lands as context cancellation: the running session dumps a
	// partial report and the batch stops after it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reports, err := r.RunBatch(ctx, configPath)
	if err != nil {
		log.Fatalf("run batch: %v", err)
	}
	log.Printf("[MAIN] batch complete: %d experiments", len(reports))
}

// #endregion main
