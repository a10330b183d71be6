package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/form-scanner/internal/config"
	"github.com/ironsheep/form-scanner/internal/inbox"
	"github.com/ironsheep/form-scanner/internal/pipeline"
	"github.com/ironsheep/form-scanner/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("formscan-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("formscan-mcp - MCP server for grading bubble-sheet forms")
			fmt.Println()
			fmt.Println("Usage: formscan-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  FORMSCAN_LOG_LEVEL=debug        Enable debug logging")
			fmt.Println("  FORMSCAN_DATA_DIR=<dir>         Inbox for submitted documents")
			fmt.Println("  FORMSCAN_RESULTS_DIR=<dir>      Where finished results are kept")
			fmt.Println("  FORMSCAN_DATABASE_URL=<dsn>     Keep results in Postgres instead")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			return
		}
	}

	// stdout carries the protocol, so logs go to stderr.
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log.Debug("form-scanner MCP server", "version", Version, "built", BuildTime, "commit", GitCommit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := cfg.OpenStore(ctx)
	if err != nil {
		log.Error("results store unavailable", "error", err)
		os.Exit(1)
	}
	defer results.Close()

	extractor := cfg.Extractor(log)
	decoder := cfg.Decoder(log)
	proc, err := pipeline.New(pipeline.Options{
		ExtractWorkers: cfg.ExtractWorkers,
		DecodeWorkers:  cfg.DecodeWorkers,
		ServerMode:     true,
		Store:          results,
		Extractor:      extractor,
		Decoder:        decoder,
		DebugDir:       cfg.DebugDir,
		Logger:         log,
	})
	if err != nil {
		log.Error("processor not started", "error", err)
		os.Exit(1)
	}
	defer proc.Exit()

	if n, err := inbox.Resume(cfg.DataDir, proc, log); err != nil {
		log.Warn("earlier submissions not resumed", "error", err)
	} else if n > 0 {
		log.Info("resumed earlier submissions", "forms", n)
	}

	srv, err := server.New(server.Options{
		Processor: proc,
		Results:   results,
		Extractor: extractor,
		Decoder:   decoder,
		InboxDir:  cfg.DataDir,
		MaxBytes:  cfg.MaxUploadBytes,
		Version:   Version,
		Logger:    log,
	})
	if err != nil {
		log.Error("server not started", "error", err)
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
