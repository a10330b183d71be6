package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironsheep/form-scanner/internal/api"
	"github.com/ironsheep/form-scanner/internal/config"
	"github.com/ironsheep/form-scanner/internal/inbox"
	"github.com/ironsheep/form-scanner/internal/pipeline"
)

// Version is set by ldflags during build.
var Version = "dev"

func main() {
	cfg := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	results, err := cfg.OpenStore(ctx)
	if err != nil {
		log.Error("results store unavailable", "error", err)
		os.Exit(1)
	}
	defer results.Close()

	proc, err := pipeline.New(pipeline.Options{
		ExtractWorkers: cfg.ExtractWorkers,
		DecodeWorkers:  cfg.DecodeWorkers,
		ServerMode:     true,
		Store:          results,
		Extractor:      cfg.Extractor(log),
		Decoder:        cfg.Decoder(log),
		DebugDir:       cfg.DebugDir,
		Logger:         log,
	})
	if err != nil {
		log.Error("processor not started", "error", err)
		os.Exit(1)
	}

	n, err := inbox.Resume(cfg.DataDir, proc, log)
	if err != nil {
		log.Warn("earlier uploads not resumed", "error", err)
	} else if n > 0 {
		log.Info("resumed earlier uploads", "forms", n)
	}

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     api.NewServer(proc, results, log, cfg),
		ReadTimeout: 5 * time.Minute,
		// No write timeout: progress requests are long polls.
		IdleTimeout: 60 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		httpDone := make(chan error, 1)
		go func() { httpDone <- httpServer.Shutdown(shutdownCtx) }()

		// Finish what is queued while time allows. Whatever is left stays
		// in the data dir and resumes on restart.
		drained := make(chan struct{})
		go func() {
			proc.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-shutdownCtx.Done():
			log.Warn("shutdown timeout, abandoning queued forms")
		}
		// Exit also wakes long polls so the HTTP server can close.
		proc.Exit()

		if err := <-httpDone; err != nil {
			log.Warn("http shutdown", "error", err)
		}
	}()

	log.Info("starting form-scanner", "port", cfg.Port, "version", Version)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
