package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ironsheep/form-scanner/internal/config"
	"github.com/ironsheep/form-scanner/internal/detection"
	"github.com/ironsheep/form-scanner/internal/pipeline"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "formscan - read the IDs of a scanned bubble-sheet document")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: formscan <document.pdf|image>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  FORMSCAN_LOG_LEVEL=debug     Enable debug logging")
	fmt.Fprintln(w, "  FORMSCAN_DEBUG_DIR=<dir>     Write an annotated image of every page")
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 1 {
		switch args[0] {
		case "--version", "-v", "version":
			fmt.Fprintf(stdout, "formscan %s\n", Version)
			fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
			return 0
		case "--help", "-h", "help":
			usage(stdout)
			return 0
		}
	}
	if len(args) != 1 {
		usage(stderr)
		return 1
	}

	cfg := config.Load()
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	proc, err := pipeline.New(pipeline.Options{
		ExtractWorkers: 1,
		DecodeWorkers:  cfg.DecodeWorkers,
		Extractor:      cfg.Extractor(log),
		Decoder:        cfg.Decoder(log),
		DebugDir:       cfg.DebugDir,
		Logger:         log,
	})
	if err != nil {
		log.Error("processor not started", "error", err)
		return 1
	}
	defer proc.Exit()

	const formID = 1
	if err := proc.Add(formID, detection.NoID, args[0]); err != nil {
		log.Error("document not queued", "error", err)
		return 1
	}
	proc.Wait()

	f, _ := proc.Form(formID)
	if err := f.Err(); err != nil {
		fmt.Fprintf(stderr, "formscan: %v\n", err)
		return 1
	}
	for _, p := range f.Pages() {
		if p.HasID() {
			fmt.Fprintln(stdout, p.ID)
		} else {
			fmt.Fprintln(stdout, pipeline.NoIDText)
		}
	}
	return 0
}
