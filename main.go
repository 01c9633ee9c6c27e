package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/richardnixondev/reddit-image-collect/collector"
	"github.com/richardnixondev/reddit-image-collect/config"
	"github.com/richardnixondev/reddit-image-collect/store"
	"github.com/richardnixondev/reddit-image-collect/web"
)

type AppArguments struct {
	ConfigPath     string `arg:"-c,--config,env:COLLECTOR_CONFIG" default:"config.yaml" help:"path to the configuration file"`
	Serve          bool   `arg:"--serve" help:"start the web dashboard instead of a one-shot run"`
	Addr           string `arg:"--addr,env:COLLECTOR_ADDR" default:":8080" help:"dashboard listen address"`
	DryRun         bool   `arg:"--dry-run" help:"walk the listings and filters without downloading"`
	VerboseLogging bool   `arg:"-v,--verbose" help:"enable debug logging"`
}

const interruptExitCode = 130

func main() {
	var args AppArguments
	arg.MustParse(&args)

	godotenv.Load()

	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog := setupLogging(cfg.Logging, args.VerboseLogging)
	defer closeLog()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Err(err).Str("path", cfg.DBPath).Msg("opening the database failed")
		os.Exit(1)
	}
	defer st.Close()

	if args.Serve {
		server := web.NewServer(config.NewManager(args.ConfigPath), st)
		if err := server.ListenAndServe(args.Addr); err != nil {
			log.Err(err).Msg("dashboard server failed")
			os.Exit(1)
		}
		return
	}

	if args.DryRun {
		log.Info().Msg("dry run, nothing will be downloaded")
		cfg.Download.MediaTypes = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := collector.New(cfg, st).Run(ctx)
	stats.WriteTable(os.Stdout)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("interrupted")
			os.Exit(interruptExitCode)
		}
		log.Err(err).Msg("collection run failed")
		os.Exit(1)
	}
}

// setupLogging configures the global zerolog logger: a console writer on
// stderr, plus the configured log file when one is set. Returns a
// function that closes the file sink.
func setupLogging(cfg config.Logging, verbose bool) func() {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil && cfg.Level != "" {
		level = parsed
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr}
	var sink io.Writer = console
	closeLog := func() {}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot open log file %s: %v\n", cfg.File, err)
		} else {
			sink = zerolog.MultiLevelWriter(console, file)
			closeLog = func() { file.Close() }
		}
	}

	log.Logger = zerolog.New(sink).Level(level).With().Timestamp().Logger()
	return closeLog
}
