package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	spacetravel "github.com/eringen/spacetravel"
)

// version is set at build time via ldflags.
var version = "dev"

var CLI struct {
	Config  string `short:"c" help:"Configuration file path (YAML). Environment variables and .env are always read."`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct{} `cmd:"" default:"1" help:"Serve the site, generating pages on demand"`

	Build struct {
		Output string `short:"o" help:"Output directory (overrides OUTPUT_DIR)"`
	} `cmd:"" help:"Generate the home page, the first posts, the feed and the sitemap"`

	Seed struct {
		File string `arg:"" type:"existingfile" help:"YAML fixtures to load into the local database"`
	} `cmd:"" help:"Load fixtures into the local SQLite content store"`

	Version struct{} `cmd:"" help:"Print the version"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("spacetravel"),
		kong.Description("A statically generated blog backed by a headless CMS"),
		kong.UsageOnError(),
	)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if kctx.Command() == "version" {
		fmt.Printf("spacetravel %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := spacetravel.LoadConfig(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	switch kctx.Command() {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "build":
		if CLI.Build.Output != "" {
			cfg.OutputDir = CLI.Build.Output
		}
		err = build(ctx, cfg, logger)
	case "seed <file>":
		err = seed(ctx, cfg, CLI.Seed.File, logger)
	default:
		err = fmt.Errorf("unknown command %q", kctx.Command())
	}
	if err != nil {
		slog.Error("Command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
