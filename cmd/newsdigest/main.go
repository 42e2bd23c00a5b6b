package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"NewsDigest/internal/app"
	"NewsDigest/internal/config"
	"NewsDigest/internal/logging"
)

type globalOptions struct {
	Config string `short:"c" long:"config" description:"Path to the YAML config file (default: $NEWSDIGEST_CONFIG)"`
}

type runCommand struct {
	global      *globalOptions
	DryRun      bool `long:"dry-run" description:"Print the digest to stdout and do not persist seen articles"`
	MaxPerGroup int  `long:"max-per-group" description:"Override digest.maxPerGroup"`
}

type serveCommand struct {
	global *globalOptions
	Addr   string `long:"addr" description:"Listen address (default: server.addr)"`
}

func main() {
	var global globalOptions
	parser := flags.NewParser(&global, flags.Default)

	if _, err := parser.AddCommand("run", "Run one digest cycle",
		"Fetch feeds, filter and deduplicate articles and deliver the digest once.",
		&runCommand{global: &global}); err != nil {
		slog.Error("register command", "error", err)
		os.Exit(1)
	}
	if _, err := parser.AddCommand("serve", "Serve the HTTP API",
		"Expose health, preview and stored-article endpoints.",
		&serveCommand{global: &global}); err != nil {
		slog.Error("register command", "error", err)
		os.Exit(1)
	}

	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
}

func (c *runCommand) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(c.global.Config)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger, app.Options{
		DryRun:      c.DryRun,
		MaxPerGroup: c.MaxPerGroup,
		Stdout:      os.Stdout,
	})
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return err
	}
	defer application.Close()

	if _, err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	return nil
}

func (c *serveCommand) Execute(_ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(c.global.Config)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger, app.Options{NoDelivery: true})
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return err
	}
	defer application.Close()

	if err := application.Serve(ctx, c.Addr); err != nil {
		logger.Error("server stopped", "error", err)
		return err
	}
	return nil
}
