// Package daemonrun owns the daemon process runtime: signal handling, logger
// construction, and the start/wait/stop lifecycle shared by the beacond
// binary and the CLI's foreground run command.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"beacon/internal/config"
	"beacon/internal/daemon"
	"beacon/internal/discovery"
	"beacon/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel  string
	LogFormat string
}

// Run starts the discovery daemon and blocks until SIGINT/SIGTERM. A startup
// loss to an already-running daemon is a clean abstain, not a crash loop: it
// is reported on the error path and the process exits.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := cfg.Logging.Level
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	format := cfg.Logging.Format
	if opts.LogFormat != "" {
		format = opts.LogFormat
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "beacond.log")
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Start(signalCtx); err != nil {
		if errors.Is(err, discovery.ErrAlreadyRunning) {
			logger.Info("another daemon owns the rendezvous record, abstaining",
				logging.String(logging.FieldEventType, "daemon_abstained"))
		}
		return err
	}

	<-signalCtx.Done()
	logger.Info("daemon shutting down")
	d.Stop()
	return nil
}
