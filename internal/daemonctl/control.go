// Package daemonctl implements the client side of the daemon bootstrap
// protocol: discover a healthy daemon through the rendezvous record, or
// launch one detached and poll until it becomes ready.
//
// Discovery never caches across logical operations. Every CLI command and
// library call re-runs EnsureDaemon, because the daemon may be restarted
// externally between calls and a remembered address can go stale.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"beacon/internal/client"
	"beacon/internal/config"
	"beacon/internal/discovery"
	"beacon/internal/rendezvous"
)

// ErrNotRunning indicates no live daemon was found.
var ErrNotRunning = errors.New("daemon not running")

// State names the terminal outcome of EnsureDaemon.
type State string

const (
	// StateFound means an existing daemon answered the health probe.
	StateFound State = "found"
	// StateStarted means this client launched the daemon that became ready.
	StateStarted State = "started"
)

// EnsureResult captures bootstrap orchestration state.
type EnsureResult struct {
	Address  string
	PID      int
	State    State
	Launched bool
}

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
}

// Discover returns the record of a currently healthy daemon. It requires a
// live pid and a successful bounded health probe; anything less reads as
// absent.
func Discover(ctx context.Context, cfg *config.Config) (rendezvous.Record, bool) {
	store := rendezvous.NewStore(cfg.RecordPath())
	rec, ok := store.ReadLive()
	if !ok {
		return rendezvous.Record{}, false
	}
	if !probeHealth(ctx, cfg, rec) {
		return rendezvous.Record{}, false
	}
	return rec, true
}

// Launch starts a detached daemon process that outlives this client.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	var args []string
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// EnsureDaemon runs discover-or-launch and returns a healthy daemon address.
// When no healthy daemon exists it launches one detached and polls for the
// rendezvous record to name a live, probe-answering process, bounded by the
// configured startup timeout. The deadline surfaces as ErrStartupTimeout,
// never as a silent hang.
func EnsureDaemon(ctx context.Context, cfg *config.Config, executablePath string, opts LaunchOptions) (EnsureResult, error) {
	if rec, ok := Discover(ctx, cfg); ok {
		return EnsureResult{Address: rec.Address(), PID: rec.PID, State: StateFound}, nil
	}

	if err := Launch(executablePath, opts); err != nil {
		return EnsureResult{}, err
	}

	rec, err := WaitForReady(ctx, cfg)
	if err != nil {
		return EnsureResult{}, err
	}
	return EnsureResult{Address: rec.Address(), PID: rec.PID, State: StateStarted, Launched: true}, nil
}

// WaitForReady polls until the rendezvous record names a live process that
// answers the health probe, or the startup deadline elapses.
func WaitForReady(ctx context.Context, cfg *config.Config) (rendezvous.Record, error) {
	deadline, cancel := context.WithTimeout(ctx, cfg.StartupTimeout())
	defer cancel()

	store := rendezvous.NewStore(cfg.RecordPath())
	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	for {
		if rec, ok := store.ReadLive(); ok && probeHealth(deadline, cfg, rec) {
			return rec, nil
		}
		select {
		case <-deadline.Done():
			return rendezvous.Record{}, discovery.Wrap(discovery.ErrStartupTimeout, "daemonctl", "wait",
				fmt.Sprintf("no healthy daemon within %s", cfg.StartupTimeout()), deadline.Err())
		case <-ticker.C:
		}
	}
}

// Stop sends SIGTERM to the recorded daemon and waits up to grace for it to
// exit. It returns ErrNotRunning when no live daemon is recorded, and an
// error when the process outlives the grace period.
func Stop(cfg *config.Config, grace time.Duration) (int, error) {
	store := rendezvous.NewStore(cfg.RecordPath())
	rec, ok := store.Read()
	if !ok || !rendezvous.PIDAlive(rec.PID) {
		return 0, ErrNotRunning
	}

	if err := unix.Kill(rec.PID, unix.SIGTERM); err != nil {
		return 0, fmt.Errorf("signal daemon pid %d: %w", rec.PID, err)
	}

	waitUntil := time.Now().Add(grace)
	for time.Now().Before(waitUntil) {
		if !rendezvous.PIDAlive(rec.PID) {
			return rec.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return rec.PID, fmt.Errorf("daemon pid %d still running after %s", rec.PID, grace)
}

func probeHealth(ctx context.Context, cfg *config.Config, rec rendezvous.Record) bool {
	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout())
	defer cancel()

	pid, err := client.New(rec.Address()).Health(probeCtx)
	if err != nil {
		return false
	}
	// A pid mismatch means the record and the listener belong to different
	// processes, likely mid-restart. Treat it as not yet healthy.
	return pid == rec.PID
}
