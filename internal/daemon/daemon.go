package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"beacon/internal/config"
	"beacon/internal/discovery"
	"beacon/internal/logging"
	"beacon/internal/registry"
	"beacon/internal/rendezvous"
)

// Daemon owns the liveness directory for one machine and enforces
// single-instance execution through the rendezvous record and a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	dir    *registry.Directory
	store  *rendezvous.Store

	lockPath string
	lock     *flock.Flock

	listener net.Listener
	server   *httpServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pid     int
}

// New constructs a daemon with an empty directory.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		dir:      registry.NewDirectory(),
		store:    rendezvous.NewStore(cfg.RecordPath()),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		pid:      os.Getpid(),
	}, nil
}

// Start runs the singleton guard, binds an ephemeral local port, publishes
// the rendezvous record, and launches the HTTP server and background timers.
// It returns ErrAlreadyRunning when another live daemon owns the role; that
// condition is fatal for this process, not retried.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return discovery.Wrap(discovery.ErrAlreadyRunning, "daemon", "start", "already started in this process", nil)
	}

	// Guard step one: a record naming a live process means another daemon
	// owns the role. A dead pid is a stale leftover and is overwritten.
	if rec, ok := d.store.Read(); ok {
		if rendezvous.PIDAlive(rec.PID) {
			return discovery.Wrap(discovery.ErrAlreadyRunning, "daemon", "start",
				fmt.Sprintf("pid %d holds the rendezvous record", rec.PID), nil)
		}
		d.logger.Info("overwriting stale rendezvous record",
			logging.String(logging.FieldEventType, "stale_record_replaced"),
			logging.Int(logging.FieldPID, rec.PID))
	}

	// Guard step two: the lock file narrows the window between two processes
	// both observing no live daemon. It is advisory, not a correctness
	// guarantee across hosts or exotic filesystems.
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return discovery.Wrap(discovery.ErrAlreadyRunning, "daemon", "start",
			fmt.Sprintf("lock file %s is held", d.lockPath), nil)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("bind: %w", err)
	}
	d.listener = listener

	if err := d.publishRecord(); err != nil {
		_ = listener.Close()
		_ = d.lock.Unlock()
		return fmt.Errorf("publish rendezvous record: %w", err)
	}
	if err := d.writePIDFile(); err != nil {
		d.logger.Warn("unable to write pid file",
			logging.Error(err),
			logging.String(logging.FieldEventType, "pid_file_write_failed"),
			logging.String(logging.FieldImpact, "force-stop tooling may not find this process"))
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.server = newHTTPServer(d, d.logger)
	d.server.serve(d.ctx, listener)

	d.wg.Add(1)
	go d.runTimers()

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String(logging.FieldAddress, d.Addr()),
		logging.Int(logging.FieldPID, d.pid),
		logging.Duration("ttl", d.cfg.TTL()))
	return nil
}

// Addr returns the bound host:port, or empty before Start.
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// PID returns the daemon's process id.
func (d *Daemon) PID() int {
	return d.pid
}

// Directory exposes the liveness directory to the HTTP handlers.
func (d *Daemon) Directory() *registry.Directory {
	return d.dir
}

// Stop shuts the server down, deletes the rendezvous record if this process
// still owns it, and releases the lock. It is safe to call more than once.
func (d *Daemon) Stop() {
	if !d.running.Swap(false) {
		return
	}

	if d.cancel != nil {
		d.cancel()
	}
	if d.server != nil {
		d.server.stop()
	}
	d.wg.Wait()

	if err := d.store.RemoveIfOwned(d.pid); err != nil {
		d.logger.Warn("unable to remove rendezvous record",
			logging.Error(err),
			logging.String(logging.FieldEventType, "record_remove_failed"),
			logging.String(logging.FieldImpact, "the next client will see a dead record and treat it as stale"))
	}
	_ = os.Remove(d.cfg.PIDPath())
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("unable to release daemon lock", logging.Error(err))
	}
	d.logger.Info("daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// runTimers drives the periodic directory sweep and rendezvous record
// refresh from a single goroutine, so invocations of either action never
// overlap their previous run.
func (d *Daemon) runTimers() {
	defer d.wg.Done()

	cleanup := time.NewTicker(d.cfg.CleanupInterval())
	defer cleanup.Stop()
	refresh := time.NewTicker(d.cfg.RefreshInterval())
	defer refresh.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-cleanup.C:
			if evicted := d.dir.CleanupExpired(time.Now(), d.cfg.TTL()); evicted > 0 {
				d.logger.Info("evicted expired instances",
					logging.String(logging.FieldEventType, "instances_evicted"),
					logging.Int("evicted", evicted))
			}
		case <-refresh.C:
			if err := d.publishRecord(); err != nil {
				d.logger.Warn("rendezvous record refresh failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "record_refresh_failed"),
					logging.String(logging.FieldImpact, "clients may observe a stale record timestamp"))
			}
		}
	}
}

func (d *Daemon) publishRecord() error {
	host, portStr, err := net.SplitHostPort(d.listener.Addr().String())
	if err != nil {
		return fmt.Errorf("split bound address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("parse bound port: %w", err)
	}
	return d.store.WriteAtomic(rendezvous.Record{
		Host:      host,
		Port:      port,
		PID:       d.pid,
		StartedAt: time.Now().UTC(),
	})
}

func (d *Daemon) writePIDFile() error {
	value := strconv.Itoa(d.pid) + "\n"
	return os.WriteFile(d.cfg.PIDPath(), []byte(value), 0o644)
}
