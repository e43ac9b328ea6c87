package daemonctl_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"beacon/internal/client"
	"beacon/internal/config"
	"beacon/internal/daemon"
	"beacon/internal/daemonctl"
	"beacon/internal/daemonrun"
	"beacon/internal/discovery"
	"beacon/internal/rendezvous"
	"beacon/internal/testsupport"
)

// TestMain doubles as a real beacond when re-executed with the marker env
// set, so launch-path tests can spawn an actual detached daemon process from
// the test binary itself.
func TestMain(m *testing.M) {
	if os.Getenv("BEACON_DAEMON_CHILD") == "1" {
		runChildDaemon()
		return
	}
	os.Exit(m.Run())
}

func runChildDaemon() {
	cfg, _, _, err := config.Load(os.Getenv("BEACON_DAEMON_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogFormat: "json"}); err != nil {
		// ErrAlreadyRunning is the clean abstain path for a losing child.
		os.Exit(1)
	}
	os.Exit(0)
}

// childDaemonEnv points the re-executed test binary at cfg. The env is
// inherited by everything Launch spawns while the test runs.
func childDaemonEnv(t *testing.T, cfg *config.Config) {
	t.Helper()

	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("BEACON_DAEMON_CHILD", "1")
	t.Setenv("BEACON_DAEMON_CONFIG", cfgPath)
}

func startDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

// unusedPort reserves and releases a local port so nothing is listening on it.
func unusedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()
	return port
}

func TestDiscoverFindsRunningDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := startDaemon(t, cfg)

	rec, ok := daemonctl.Discover(context.Background(), cfg)
	if !ok {
		t.Fatal("expected discovery to find the running daemon")
	}
	if rec.Address() != d.Addr() {
		t.Fatalf("expected address %s, got %s", d.Addr(), rec.Address())
	}
	if rec.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), rec.PID)
	}
}

func TestDiscoverTreatsDeadPIDAsAbsent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	err := rendezvous.NewStore(cfg.RecordPath()).WriteAtomic(rendezvous.Record{
		Host: "127.0.0.1", Port: unusedPort(t), PID: 1 << 22, StartedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if _, ok := daemonctl.Discover(context.Background(), cfg); ok {
		t.Fatal("a record naming a dead pid must read as absent")
	}
}

func TestDiscoverRequiresHealthProbe(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// Live pid, but nothing listening at the recorded port.
	err := rendezvous.NewStore(cfg.RecordPath()).WriteAtomic(rendezvous.Record{
		Host: "127.0.0.1", Port: unusedPort(t), PID: os.Getpid(), StartedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}

	if _, ok := daemonctl.Discover(context.Background(), cfg); ok {
		t.Fatal("a record that fails the health probe must read as absent")
	}
}

func TestWaitForReadyTimesOut(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStartupTimeoutMillis(300))

	start := time.Now()
	_, err := daemonctl.WaitForReady(context.Background(), cfg)
	if !errors.Is(err, discovery.ErrStartupTimeout) {
		t.Fatalf("expected startup timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout took %s, bound was 300ms", elapsed)
	}
}

func TestWaitForReadySeesLateDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	started := make(chan *daemon.Daemon, 1)
	go func() {
		time.Sleep(150 * time.Millisecond)
		d, err := daemon.New(cfg, nil)
		if err != nil {
			started <- nil
			return
		}
		if err := d.Start(context.Background()); err != nil {
			started <- nil
			return
		}
		started <- d
	}()
	t.Cleanup(func() {
		if d := <-started; d != nil {
			d.Stop()
		}
	})

	rec, err := daemonctl.WaitForReady(context.Background(), cfg)
	if err != nil {
		t.Fatalf("WaitForReady: %v", err)
	}
	if rec.PID != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), rec.PID)
	}
}

func TestEnsureDaemonFindsExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := startDaemon(t, cfg)

	// The executable path is deliberately bogus: a healthy daemon must be
	// found without any launch attempt.
	res, err := daemonctl.EnsureDaemon(context.Background(), cfg, "/nonexistent/beacond", daemonctl.LaunchOptions{})
	if err != nil {
		t.Fatalf("EnsureDaemon: %v", err)
	}
	if res.State != daemonctl.StateFound || res.Launched {
		t.Fatalf("expected found state without launch, got %+v", res)
	}
	if res.Address != d.Addr() {
		t.Fatalf("expected address %s, got %s", d.Addr(), res.Address)
	}
}

func TestEnsureDaemonSurfacesLaunchFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStartupTimeoutMillis(300))

	_, err := daemonctl.EnsureDaemon(context.Background(), cfg, "/nonexistent/beacond", daemonctl.LaunchOptions{})
	if err == nil {
		t.Fatal("expected launch failure for a missing executable")
	}
}

func TestEnsureDaemonLaunchesChildProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	childDaemonEnv(t, cfg)
	t.Cleanup(func() {
		_, _ = daemonctl.Stop(cfg, 2*time.Second)
	})

	res, err := daemonctl.EnsureDaemon(context.Background(), cfg, os.Args[0], daemonctl.LaunchOptions{})
	if err != nil {
		t.Fatalf("EnsureDaemon: %v", err)
	}
	if res.State != daemonctl.StateStarted || !res.Launched {
		t.Fatalf("expected a launched daemon, got %+v", res)
	}
	if res.PID == os.Getpid() {
		t.Fatal("daemon must run in its own process, not the client")
	}

	pid, err := client.New(res.Address).Health(context.Background())
	if err != nil {
		t.Fatalf("health probe of launched daemon: %v", err)
	}
	if pid != res.PID {
		t.Fatalf("health pid %d does not match bootstrap result %d", pid, res.PID)
	}
}

func TestEnsureDaemonConcurrentClientsConverge(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	childDaemonEnv(t, cfg)
	t.Cleanup(func() {
		_, _ = daemonctl.Stop(cfg, 2*time.Second)
	})

	// Both clients observe no daemon and may both launch one; the losing
	// daemon abstains and exits, and both clients must converge on the
	// single survivor.
	results := make([]daemonctl.EnsureResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = daemonctl.EnsureDaemon(context.Background(), cfg, os.Args[0], daemonctl.LaunchOptions{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("client %d: %v", i, err)
		}
	}
	if results[0].Address != results[1].Address || results[0].PID != results[1].PID {
		t.Fatalf("clients diverged: %+v vs %+v", results[0], results[1])
	}
	if !rendezvous.PIDAlive(results[0].PID) {
		t.Fatalf("converged pid %d is not alive", results[0].PID)
	}
}

func TestLaunchRejectsEmptyPath(t *testing.T) {
	if err := daemonctl.Launch("   ", daemonctl.LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	if _, err := daemonctl.Stop(cfg, time.Second); !errors.Is(err, daemonctl.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}
