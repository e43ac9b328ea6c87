package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"beacon/internal/client"
	"beacon/internal/config"
	"beacon/internal/daemonctl"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// ensureDaemon runs the discover-or-launch bootstrap and returns a client
// bound to the healthy daemon. The result is never cached: every command
// re-runs the bootstrap because the daemon may have restarted in between.
func (c *commandContext) ensureDaemon(cmd *cobra.Command) (*client.Client, daemonctl.EnsureResult, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, daemonctl.EnsureResult{}, err
	}

	// The beacond binary is only needed when nothing is running, so resolve
	// it after a failed discovery rather than up front.
	if rec, ok := daemonctl.Discover(cmd.Context(), cfg); ok {
		result := daemonctl.EnsureResult{Address: rec.Address(), PID: rec.PID, State: daemonctl.StateFound}
		return client.New(result.Address), result, nil
	}

	exe, err := daemonExecutable()
	if err != nil {
		return nil, daemonctl.EnsureResult{}, err
	}
	result, err := daemonctl.EnsureDaemon(cmd.Context(), cfg, exe, c.launchOptions())
	if err != nil {
		return nil, daemonctl.EnsureResult{}, err
	}
	return client.New(result.Address), result, nil
}

func (c *commandContext) withClient(cmd *cobra.Command, fn func(*client.Client) error) error {
	cl, _, err := c.ensureDaemon(cmd)
	if err != nil {
		return err
	}
	return fn(cl)
}

func (c *commandContext) launchOptions() daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			opts.ConfigPath = path
		}
	}
	return opts
}

// daemonExecutable locates the beacond binary, preferring the directory the
// CLI itself was installed into, then PATH.
func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "beacond")
		if info, statErr := os.Stat(candidate); statErr == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	if path, lookErr := exec.LookPath("beacond"); lookErr == nil {
		return path, nil
	}
	return "", fmt.Errorf("resolve executable: beacond not found next to %s or in PATH", filepath.Base(os.Args[0]))
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
