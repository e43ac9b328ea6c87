package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"beacon/internal/config"
	"beacon/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "override log format (console, json)")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "beacond: %v\n", err)
		os.Exit(1)
	}

	opts := daemonrun.Options{LogLevel: *logLevel, LogFormat: *logFormat}
	if err := daemonrun.Run(context.Background(), cfg, opts); err != nil {
		fmt.Fprintf(os.Stderr, "beacond: %v\n", err)
		os.Exit(1)
	}
}
