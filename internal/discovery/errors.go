package discovery

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks bad caller input (missing name, non-positive port).
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a resolve or heartbeat target that is absent.
	ErrNotFound = errors.New("not found")
	// ErrStartupTimeout marks a bootstrap that failed to reach a healthy
	// daemon within the startup deadline.
	ErrStartupTimeout = errors.New("daemon startup timeout")
	// ErrTransport marks a network-level failure talking to a discovered daemon.
	ErrTransport = errors.New("transport failure")
	// ErrAlreadyRunning marks a daemon startup aborted because another live
	// process owns the rendezvous record.
	ErrAlreadyRunning = errors.New("daemon already running")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification via errors.Is. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransport
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "discovery failure"
	}
	return strings.Join(parts, ": ")
}
