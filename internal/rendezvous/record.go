package rendezvous

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// Record is the persisted descriptor of the currently active daemon. Exactly
// one record is authoritative at any time; it is owned by whichever daemon
// process last wrote it while alive.
type Record struct {
	Host      string    `json:"host"`
	Port      int       `json:"port"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
}

// Address returns the record's host:port form.
func (r Record) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Store reads and writes the rendezvous record at a fixed path. Writes use
// temp-write-then-rename so readers never observe a half-written record.
// This is a coordination point, not a lock: the at-most-one-daemon property
// it supports is advisory.
type Store struct {
	path string
}

// NewStore returns a store for the record at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the record location.
func (s *Store) Path() string {
	return s.path
}

// Read returns the current record. A missing, malformed, or unparsable file
// reads as absent.
func (s *Store) Read() (Record, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false
	}
	if rec.Port <= 0 || rec.PID <= 0 {
		return Record{}, false
	}
	return rec, true
}

// ReadLive returns the record only when its pid denotes a live process.
func (s *Store) ReadLive() (Record, bool) {
	rec, ok := s.Read()
	if !ok {
		return Record{}, false
	}
	if !PIDAlive(rec.PID) {
		return Record{}, false
	}
	return rec, true
}

// WriteAtomic replaces the record via a temp file and rename.
func (s *Store) WriteAtomic(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create runtime directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename record: %w", err)
	}
	return nil
}

// Remove deletes the record. Missing files are not an error.
func (s *Store) Remove() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// RemoveIfOwned deletes the record only when it still names the given pid,
// so a shutting-down daemon never clobbers a successor's record.
func (s *Store) RemoveIfOwned(pid int) error {
	rec, ok := s.Read()
	if !ok || rec.PID != pid {
		return nil
	}
	return s.Remove()
}

// PIDAlive reports whether pid denotes a live process. It is a zero-cost
// existence probe (signal 0), not a health check: a process we lack
// permission to signal still counts as alive.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}
