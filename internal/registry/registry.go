package registry

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"beacon/internal/discovery"
)

// Instance is one registered network endpoint for a named service.
type Instance struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Host     string         `json:"host"`
	Port     int            `json:"port"`
	PID      int            `json:"pid,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
	LastSeen time.Time      `json:"last_seen"`
}

// Registration carries the caller-supplied fields for Register. ID, PID, and
// Meta are optional.
type Registration struct {
	Name string
	Host string
	Port int
	PID  int
	ID   string
	Meta map[string]any
}

const defaultHost = "127.0.0.1"

// Directory is the in-memory liveness store: service name to instance id to
// instance. A restart is a full reset; nothing is persisted.
type Directory struct {
	mu       sync.Mutex
	services map[string]map[string]Instance
	now      func() time.Time
}

// Option customizes Directory construction.
type Option func(*Directory)

// WithClock overrides the time source. Tests use it to drive registration
// timestamps deterministically.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDirectory constructs an empty directory.
func NewDirectory(opts ...Option) *Directory {
	d := &Directory{
		services: make(map[string]map[string]Instance),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds or replaces an instance and stamps its LastSeen.
// Re-registration with the same id is idempotent and overwrites the previous
// entry, which makes a restarted process immediately preferred by Resolve.
func (d *Directory) Register(reg Registration) (Instance, error) {
	name := strings.TrimSpace(reg.Name)
	if name == "" {
		return Instance{}, discovery.Wrap(discovery.ErrValidation, "registry", "register", "service name is required", nil)
	}
	if reg.Port <= 0 {
		return Instance{}, discovery.Wrap(discovery.ErrValidation, "registry", "register",
			fmt.Sprintf("port must be a positive integer, got %d", reg.Port), nil)
	}

	host := strings.TrimSpace(reg.Host)
	if host == "" {
		host = defaultHost
	}
	id := strings.TrimSpace(reg.ID)
	if id == "" {
		id = generateID(host, reg.Port)
	}

	inst := Instance{
		ID:       id,
		Name:     name,
		Host:     host,
		Port:     reg.Port,
		PID:      reg.PID,
		Meta:     copyMeta(reg.Meta),
		LastSeen: d.now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.services[name]
	if !ok {
		entry = make(map[string]Instance)
		d.services[name] = entry
	}
	entry[id] = inst

	return snapshot(inst), nil
}

// Heartbeat refreshes LastSeen for the given instance. An unknown name or id
// returns ok=false rather than an error: the caller may simply have raced
// with eviction and should re-register.
func (d *Directory) Heartbeat(name, id string) (Instance, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.services[name]
	if !ok {
		return Instance{}, false
	}
	inst, ok := entry[id]
	if !ok {
		return Instance{}, false
	}
	inst.LastSeen = d.now()
	entry[id] = inst
	return snapshot(inst), true
}

// Unregister removes instances from the named service and reports whether
// anything was removed. With an id, exactly that instance is targeted. With
// an empty id, every instance matching the given host or port is removed.
// The host/port path is deliberately coarse: if several instances share an
// address it removes all of them. That matches how a crashed process that
// lost its id evicts stale siblings, and is kept as documented behavior.
func (d *Directory) Unregister(name, id, host string, port int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.services[name]
	if !ok {
		return false
	}

	removed := false
	if id != "" {
		if _, ok := entry[id]; ok {
			delete(entry, id)
			removed = true
		}
	} else if host != "" || port > 0 {
		for key, inst := range entry {
			if (host != "" && inst.Host == host) || (port > 0 && inst.Port == port) {
				delete(entry, key)
				removed = true
			}
		}
	}

	if len(entry) == 0 {
		delete(d.services, name)
	}
	return removed
}

// Resolve returns the instance with the greatest LastSeen for the service.
// Ordering among equal timestamps is unspecified.
func (d *Directory) Resolve(name string) (Instance, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.services[name]
	if !ok || len(entry) == 0 {
		return Instance{}, false
	}

	var best Instance
	found := false
	for _, inst := range entry {
		if !found || inst.LastSeen.After(best.LastSeen) {
			best = inst
			found = true
		}
	}
	return snapshot(best), found
}

// List returns a deep snapshot of every service and its instances. Callers
// never observe later mutations through the returned maps.
func (d *Directory) List() map[string][]Instance {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string][]Instance, len(d.services))
	for name, entry := range d.services {
		instances := make([]Instance, 0, len(entry))
		for _, inst := range entry {
			instances = append(instances, snapshot(inst))
		}
		out[name] = instances
	}
	return out
}

// CleanupExpired evicts every instance whose age exceeds ttl (strictly
// greater than: an instance seen exactly ttl ago is retained) and drops
// services left empty. It returns the number of evicted instances and is a
// no-op when nothing has expired.
func (d *Directory) CleanupExpired(now time.Time, ttl time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	evicted := 0
	for name, entry := range d.services {
		for id, inst := range entry {
			if now.Sub(inst.LastSeen) > ttl {
				delete(entry, id)
				evicted++
			}
		}
		if len(entry) == 0 {
			delete(d.services, name)
		}
	}
	return evicted
}

// Len returns the total number of registered instances across all services.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	total := 0
	for _, entry := range d.services {
		total += len(entry)
	}
	return total
}

func generateID(host string, port int) string {
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s:%d:%s", host, port, suffix)
}

func snapshot(inst Instance) Instance {
	inst.Meta = copyMeta(inst.Meta)
	return inst
}

func copyMeta(meta map[string]any) map[string]any {
	if len(meta) == 0 {
		return nil
	}
	cp := make(map[string]any, len(meta))
	for k, v := range meta {
		cp[k] = v
	}
	return cp
}
