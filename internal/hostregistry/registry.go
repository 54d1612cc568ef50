// Package hostregistry holds the read-only set of configured hosts (C2).
// The registry is loaded once at startup from internal/hostconfig and never
// mutated afterward, so lookups need no locking.
package hostregistry

import (
	"sort"
	"sync"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
)

// Registry is an immutable, name-indexed set of HostConfig records.
type Registry struct {
	byName map[string]models.HostConfig
	names  []string // sorted, for deterministic list() output
}

// New builds a Registry from a slice of host configs. Duplicate names are
// rejected (§3 invariant: "name is unique in the registry").
func New(hosts []models.HostConfig) (*Registry, error) {
	r := &Registry{byName: make(map[string]models.HostConfig, len(hosts))}
	for _, h := range hosts {
		if h.Name == "" {
			return nil, apierrors.New(apierrors.InvalidInput, "host config missing name")
		}
		if _, exists := r.byName[h.Name]; exists {
			return nil, apierrors.New(apierrors.InvalidInput, "duplicate host name %q", h.Name)
		}
		if h.Protocol == "ssh" && h.SSHUser == "" && !h.UsesSSH() {
			return nil, apierrors.New(apierrors.InvalidInput,
				"host %q: protocol=ssh requires an SSH-capable host or sshUser", h.Name)
		}
		r.byName[h.Name] = h
		r.names = append(r.names, h.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// List returns every registered host, sorted by name.
func (r *Registry) List() []models.HostConfig {
	out := make([]models.HostConfig, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// FindByName looks up a single host, returning apierrors.NotFound if absent.
func (r *Registry) FindByName(name string) (models.HostConfig, error) {
	h, ok := r.byName[name]
	if !ok {
		return models.HostConfig{}, apierrors.New(apierrors.NotFound, "host %q is not registered", name)
	}
	return h, nil
}

// AllOrOne implements the common "optional host parameter" pattern used by
// list-style handlers: an explicit name resolves to that one host, an empty
// name resolves to every registered host.
func (r *Registry) AllOrOne(optionalName string) ([]models.HostConfig, error) {
	if optionalName == "" {
		return r.List(), nil
	}
	h, err := r.FindByName(optionalName)
	if err != nil {
		return nil, err
	}
	return []models.HostConfig{h}, nil
}

// Count reports the number of registered hosts.
func (r *Registry) Count() int {
	return len(r.names)
}

// StaticProvider is the trivial Provider used by tests and by callers that
// already have a fixed slice of hosts in hand.
type StaticProvider struct {
	mu    sync.RWMutex
	hosts []models.HostConfig
}

// NewStaticProvider returns a Provider that always yields the given hosts.
func NewStaticProvider(hosts []models.HostConfig) *StaticProvider {
	return &StaticProvider{hosts: hosts}
}

// Hosts implements hostconfig.Provider.
func (p *StaticProvider) Hosts() []models.HostConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]models.HostConfig, len(p.hosts))
	copy(out, p.hosts)
	return out
}
