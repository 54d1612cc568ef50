// Package handlers implements the action handlers (C10): one pure
// coordinator per (action, subaction) pair, orchestrating the host registry
// (C2), executor (C4/C4a), discovery resolver (C7), host resolver (C8), and
// fan-out engine (C11). Grounded on the teacher's tools_docker.go /
// tools_infrastructure.go / tools_read.go / tools_file.go resolve-validate-
// act-format shape, generalized from a single local daemon to a registry of
// many hosts.
package handlers

import (
	"context"
	"net"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/discovery"
	"github.com/rcourtman/dockfleet/internal/dockerclient"
	"github.com/rcourtman/dockfleet/internal/exec"
	"github.com/rcourtman/dockfleet/internal/hostregistry"
	"github.com/rcourtman/dockfleet/internal/hostresolve"
	"github.com/rcourtman/dockfleet/internal/logging"
	"github.com/rcourtman/dockfleet/internal/models"
	"github.com/rcourtman/dockfleet/internal/sshpool"
)

// SSHDialerFunc builds a raw net.Conn to a host's Engine socket over SSH
// port-forwarding, used only for protocol=ssh Docker connections.
type SSHDialerFunc func(ctx context.Context, host models.HostConfig) (net.Conn, error)

// Deps bundles every collaborator a handler needs. One instance is built at
// startup and shared read-only across all requests.
type Deps struct {
	Registry     *hostregistry.Registry
	Pool         *sshpool.Pool
	Resolver     *discovery.Resolver
	HostResolver *hostresolve.Resolver
	SSHDialer    SSHDialerFunc
	Log          zerolog.Logger

	clientsMu sync.Mutex
	clients   map[string]*dockerclient.Client
}

// NewDeps wires the handler dependency bundle.
func NewDeps(registry *hostregistry.Registry, pool *sshpool.Pool, resolver *discovery.Resolver, hostResolver *hostresolve.Resolver, sshDialer SSHDialerFunc) *Deps {
	return &Deps{
		Registry:     registry,
		Pool:         pool,
		Resolver:     resolver,
		HostResolver: hostResolver,
		SSHDialer:    sshDialer,
		Log:          logging.For("handlers"),
		clients:      make(map[string]*dockerclient.Client),
	}
}

// DockerClient returns a cached Engine connection for host, opening one on
// first use. Connections are never closed mid-run; Close releases all of
// them on shutdown.
func (d *Deps) DockerClient(host models.HostConfig) (*dockerclient.Client, error) {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()

	if c, ok := d.clients[host.Name]; ok {
		return c, nil
	}

	var dialer func(ctx context.Context, network, addr string) (net.Conn, error)
	if host.Protocol == "ssh" && d.SSHDialer != nil {
		dialer = func(ctx context.Context, _ string, _ string) (net.Conn, error) {
			return d.SSHDialer(ctx, host)
		}
	}

	c, err := dockerclient.New(host, dialer)
	if err != nil {
		return nil, err
	}
	d.clients[host.Name] = c
	return c, nil
}

// Close releases every cached Engine connection.
func (d *Deps) Close() {
	d.clientsMu.Lock()
	defer d.clientsMu.Unlock()
	for _, c := range d.clients {
		c.Close()
	}
	d.clients = make(map[string]*dockerclient.Client)
}

// RunCommand runs a shell-safety-validated command on host through the
// uniform executor (local if host doesn't need SSH, SSH via the pool
// otherwise). Run below wraps it to satisfy discovery.CommandRunner.
func (d *Deps) RunCommand(ctx context.Context, host models.HostConfig, command string, opts exec.Options) (models.ExecResult, error) {
	return exec.Dispatch(ctx, d.Pool, host, command, opts)
}

// Run implements discovery.CommandRunner with default options.
func (d *Deps) Run(ctx context.Context, host models.HostConfig, command string) (models.ExecResult, error) {
	return d.RunCommand(ctx, host, command, exec.Options{})
}

// resolveHosts implements the common "host? -> []HostConfig" pattern used
// by every list-style handler (container.list, docker.images, etc.): an
// explicit host resolves to just that one, omitted resolves to every
// registered host (spec §4.10, C2.AllOrOne).
func (d *Deps) resolveHosts(explicitHost string) ([]models.HostConfig, error) {
	return d.Registry.AllOrOne(explicitHost)
}

// findContainerHost scans every registered host for a container matching id
// (by ID prefix or name), stopping at the first match. Mirrors the
// teacher's findContainerHost helper referenced in spec §4.10.
func (d *Deps) findContainerHost(ctx context.Context, id string) (models.HostConfig, models.ContainerInfo, error) {
	for _, h := range d.Registry.List() {
		client, err := d.DockerClient(h)
		if err != nil {
			continue
		}
		containers, err := client.ListContainers(ctx, true)
		if err != nil {
			continue
		}
		for _, c := range containers {
			if matchesContainer(c, id) {
				return h, c, nil
			}
		}
	}
	return models.HostConfig{}, models.ContainerInfo{}, apierrors.New(apierrors.NotFound, "container %q not found on any registered host", id)
}

func matchesContainer(c models.ContainerInfo, id string) bool {
	if c.ID == id || hasPrefixID(c.ID, id) {
		return true
	}
	for _, n := range c.Names {
		trimmed := n
		if len(trimmed) > 0 && trimmed[0] == '/' {
			trimmed = trimmed[1:]
		}
		if trimmed == id {
			return true
		}
	}
	return false
}

func hasPrefixID(full, prefix string) bool {
	return len(prefix) >= 6 && len(full) >= len(prefix) && full[:len(prefix)] == prefix
}

// sortHostsByName returns hosts sorted by name, the stable key every
// fan-out pagination step sorts by before applying offset/limit (spec §4.11).
func sortHostsByName(hosts []models.HostConfig) []models.HostConfig {
	out := make([]models.HostConfig, len(hosts))
	copy(out, hosts)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// paginateContainers applies offset/limit, returning the window as a
// subslice of items.
func paginateContainers(items []models.ContainerInfo, offset, limit int) []models.ContainerInfo {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
