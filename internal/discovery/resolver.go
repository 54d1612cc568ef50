package discovery

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
)

// CommandRunner abstracts the exec layer (C4) so the resolver's live-query
// layer can run `docker compose ls` without depending on internal/exec
// directly (keeps this package's dependency surface to its own concerns).
type CommandRunner interface {
	Run(ctx context.Context, host models.HostConfig, command string) (models.ExecResult, error)
}

// composeListEntry mirrors the fields of `docker compose ls --format json`
// this resolver needs.
type composeListEntry struct {
	Name        string `json:"Name"`
	ConfigFiles string `json:"ConfigFiles"`
}

// Resolver implements the three-layer (host, project) -> compose file path
// lookup (C7): cache, then a live `docker compose ls` query, then a
// filesystem scan, write-through at every successful layer.
type Resolver struct {
	cache  *Cache
	runner CommandRunner
}

// NewResolver builds a Resolver backed by cache and runner.
func NewResolver(cache *Cache, runner CommandRunner) *Resolver {
	return &Resolver{cache: cache, runner: runner}
}

// Resolve returns the compose file path for (host, project), trying the
// cache, then a live docker compose ls query, then a filesystem scan.
func (r *Resolver) Resolve(ctx context.Context, host models.HostConfig, project string) (string, error) {
	if entry, ok := r.cache.GetProject(host.Name, project); ok {
		return entry.Path, nil
	}

	if path, ok := r.resolveLive(ctx, host, project); ok {
		r.cache.UpdateProject(host.Name, project, ProjectEntry{Path: path, DiscoveredFrom: "docker-ls"})
		return path, nil
	}

	if path, ok := r.resolveScan(host, project); ok {
		r.cache.UpdateProject(host.Name, project, ProjectEntry{Path: path, DiscoveredFrom: "scan"})
		return path, nil
	}

	return "", apierrors.New(apierrors.NotFound, "compose project %q not found on host %q", project, host.Name)
}

func (r *Resolver) resolveLive(ctx context.Context, host models.HostConfig, project string) (string, bool) {
	if r.runner == nil {
		return "", false
	}
	res, err := r.runner.Run(ctx, host, "docker compose ls --format json")
	if err != nil || res.ExitCode != 0 {
		return "", false
	}

	var entries []composeListEntry
	if jsonErr := json.Unmarshal([]byte(res.Stdout), &entries); jsonErr != nil {
		return "", false
	}
	for _, e := range entries {
		if e.Name != project || e.ConfigFiles == "" {
			continue
		}
		first := strings.SplitN(e.ConfigFiles, ",", 2)[0]
		if first == "" {
			continue
		}
		return first, true
	}
	return "", false
}

func (r *Resolver) resolveScan(host models.HostConfig, project string) (string, bool) {
	roots := append(append([]string{}, host.ComposeSearchPaths...), DefaultSearchPaths()...)
	found := ScanPaths(roots)
	r.cache.SetSearchPaths(host.Name, roots)

	for _, p := range found {
		if strings.EqualFold(p.Name, project) {
			return p.Path, true
		}
	}
	return "", false
}

// Invalidate drops the cached entry for (host, project), per §4.6: a
// downstream "no such file" error invalidates the cache so the next request
// re-discovers.
func (r *Resolver) Invalidate(host, project string) error {
	return r.cache.RemoveProject(host, project)
}

// IsNoSuchFile reports whether a command's output contains the downstream
// tool's "no such file or directory" or "not found" failure text, used by
// compose handlers to decide whether to invalidate (§4.6, S4).
func IsNoSuchFile(output string) bool {
	lowered := strings.ToLower(output)
	return strings.Contains(lowered, "no such file or directory") || strings.Contains(lowered, "not found")
}

// DefaultSearchPaths returns the fixed generic roots scanned in addition to
// any host-specific composeSearchPaths (§9 resolved Open Question: a
// configurable list, not environment-specific hardcoded paths).
func DefaultSearchPaths() []string {
	return []string{"/compose", "/opt/stacks"}
}
