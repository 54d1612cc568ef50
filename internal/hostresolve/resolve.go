// Package hostresolve implements the host resolver for Compose
// auto-discovery (C8): when a request omits an explicit host, fan out to
// every registered host in parallel and ask the discovery resolver (C7)
// whether the named project resolves there.
package hostresolve

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
)

// Wall-clock ceiling for the whole fan-out (§4.8).
const defaultWallClock = 30 * time.Second

// HostLister is the subset of hostregistry.Registry this package depends on.
type HostLister interface {
	List() []models.HostConfig
	FindByName(name string) (models.HostConfig, error)
}

// ProjectResolver is the subset of discovery.Resolver this package depends
// on: does (host, project) resolve to a compose file at all.
type ProjectResolver interface {
	Resolve(ctx context.Context, host models.HostConfig, project string) (string, error)
}

// Resolver finds which registered host owns a Compose project.
type Resolver struct {
	hosts     HostLister
	discovery ProjectResolver
	wallClock time.Duration
}

// New builds a Resolver. wallClock <= 0 uses the spec default of 30s.
func New(hosts HostLister, discovery ProjectResolver, wallClock time.Duration) *Resolver {
	if wallClock <= 0 {
		wallClock = defaultWallClock
	}
	return &Resolver{hosts: hosts, discovery: discovery, wallClock: wallClock}
}

// Match is one host where a project was found to resolve, together with the
// compose file path discovered there.
type Match struct {
	Host models.HostConfig
	Path string
}

// ResolveHost implements §4.8: if host is non-empty, it is validated against
// the registry directly. Otherwise every registered host is queried in
// parallel; zero matches is NotFound, exactly one is returned, more than one
// is Ambiguous (with every candidate name listed in the error message).
// Exceeding the wall-clock bound raises Timeout.
func (r *Resolver) ResolveHost(ctx context.Context, host, project string) (Match, error) {
	if host != "" {
		h, err := r.hosts.FindByName(host)
		if err != nil {
			return Match{}, err
		}
		path, err := r.discovery.Resolve(ctx, h, project)
		if err != nil {
			return Match{}, err
		}
		return Match{Host: h, Path: path}, nil
	}

	return r.fanOut(ctx, project)
}

func (r *Resolver) fanOut(ctx context.Context, project string) (Match, error) {
	candidates := r.hosts.List()
	if len(candidates) == 0 {
		return Match{}, apierrors.New(apierrors.NotFound, "no hosts registered")
	}

	boundedCtx, cancel := context.WithTimeout(ctx, r.wallClock)
	defer cancel()

	g, gctx := errgroup.WithContext(boundedCtx)
	matches := make([]Match, len(candidates))
	found := make([]bool, len(candidates))

	for i, h := range candidates {
		i, h := i, h
		g.Go(func() error {
			path, err := r.discovery.Resolve(gctx, h, project)
			if err != nil {
				// A miss on one host is not a fan-out failure; only a real
				// timeout/cancellation should abort the whole group.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				return nil
			}
			matches[i] = Match{Host: h, Path: path}
			found[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Match{}, apierrors.Wrap(apierrors.Timeout, err, "host resolution for project %q timed out", project)
	}

	var hits []Match
	for i, ok := range found {
		if ok {
			hits = append(hits, matches[i])
		}
	}

	switch len(hits) {
	case 0:
		return Match{}, apierrors.New(apierrors.NotFound, "project %q not found on any registered host", project)
	case 1:
		return hits[0], nil
	default:
		names := make([]string, len(hits))
		for i, m := range hits {
			names[i] = m.Host.Name
		}
		sort.Strings(names)
		return Match{}, apierrors.New(apierrors.Ambiguous,
			"project %q resolves on multiple hosts: %v", project, names)
	}
}
