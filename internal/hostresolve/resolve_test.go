package hostresolve

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
)

type fakeHosts struct {
	hosts []models.HostConfig
}

func (f *fakeHosts) List() []models.HostConfig { return f.hosts }

func (f *fakeHosts) FindByName(name string) (models.HostConfig, error) {
	for _, h := range f.hosts {
		if h.Name == name {
			return h, nil
		}
	}
	return models.HostConfig{}, apierrors.New(apierrors.NotFound, "host %q not registered", name)
}

type fakeDiscovery struct {
	mu      sync.Mutex
	resolve map[string]string // hostname -> path, absent means NotFound
	delay   time.Duration
}

func (f *fakeDiscovery) Resolve(ctx context.Context, host models.HostConfig, project string) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path, ok := f.resolve[host.Name]
	if !ok {
		return "", apierrors.New(apierrors.NotFound, "not found on %s", host.Name)
	}
	return path, nil
}

func threeHosts() []models.HostConfig {
	return []models.HostConfig{
		{Name: "a", Protocol: "socket"},
		{Name: "b", Protocol: "socket"},
		{Name: "c", Protocol: "socket"},
	}
}

func TestResolveHost_ExplicitHost(t *testing.T) {
	r := New(&fakeHosts{hosts: threeHosts()}, &fakeDiscovery{resolve: map[string]string{"b": "/compose/app/docker-compose.yml"}}, 0)

	m, err := r.ResolveHost(context.Background(), "b", "app")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Host.Name != "b" || m.Path != "/compose/app/docker-compose.yml" {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestResolveHost_ExplicitHostUnregistered(t *testing.T) {
	r := New(&fakeHosts{hosts: threeHosts()}, &fakeDiscovery{}, 0)
	_, err := r.ResolveHost(context.Background(), "ghost", "app")
	if apierrors.KindOf(err) != apierrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestResolveHost_FanOutSingleMatch(t *testing.T) {
	r := New(&fakeHosts{hosts: threeHosts()}, &fakeDiscovery{resolve: map[string]string{"b": "/compose/app/docker-compose.yml"}}, 0)

	m, err := r.ResolveHost(context.Background(), "", "app")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Host.Name != "b" {
		t.Fatalf("expected host b, got %s", m.Host.Name)
	}
}

func TestResolveHost_FanOutNoMatch(t *testing.T) {
	r := New(&fakeHosts{hosts: threeHosts()}, &fakeDiscovery{}, 0)
	_, err := r.ResolveHost(context.Background(), "", "app")
	if apierrors.KindOf(err) != apierrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestResolveHost_FanOutAmbiguous(t *testing.T) {
	disc := &fakeDiscovery{resolve: map[string]string{
		"a": "/compose/app/docker-compose.yml",
		"c": "/other/app/docker-compose.yml",
	}}
	r := New(&fakeHosts{hosts: threeHosts()}, disc, 0)

	_, err := r.ResolveHost(context.Background(), "", "app")
	if apierrors.KindOf(err) != apierrors.Ambiguous {
		t.Fatalf("expected Ambiguous, got %v", err)
	}
}

func TestResolveHost_NoRegisteredHosts(t *testing.T) {
	r := New(&fakeHosts{}, &fakeDiscovery{}, 0)
	_, err := r.ResolveHost(context.Background(), "", "app")
	if apierrors.KindOf(err) != apierrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestResolveHost_WallClockTimeout(t *testing.T) {
	disc := &fakeDiscovery{resolve: map[string]string{"a": "/x/docker-compose.yml"}, delay: 50 * time.Millisecond}
	r := New(&fakeHosts{hosts: threeHosts()}, disc, 5*time.Millisecond)

	_, err := r.ResolveHost(context.Background(), "", "app")
	if apierrors.KindOf(err) != apierrors.Timeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
}
