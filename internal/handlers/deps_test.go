package handlers

import (
	"testing"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/hostregistry"
	"github.com/rcourtman/dockfleet/internal/models"
)

func testRegistry(t *testing.T) *hostregistry.Registry {
	t.Helper()
	registry, err := hostregistry.New([]models.HostConfig{
		{Name: "alpha", Protocol: "socket", SocketPath: "/var/run/docker.sock"},
		{Name: "beta", Protocol: "socket", SocketPath: "/var/run/docker.sock"},
	})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}
	return registry
}

func TestResolveHosts_Explicit(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	hosts, err := d.resolveHosts("beta")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 1 || hosts[0].Name != "beta" {
		t.Fatalf("got %+v, want exactly [beta]", hosts)
	}
}

func TestResolveHosts_All(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	hosts, err := d.resolveHosts("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hosts) != 2 {
		t.Fatalf("got %d hosts, want 2", len(hosts))
	}
}

func TestResolveHosts_Unknown(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	_, err := d.resolveHosts("nope")
	if err == nil {
		t.Fatal("expected an error for an unregistered host")
	}
	if normalized, ok := apierrors.As(err); !ok || normalized.Kind != apierrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestSortHostsByName(t *testing.T) {
	in := []models.HostConfig{{Name: "zed"}, {Name: "alpha"}, {Name: "mid"}}
	out := sortHostsByName(in)
	if out[0].Name != "alpha" || out[1].Name != "mid" || out[2].Name != "zed" {
		t.Fatalf("unexpected order: %+v", out)
	}
	if in[0].Name != "zed" {
		t.Fatal("sortHostsByName must not mutate its input")
	}
}

func TestMatchesContainer(t *testing.T) {
	c := models.ContainerInfo{ID: "abcdef123456", Names: []string{"/web-1"}}

	if !matchesContainer(c, "abcdef123456") {
		t.Fatal("expected exact ID match")
	}
	if !matchesContainer(c, "abcdef") {
		t.Fatal("expected ID-prefix match")
	}
	if !matchesContainer(c, "web-1") {
		t.Fatal("expected name match with leading slash stripped")
	}
	if matchesContainer(c, "nothing") {
		t.Fatal("expected no match for an unrelated id")
	}
}

func TestHasPrefixID(t *testing.T) {
	if hasPrefixID("abcdef123456", "abcd") {
		t.Fatal("prefixes shorter than 6 chars must not match, to avoid ambiguous short IDs")
	}
	if !hasPrefixID("abcdef123456", "abcdef") {
		t.Fatal("expected a 6-char prefix to match")
	}
	if hasPrefixID("abcdef123456", "zzzzzz") {
		t.Fatal("expected no match for a non-matching prefix")
	}
}

func TestPaginateContainers(t *testing.T) {
	items := []models.ContainerInfo{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}

	if got := paginateContainers(items, 1, 2); len(got) != 2 || got[0].ID != "2" || got[1].ID != "3" {
		t.Fatalf("unexpected window: %+v", got)
	}
	if got := paginateContainers(items, 10, 2); got != nil {
		t.Fatalf("expected nil for an out-of-range offset, got %+v", got)
	}
	if got := paginateContainers(items, 2, 100); len(got) != 2 {
		t.Fatalf("expected limit to clamp to remaining items, got %+v", got)
	}
}
