package hostregistry

import (
	"testing"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
)

func testHosts() []models.HostConfig {
	return []models.HostConfig{
		{Name: "b-host", Host: "10.0.0.2", Protocol: "http"},
		{Name: "a-host", Host: "10.0.0.1", Protocol: "http"},
		{Name: "local", Host: "/var/run/docker.sock", Protocol: "socket"},
	}
}

func TestNew_SortsByName(t *testing.T) {
	r, err := New(testHosts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	list := r.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 hosts, got %d", len(list))
	}
	want := []string{"a-host", "b-host", "local"}
	for i, w := range want {
		if list[i].Name != w {
			t.Fatalf("position %d: got %q, want %q", i, list[i].Name, w)
		}
	}
}

func TestNew_DuplicateName(t *testing.T) {
	hosts := testHosts()
	hosts = append(hosts, models.HostConfig{Name: "a-host", Host: "10.0.0.9"})
	if _, err := New(hosts); err == nil {
		t.Fatal("expected error for duplicate host name")
	}
}

func TestNew_MissingName(t *testing.T) {
	if _, err := New([]models.HostConfig{{Host: "10.0.0.1"}}); err == nil {
		t.Fatal("expected error for missing host name")
	}
}

func TestFindByName(t *testing.T) {
	r, err := New(testHosts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, err := r.FindByName("a-host")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Host != "10.0.0.1" {
		t.Fatalf("got host %q", h.Host)
	}

	if _, err := r.FindByName("missing"); err == nil {
		t.Fatal("expected NotFound error")
	} else if apierrors.KindOf(err) != apierrors.NotFound {
		t.Fatalf("expected NotFound kind, got %v", apierrors.KindOf(err))
	}
}

func TestAllOrOne(t *testing.T) {
	r, err := New(testHosts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all, err := r.AllOrOne("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 hosts, got %d", len(all))
	}

	one, err := r.AllOrOne("local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(one) != 1 || one[0].Name != "local" {
		t.Fatalf("expected [local], got %v", one)
	}

	if _, err := r.AllOrOne("missing"); err == nil {
		t.Fatal("expected NotFound error")
	}
}

func TestCount(t *testing.T) {
	r, err := New(testHosts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Count() != 3 {
		t.Fatalf("expected count 3, got %d", r.Count())
	}
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(testHosts())
	hosts := p.Hosts()
	if len(hosts) != 3 {
		t.Fatalf("expected 3 hosts, got %d", len(hosts))
	}
	hosts[0].Name = "mutated"
	if p.Hosts()[0].Name == "mutated" {
		t.Fatal("Hosts() should return a defensive copy")
	}
}
