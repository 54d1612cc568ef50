package handlers

import (
	"testing"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/hostregistry"
	"github.com/rcourtman/dockfleet/internal/models"
)

func TestFirstLine(t *testing.T) {
	cases := map[string]string{
		"one\ntwo\nthree": "one",
		"  padded  ":      "padded",
		"":                "",
	}
	for in, want := range cases {
		if got := firstLine(in); got != want {
			t.Fatalf("firstLine(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseInt(t *testing.T) {
	if got := parseInt(" 8 \n"); got != 8 {
		t.Fatalf("parseInt = %d, want 8", got)
	}
	if got := parseInt("not a number"); got != 0 {
		t.Fatalf("parseInt on garbage = %d, want 0", got)
	}
}

func TestParseLoadAvg(t *testing.T) {
	got := parseLoadAvg("0.50 0.25 0.10 1/200 12345")
	want := [3]float64{0.50, 0.25, 0.10}
	if got != want {
		t.Fatalf("parseLoadAvg = %v, want %v", got, want)
	}
}

func TestParseLoadAvg_Empty(t *testing.T) {
	if got := parseLoadAvg(""); got != ([3]float64{}) {
		t.Fatalf("parseLoadAvg(\"\") = %v, want zero value", got)
	}
}

func TestParseMeminfo(t *testing.T) {
	raw := "MemTotal:       16384000 kB\nMemFree:         1000000 kB\nMemAvailable:    8000000 kB\n"
	total, free := parseMeminfo(raw)
	if total != 16384000 {
		t.Fatalf("total = %d, want 16384000", total)
	}
	if free != 8000000 {
		t.Fatalf("free (from MemAvailable) = %d, want 8000000", free)
	}
}

func TestParseDf(t *testing.T) {
	raw := "Filesystem     1K-blocks    Used Available Use% Mounted on\n" +
		"/dev/sda1       10000000 2000000   8000000  20% /\n" +
		"/dev/sda2        5000000 1000000   4000000  20% /var\n"
	rows := parseDf(raw)
	if len(rows) != 2 {
		t.Fatalf("expected 2 disk rows, got %d", len(rows))
	}
	if rows[0].Filesystem != "/dev/sda1" || rows[0].MountPoint != "/" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[0].SizeKB != 10000000 || rows[0].UsedKB != 2000000 || rows[0].AvailKB != 8000000 {
		t.Fatalf("unexpected sizes: %+v", rows[0])
	}
}

func TestParseDf_HeaderOnly(t *testing.T) {
	if rows := parseDf("Filesystem     1K-blocks    Used Available Use% Mounted on\n"); rows != nil {
		t.Fatalf("expected nil rows for header-only input, got %v", rows)
	}
}

func TestRequireHost_MissingHost(t *testing.T) {
	registry, err := hostregistry.New([]models.HostConfig{{Name: "alpha", Protocol: "socket", SocketPath: "/var/run/docker.sock"}})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}
	d := &Deps{Registry: registry}

	_, err = d.requireHost(models.RequestEnvelope{})
	if err == nil {
		t.Fatal("expected an error when host is omitted")
	}
	normalized, ok := apierrors.As(err)
	if !ok || normalized.Kind != apierrors.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestRequireHost_UnknownHost(t *testing.T) {
	registry, err := hostregistry.New([]models.HostConfig{{Name: "alpha", Protocol: "socket", SocketPath: "/var/run/docker.sock"}})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}
	d := &Deps{Registry: registry}

	_, err = d.requireHost(models.RequestEnvelope{Host: "missing"})
	if err == nil {
		t.Fatal("expected an error for an unregistered host")
	}
	normalized, ok := apierrors.As(err)
	if !ok || normalized.Kind != apierrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestRequireHost_Found(t *testing.T) {
	registry, err := hostregistry.New([]models.HostConfig{{Name: "alpha", Protocol: "socket", SocketPath: "/var/run/docker.sock"}})
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}
	d := &Deps{Registry: registry}

	host, err := d.requireHost(models.RequestEnvelope{Host: "alpha"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host.Name != "alpha" {
		t.Fatalf("got host %q, want alpha", host.Name)
	}
}
