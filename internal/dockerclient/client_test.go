package dockerclient

import (
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
)

func TestConvertPorts(t *testing.T) {
	in := []container.Port{
		{PrivatePort: 80, Type: "tcp", IP: "0.0.0.0", PublicPort: 8080},
		{PrivatePort: 443, Type: "tcp"}, // unbound: no host port/ip
	}
	out := convertPorts(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(out))
	}
	if out[0].HostPort != 8080 || out[0].HostIP != "0.0.0.0" {
		t.Fatalf("unexpected binding: %+v", out[0])
	}
}

func TestParseLogLines(t *testing.T) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	text := ts + " hello world\n" + ts + " second line\n"
	entries := parseLogLines(text, "stdout")
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Line != "hello world" {
		t.Fatalf("expected stripped timestamp, got %q", entries[0].Line)
	}
	if entries[0].Stream != "stdout" {
		t.Fatalf("expected stream stdout, got %q", entries[0].Stream)
	}
}

func TestSplitTimestamp_NoTimestamp(t *testing.T) {
	ts, line := splitTimestamp("just a plain line")
	if !ts.IsZero() {
		t.Fatalf("expected zero time, got %v", ts)
	}
	if line != "just a plain line" {
		t.Fatalf("expected line unchanged, got %q", line)
	}
}

func TestCalculateCPUPercent(t *testing.T) {
	s := container.StatsResponse{}
	s.CPUStats.CPUUsage.TotalUsage = 200
	s.PreCPUStats.CPUUsage.TotalUsage = 100
	s.CPUStats.SystemUsage = 2000
	s.PreCPUStats.SystemUsage = 1000
	s.CPUStats.CPUUsage.PercpuUsage = []uint64{1, 2}

	pct := calculateCPUPercent(s)
	want := (100.0 / 1000.0) * 2 * 100
	if pct != want {
		t.Fatalf("expected %.2f, got %.2f", want, pct)
	}
}

func TestCalculateCPUPercent_ZeroDelta(t *testing.T) {
	s := container.StatsResponse{}
	if got := calculateCPUPercent(s); got != 0 {
		t.Fatalf("expected 0 for zero delta, got %f", got)
	}
}
