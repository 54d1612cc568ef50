package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/rcourtman/dockfleet/internal/models"
)

func TestLineDiff_IdenticalContent(t *testing.T) {
	if diff := lineDiff("a\nb\nc", "a\nb\nc"); diff != nil {
		t.Fatalf("expected no diff lines, got %v", diff)
	}
}

func TestLineDiff_DifferingLine(t *testing.T) {
	diff := lineDiff("a\nb\nc", "a\nX\nc")
	if len(diff) != 1 {
		t.Fatalf("expected exactly 1 differing line, got %v", diff)
	}
	if !strings.Contains(diff[0], "line 2") {
		t.Fatalf("expected the diff to reference line 2, got %q", diff[0])
	}
}

func TestLineDiff_DifferentLengths(t *testing.T) {
	diff := lineDiff("a\nb", "a\nb\nc")
	if len(diff) != 1 {
		t.Fatalf("expected 1 diff line for the trailing extra line, got %v", diff)
	}
}

func TestParseZFSLine(t *testing.T) {
	fields := parseZFSLine("tank\t1000\t200\t800\t-\t-\tONLINE")
	if len(fields) != 7 {
		t.Fatalf("expected 7 tab-separated fields, got %d: %v", len(fields), fields)
	}
	if fields[0] != "tank" || fields[6] != "ONLINE" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestFilterGrep_NoPattern(t *testing.T) {
	result := models.ExecResult{Stdout: "line one\nline two"}
	got := filterGrep(result, "")
	if got.Stdout != result.Stdout {
		t.Fatalf("expected unfiltered output when pattern is empty, got %q", got.Stdout)
	}
}

func TestFilterGrep_CaseInsensitive(t *testing.T) {
	result := models.ExecResult{Stdout: "ERROR: disk full\ninfo: all good\nWARN: low disk"}
	got := filterGrep(result, "disk")
	lines := strings.Split(got.Stdout, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 matching lines, got %v", lines)
	}
	if !strings.Contains(got.Stdout, "ERROR") || !strings.Contains(got.Stdout, "WARN") {
		t.Fatalf("expected both disk-related lines kept, got %q", got.Stdout)
	}
}

func TestRequirePath_Valid(t *testing.T) {
	path, err := requirePath(models.RequestEnvelope{Fields: map[string]interface{}{"path": "/etc/hosts"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/etc/hosts" {
		t.Fatalf("got %q, want /etc/hosts", path)
	}
}

func TestRequirePath_RejectsRelative(t *testing.T) {
	_, err := requirePath(models.RequestEnvelope{Fields: map[string]interface{}{"path": "etc/hosts"}})
	if err == nil {
		t.Fatal("expected an error for a relative path")
	}
}

func TestRequirePath_RejectsTraversal(t *testing.T) {
	_, err := requirePath(models.RequestEnvelope{Fields: map[string]interface{}{"path": "/etc/../root/.ssh/id_rsa"}})
	if err == nil {
		t.Fatal("expected an error for a path that traverses above its root")
	}
}

func TestScoutNodes(t *testing.T) {
	d := &Deps{Registry: testRegistry(t)}
	structured, summary, err := d.scoutNodes(context.Background(), models.RequestEnvelope{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(summary, "2") {
		t.Fatalf("expected summary to mention 2 hosts, got %q", summary)
	}
	if structured == nil {
		t.Fatal("expected a non-nil structured payload")
	}
}
