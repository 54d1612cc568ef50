package formatter

import (
	"strings"
	"testing"
)

type row struct {
	Name  string
	Count int
}

func TestRender_SliceOfStructs(t *testing.T) {
	text, ok := Render([]row{{Name: "a", Count: 1}, {Name: "b", Count: 2}})
	if !ok {
		t.Fatal("expected ok=true for slice of structs")
	}
	if !strings.Contains(text, "Name") || !strings.Contains(text, "Count") {
		t.Fatalf("expected header row, got %q", text)
	}
	if !strings.Contains(text, "a") || !strings.Contains(text, "b") {
		t.Fatalf("expected both rows rendered, got %q", text)
	}
}

func TestRender_EmptySlice(t *testing.T) {
	text, ok := Render([]row{})
	if !ok || text != "(no results)" {
		t.Fatalf("expected empty-results placeholder, got %q, %v", text, ok)
	}
}

func TestRender_SingleStruct(t *testing.T) {
	text, ok := Render(row{Name: "x", Count: 3})
	if !ok || !strings.Contains(text, "Name:") || !strings.Contains(text, "x") {
		t.Fatalf("expected field dump, got %q", text)
	}
}

func TestRender_UnsupportedKind(t *testing.T) {
	if _, ok := Render(map[string]string{"a": "b"}); ok {
		t.Fatal("expected ok=false for a map")
	}
	if _, ok := Render(42); ok {
		t.Fatal("expected ok=false for a scalar")
	}
	if _, ok := Render(nil); ok {
		t.Fatal("expected ok=false for nil")
	}
}
