package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
)

type fakeRunner struct {
	stdout   string
	exitCode int
	err      error
}

func (f *fakeRunner) Run(_ context.Context, _ models.HostConfig, _ string) (models.ExecResult, error) {
	return models.ExecResult{Stdout: f.stdout, ExitCode: f.exitCode}, f.err
}

func testHostWithRoots(t *testing.T, roots ...string) models.HostConfig {
	t.Helper()
	return models.HostConfig{Name: "h1", Protocol: "socket", ComposeSearchPaths: roots}
}

func TestResolver_CacheHit(t *testing.T) {
	cache, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.UpdateProject("h1", "myapp", ProjectEntry{Path: "/compose/myapp/docker-compose.yml"}); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(cache, &fakeRunner{err: context.DeadlineExceeded})
	path, err := r.Resolve(context.Background(), testHostWithRoots(t), "myapp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/compose/myapp/docker-compose.yml" {
		t.Fatalf("unexpected path: %s", path)
	}
}

func TestResolver_LiveQueryFallback(t *testing.T) {
	cache, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{
		exitCode: 0,
		stdout:   `[{"Name":"myapp","ConfigFiles":"/compose/myapp/docker-compose.yml,/compose/myapp/override.yml"}]`,
	}
	r := NewResolver(cache, runner)

	path, err := r.Resolve(context.Background(), testHostWithRoots(t), "myapp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/compose/myapp/docker-compose.yml" {
		t.Fatalf("unexpected path: %s", path)
	}

	entry, ok := cache.GetProject("h1", "myapp")
	if !ok || entry.DiscoveredFrom != "docker-ls" {
		t.Fatalf("expected write-through with source docker-ls, got %+v ok=%v", entry, ok)
	}
}

func TestResolver_ScanFallback(t *testing.T) {
	root := t.TempDir()
	projectDir := filepath.Join(root, "myapp")
	if err := writeComposeFixture(t, projectDir, ""); err != nil {
		t.Fatal(err)
	}

	cache, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{exitCode: 1}
	r := NewResolver(cache, runner)

	path, err := r.Resolve(context.Background(), testHostWithRoots(t, root), "myapp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(projectDir, "docker-compose.yml")
	if path != want {
		t.Fatalf("got %s, want %s", path, want)
	}

	entry, ok := cache.GetProject("h1", "myapp")
	if !ok || entry.DiscoveredFrom != "scan" {
		t.Fatalf("expected write-through with source scan, got %+v ok=%v", entry, ok)
	}
}

func TestResolver_NotFound(t *testing.T) {
	cache, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	r := NewResolver(cache, &fakeRunner{exitCode: 1})

	_, err = r.Resolve(context.Background(), testHostWithRoots(t, t.TempDir()), "ghost")
	if apierrors.KindOf(err) != apierrors.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestResolver_Invalidate(t *testing.T) {
	cache, err := NewCache(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.UpdateProject("h1", "myapp", ProjectEntry{Path: "/x/docker-compose.yml"}); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(cache, &fakeRunner{exitCode: 1})
	if err := r.Invalidate("h1", "myapp"); err != nil {
		t.Fatal(err)
	}
	if _, ok := cache.GetProject("h1", "myapp"); ok {
		t.Fatal("expected cache entry to be gone after invalidate")
	}
}

func TestIsNoSuchFile(t *testing.T) {
	if !IsNoSuchFile("open docker-compose.yml: no such file or directory") {
		t.Fatal("expected match")
	}
	if IsNoSuchFile("permission denied") {
		t.Fatal("expected no match")
	}
}

func writeComposeFixture(t *testing.T, dir string, name string) error {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	content := "services:\n  web:\n    image: nginx\n"
	if name != "" {
		content = "name: " + name + "\n" + content
	}
	return os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte(content), 0o644)
}
