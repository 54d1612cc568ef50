package handlers

import (
	"testing"

	"github.com/rcourtman/dockfleet/internal/models"
)

func testContainer() models.ContainerInfo {
	return models.ContainerInfo{
		ID:     "abc123",
		Names:  []string{"/web-1"},
		Image:  "nginx:1.25",
		State:  "running",
		Labels: map[string]string{"app": "web"},
	}
}

func TestContainerMatchesFilters_State(t *testing.T) {
	c := testContainer()
	if !containerMatchesFilters(c, "running", "", "", "") {
		t.Fatal("expected a case-insensitive state match")
	}
	if containerMatchesFilters(c, "exited", "", "", "") {
		t.Fatal("expected no match for a different state")
	}
}

func TestContainerMatchesFilters_Name(t *testing.T) {
	c := testContainer()
	if !containerMatchesFilters(c, "", "web", "", "") {
		t.Fatal("expected substring name match")
	}
	if containerMatchesFilters(c, "", "db", "", "") {
		t.Fatal("expected no match for an unrelated name")
	}
}

func TestContainerMatchesFilters_Image(t *testing.T) {
	c := testContainer()
	if !containerMatchesFilters(c, "", "", "nginx", "") {
		t.Fatal("expected wildcard substring match on image")
	}
	if containerMatchesFilters(c, "", "", "redis", "") {
		t.Fatal("expected no match for an unrelated image")
	}
}

func TestContainerMatchesFilters_Label(t *testing.T) {
	c := testContainer()
	if !containerMatchesFilters(c, "", "", "", "app") {
		t.Fatal("expected a present label key to match")
	}
	if containerMatchesFilters(c, "", "", "", "missing") {
		t.Fatal("expected no match for an absent label key")
	}
}

func TestContainerNameMatches(t *testing.T) {
	names := []string{"/web-1", "/web-1-alt"}
	if !containerNameMatches(names, "web-1") {
		t.Fatal("expected a substring match across names")
	}
	if containerNameMatches(names, "db") {
		t.Fatal("expected no match for an unrelated substring")
	}
}
