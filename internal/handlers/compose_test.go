package handlers

import "testing"

func TestParseComposeLs(t *testing.T) {
	stdout := `[{"Name":"web","ConfigFiles":"/srv/web/docker-compose.yml","Status":"running(2)"},` +
		`{"Name":"db","ConfigFiles":"/srv/db/docker-compose.yml,/srv/db/override.yml","Status":"running(1)"}]`

	got := parseComposeLs(stdout, "alpha")
	if len(got) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(got))
	}
	if got[0].Project != "web" || got[0].ComposeFilePath != "/srv/web/docker-compose.yml" {
		t.Fatalf("unexpected first entry: %+v", got[0])
	}
	if got[0].HostName != "alpha" || got[0].Source != "docker-ls" {
		t.Fatalf("unexpected host/source: %+v", got[0])
	}
	if got[1].ComposeFilePath != "/srv/db/docker-compose.yml" {
		t.Fatalf("expected only the first config file path, got %q", got[1].ComposeFilePath)
	}
}

func TestParseComposeLs_InvalidJSON(t *testing.T) {
	if got := parseComposeLs("not json", "alpha"); got != nil {
		t.Fatalf("expected nil for malformed output, got %+v", got)
	}
}

func TestParseComposeLs_Empty(t *testing.T) {
	got := parseComposeLs("[]", "alpha")
	if len(got) != 0 {
		t.Fatalf("expected zero entries, got %+v", got)
	}
}
