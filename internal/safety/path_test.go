package safety

import "testing"

func TestValidateSecurePath(t *testing.T) {
	cases := []struct {
		path    string
		wantErr bool
	}{
		{"/stacks/plex/compose.yml", false},
		{"/stacks/plex/./compose.yml", false},
		{"relative/path", true},
		{"/stacks/../etc/passwd", true},
		{"/stacks/plex/../../etc/passwd", true},
		{"/stacks/plex\x00/compose.yml", true},
		{"/stacks/plex;rm/compose.yml", true},
		{"", true},
	}
	for _, tt := range cases {
		_, err := ValidateSecurePath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateSecurePath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
		}
	}
}

func TestValidateSecurePath_CanonicalForm(t *testing.T) {
	got, err := ValidateSecurePath("/stacks/plex/./compose.yml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/stacks/plex/compose.yml" {
		t.Fatalf("got %q, want canonicalized path", got)
	}
}
