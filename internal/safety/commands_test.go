package safety

import "testing"

func TestValidateCommand_AllowListed(t *testing.T) {
	tokens, err := ValidateCommand("docker ps -a")
	if err != nil {
		t.Fatalf("ValidateCommand returned error: %v", err)
	}
	want := []string{"docker", "ps", "-a"}
	if len(tokens) != len(want) {
		t.Fatalf("got %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("got %v, want %v", tokens, want)
		}
	}
}

func TestValidateCommand_NotAllowListed(t *testing.T) {
	_, err := ValidateCommand("rm -rf /")
	if err == nil {
		t.Fatal("expected error for non-allow-listed command")
	}
}

func TestValidateCommand_Metacharacters(t *testing.T) {
	// Spec §8 property 12.
	cases := []string{
		"ls; rm -rf /",
		"ls | rm -rf /",
		"ls && rm -rf /",
		"ls `whoami`",
		"ls $(whoami)",
		"ls < /etc/passwd",
		"ls > /etc/passwd",
		"ls\nrm -rf /",
		"ls\x00rm",
	}
	for _, cmd := range cases {
		if _, err := ValidateCommand(cmd); err == nil {
			t.Errorf("ValidateCommand(%q) = nil error, want InvalidInput", cmd)
		}
	}
}

func TestValidateCommand_Empty(t *testing.T) {
	if _, err := ValidateCommand(""); err == nil {
		t.Fatal("expected error for empty command")
	}
	if _, err := ValidateCommand("   "); err == nil {
		t.Fatal("expected error for whitespace-only command")
	}
}

func TestValidateArgs(t *testing.T) {
	if err := ValidateArgs([]string{"-p", "8080:80", "myimage"}); err != nil {
		t.Fatalf("ValidateArgs returned error: %v", err)
	}
	if err := ValidateArgs([]string{"ok; rm -rf /"}); err == nil {
		t.Fatal("expected error for metacharacter in argument")
	}
	longArg := make([]byte, 501)
	for i := range longArg {
		longArg[i] = 'a'
	}
	if err := ValidateArgs([]string{string(longArg)}); err == nil {
		t.Fatal("expected error for over-long argument")
	}
}
