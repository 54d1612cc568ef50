package sshpool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// ErrNoHostKeys is returned when a keyscan produced no usable host key line.
var ErrNoHostKeys = errors.New("sshpool: keyscan returned no host keys")

// keyscanFunc runs ssh-keyscan (or a test double) for host:port.
type keyscanFunc func(ctx context.Context, host string, port int, timeout time.Duration) ([]byte, error)

func defaultKeyscan(ctx context.Context, host string, port int, timeout time.Duration) ([]byte, error) {
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(scanCtx, "ssh-keyscan", "-p", strconv.Itoa(port), "-T", strconv.Itoa(int(timeout.Seconds())), host)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ssh-keyscan %s: %w", host, err)
	}
	return out.Bytes(), nil
}

// KnownHostsManager owns a known_hosts file: it keyscans a host the first
// time it's seen ("accept-new") and persists the result so future sessions
// verify against a pinned key instead of trusting blindly every time.
// Adapted from the host-key trust workflow the teacher uses for its own SSH
// transport, generalized from a single-process cache to this pool's
// multi-host use.
type KnownHostsManager struct {
	path    string
	keyscan keyscanFunc
	timeout time.Duration

	mu   sync.Mutex
	seen map[string]bool
}

// ManagerOption configures a KnownHostsManager.
type ManagerOption func(*KnownHostsManager)

// WithKeyscanFunc overrides the keyscan implementation (tests use this).
func WithKeyscanFunc(fn keyscanFunc) ManagerOption {
	return func(m *KnownHostsManager) { m.keyscan = fn }
}

// WithTimeout overrides the keyscan timeout.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *KnownHostsManager) { m.timeout = d }
}

// NewKnownHostsManager (exported as NewManager alias below for grounding
// symmetry) opens or creates the known_hosts file at path.
func NewKnownHostsManager(path string, opts ...ManagerOption) (*KnownHostsManager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sshpool: known_hosts path is required")
	}
	m := &KnownHostsManager{
		path:    path,
		keyscan: defaultKeyscan,
		timeout: 5 * time.Second,
		seen:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.ensureFile(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewManager is an alias kept for parity with the reference implementation's
// constructor name.
func NewManager(path string, opts ...ManagerOption) (*KnownHostsManager, error) {
	return NewKnownHostsManager(path, opts...)
}

func (m *KnownHostsManager) ensureFile() error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create known_hosts dir: %w", err)
	}
	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("create known_hosts file: %w", err)
	}
	return f.Close()
}

// Ensure keyscans host on port 22 unless this manager has already recorded it.
func (m *KnownHostsManager) Ensure(ctx context.Context, host string) error {
	return m.EnsureWithPort(ctx, host, 22)
}

// EnsureWithPort keyscans host:port unless this manager has already recorded
// it in its in-memory set; entries already in the file are not consulted.
func (m *KnownHostsManager) EnsureWithPort(ctx context.Context, host string, port int) error {
	if strings.TrimSpace(host) == "" {
		return errors.New("sshpool: host is required")
	}
	if port == 0 {
		port = 22
	}

	key := fmt.Sprintf("%s:%d", host, port)
	m.mu.Lock()
	already := m.seen[key]
	m.mu.Unlock()
	if already {
		return nil
	}

	raw, err := m.keyscan(ctx, host, port, m.timeout)
	if err != nil {
		return err
	}

	lines := splitLines(raw, host, port)
	if len(lines) == 0 {
		return ErrNoHostKeys
	}
	return m.EnsureWithEntries(ctx, host, port, lines)
}

// EnsureWithEntries appends pre-fetched raw known_hosts lines for host:port,
// skipping blank and comment lines and failing on a line whose key does not
// parse. Lines are not checked against host or port.
func (m *KnownHostsManager) EnsureWithEntries(ctx context.Context, host string, port int, entries [][]byte) error {
	if strings.TrimSpace(host) == "" {
		return errors.New("sshpool: host is required")
	}
	if len(entries) == 0 {
		return errors.New("sshpool: no host key entries provided")
	}

	var normalized []string
	for _, e := range entries {
		line := strings.TrimSpace(string(e))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.SplitN(line, " ", 2)[1])); err != nil {
			return fmt.Errorf("sshpool: invalid known_hosts entry %q: %w", line, err)
		}
		normalized = append(normalized, line)
	}
	if len(normalized) == 0 {
		return fmt.Errorf("sshpool: no valid known_hosts entries for %s", host)
	}

	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("sshpool: open known_hosts: %w", err)
	}
	defer f.Close()

	for _, line := range normalized {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("sshpool: write known_hosts: %w", err)
		}
	}

	m.mu.Lock()
	m.seen[fmt.Sprintf("%s:%d", host, port)] = true
	m.mu.Unlock()
	return nil
}

// AcceptNewCallback returns an ssh.HostKeyCallback that verifies against the
// known_hosts file, mirroring `StrictHostKeyChecking=accept-new`: an unknown
// host is trusted and its key persisted on first sight, but a host with a
// recorded key that changed is rejected.
func (m *KnownHostsManager) AcceptNewCallback() ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		callback, err := knownhosts.New(m.path)
		if err == nil {
			if verr := callback(hostname, remote, key); verr == nil {
				return nil
			} else if !knownhosts.IsHostKeyChanged(verr) && knownhosts.IsHostUnknown(verr) {
				line := knownhosts.Line([]string{hostname}, key)
				f, ferr := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
				if ferr != nil {
					return ferr
				}
				defer f.Close()
				_, werr := f.WriteString(line + "\n")
				return werr
			} else {
				return verr
			}
		}
		return err
	}
}

func splitLines(raw []byte, host string, port int) [][]byte {
	var out [][]byte
	for _, line := range bytes.Split(raw, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || bytes.HasPrefix(trimmed, []byte("|1|")) {
			// Hashed entries (ssh-keyscan -H) cannot be matched by host
			// substring; treat them as unusable for this cache format.
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
