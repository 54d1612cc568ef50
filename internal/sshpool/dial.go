package sshpool

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/rcourtman/dockfleet/internal/models"
)

// sshDialer is the production Dialer: it opens a real golang.org/x/crypto/ssh
// connection using HostConfig.SSHUser/SSHKeyPath, enforcing the same posture
// as the forced CLI options in spec §6.5 (BatchMode, a short connect
// deadline, and accept-new-on-first-sight host key trust).
type sshDialer struct {
	knownHosts *KnownHostsManager
	connectTimeout time.Duration
}

// NewSSHDialer builds the production Dialer, backed by a KnownHostsManager
// rooted at knownHostsPath (created on first use if absent).
func NewSSHDialer(knownHostsPath string) (Dialer, error) {
	km, err := NewKnownHostsManager(knownHostsPath)
	if err != nil {
		return nil, err
	}
	return &sshDialer{knownHosts: km, connectTimeout: 5 * time.Second}, nil
}

func (d *sshDialer) Dial(ctx context.Context, host models.HostConfig) (Session, error) {
	keyBytes, err := os.ReadFile(host.SSHKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read ssh key %s: %w", host.SSHKeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse ssh key %s: %w", host.SSHKeyPath, err)
	}

	port := host.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host.Host, fmt.Sprintf("%d", port))

	// accept-new: trust and persist a host key seen for the first time,
	// but reject a changed key for a host already on record.
	hostKeyCallback := d.knownHosts.AcceptNewCallback()

	cfg := &ssh.ClientConfig{
		User:            host.SSHUser,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.connectTimeout,
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake %s: %w", addr, err)
	}

	client := ssh.NewClient(clientConn, chans, reqs)
	return &sshSession{client: client}, nil
}

// sshSession is the production Session, one *ssh.Client per lease.
type sshSession struct {
	client *ssh.Client
}

func (s *sshSession) Run(ctx context.Context, command string, maxBufferBytes int) (stdout, stderr string, exitCode int, truncated bool, err error) {
	session, err := s.client.NewSession()
	if err != nil {
		return "", "", -1, false, fmt.Errorf("new ssh session: %w", err)
	}
	defer session.Close()

	outBuf := newCapWriter(maxBufferBytes)
	errBuf := newCapWriter(maxBufferBytes)
	session.Stdout = outBuf
	session.Stderr = errBuf

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return outBuf.String(), errBuf.String(), -1, false, ctx.Err()
	case <-outBuf.overflow:
		session.Signal(ssh.SIGKILL)
		<-done
		return outBuf.String(), errBuf.String(), -1, true, nil
	case <-errBuf.overflow:
		session.Signal(ssh.SIGKILL)
		<-done
		return outBuf.String(), errBuf.String(), -1, true, nil
	case runErr := <-done:
		if runErr == nil {
			return outBuf.String(), errBuf.String(), 0, false, nil
		}
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			return outBuf.String(), errBuf.String(), exitErr.ExitStatus(), false, nil
		}
		return outBuf.String(), errBuf.String(), -1, false, runErr
	}
}

func (s *sshSession) Close() error {
	return s.client.Close()
}

// capWriter stops accepting bytes once it hits limit, checking the cap
// before each append rather than after, and closes overflow the first time
// that happens so the caller can kill the remote process immediately
// instead of only finding out once the full stream has already arrived.
type capWriter struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
	overflow  chan struct{}
	closeOnce sync.Once
}

func newCapWriter(limit int) *capWriter {
	return &capWriter{limit: limit, overflow: make(chan struct{})}
}

func (c *capWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.markTruncated()
		return len(p), nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.markTruncated()
		return len(p), nil
	}
	return c.buf.Write(p)
}

// markTruncated must be called with mu held.
func (c *capWriter) markTruncated() {
	c.truncated = true
	c.closeOnce.Do(func() { close(c.overflow) })
}

func (c *capWriter) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
