// Package exec provides the uniform command-execution contract (C4):
// ExecLocal runs a command on the control-plane's own host; ExecSSH runs it
// on a remote host through a pooled session. Docker Engine operations
// (ExecDocker) live in internal/dockerclient since they speak the Engine API
// rather than a shell. Every executor shares the same
// {timeoutMs, cwd, maxBufferBytes} contract and the same settlement-guard
// cleanup discipline the teacher's WebSocket command server uses for its
// exactly-once done signaling, adapted here to a synchronous call instead of
// an async request/response pair.
package exec

import (
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
	"github.com/rcourtman/dockfleet/internal/safety"
	"github.com/rcourtman/dockfleet/internal/sshpool"
)

// Options is the uniform per-call contract every executor accepts.
type Options struct {
	TimeoutMs      int
	Cwd            string
	MaxBufferBytes int
}

const defaultMaxBufferBytes = 1 << 20 // 1 MiB, matches the teacher's read-file default cap

func (o Options) timeout() time.Duration {
	if o.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(o.TimeoutMs) * time.Millisecond
}

func (o Options) bufferCap() int {
	if o.MaxBufferBytes <= 0 {
		return defaultMaxBufferBytes
	}
	return o.MaxBufferBytes
}

// capBuffer wraps a bytes.Buffer that stops accepting writes once it hits
// the cap instead of growing unbounded. The cap is checked before each
// append, not after, and the first write to cross it closes overflow so the
// caller can kill the process immediately instead of finding out only once
// the command has already exited.
type capBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
	overflow  chan struct{}
	closeOnce sync.Once
}

func newCapBuffer(limit int) *capBuffer {
	return &capBuffer{limit: limit, overflow: make(chan struct{})}
}

func (c *capBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.limit - c.buf.Len()
	if remaining <= 0 {
		c.markTruncated()
		return len(p), nil // swallow, but report success so the child process isn't blocked on a full pipe
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.markTruncated()
		return len(p), nil
	}
	return c.buf.Write(p)
}

// markTruncated must be called with mu held.
func (c *capBuffer) markTruncated() {
	c.truncated = true
	c.closeOnce.Do(func() { close(c.overflow) })
}

func (c *capBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// ExecLocal runs command directly on the control plane's own process tree.
// command must already have passed safety.ValidateCommand.
func ExecLocal(ctx context.Context, tokens []string, opts Options) (models.ExecResult, error) {
	if len(tokens) == 0 {
		return models.ExecResult{}, apierrors.New(apierrors.InvalidInput, "exec: empty command")
	}

	runCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, tokens[0], tokens[1:]...)
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}

	stdout := newCapBuffer(opts.bufferCap())
	stderr := newCapBuffer(opts.bufferCap())
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	var settle sync.Once
	result := models.ExecResult{}

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return models.ExecResult{}, apierrors.Wrap(apierrors.RemoteFailure, err, "exec: start %q", tokens[0])
	}
	go func() { done <- cmd.Wait() }()

	kill := func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-done
	}

	select {
	case <-runCtx.Done():
		settle.Do(kill)
		return models.ExecResult{}, apierrors.New(apierrors.Timeout, "exec: %q exceeded %s", tokens[0], opts.timeout())
	case <-stdout.overflow:
		settle.Do(kill)
		return models.ExecResult{}, apierrors.New(apierrors.BufferOverflow, "exec: %q exceeded %d byte stdout cap", tokens[0], opts.bufferCap())
	case <-stderr.overflow:
		settle.Do(kill)
		return models.ExecResult{}, apierrors.New(apierrors.BufferOverflow, "exec: %q exceeded %d byte stderr cap", tokens[0], opts.bufferCap())
	case waitErr := <-done:
		settle.Do(func() {
			result.Stdout = stdout.String()
			result.Stderr = stderr.String()
			result.ExitCode = exitCodeOf(waitErr)
		})
	}

	return result, nil
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// ExecSSH runs a raw command string on host via the pooled SSH session.
// The session is always returned to the pool (healthy) or discarded
// (cancelled/killed mid-stream), on every exit path, per §4.3's guarantee.
func ExecSSH(ctx context.Context, pool *sshpool.Pool, host models.HostConfig, command string, opts Options) (models.ExecResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	lease, err := pool.Acquire(runCtx, host)
	if err != nil {
		return models.ExecResult{}, err
	}

	var settle sync.Once
	settleFn := func(healthy bool) {
		settle.Do(func() {
			if healthy {
				lease.Release()
			} else {
				lease.Discard()
			}
		})
	}
	defer settleFn(true)

	stdout, stderr, exitCode, truncated, runErr := lease.Run(runCtx, command, opts.bufferCap())
	if runCtx.Err() != nil {
		settleFn(false)
		return models.ExecResult{}, apierrors.Wrap(apierrors.Timeout, runCtx.Err(), "exec: ssh command on %q exceeded %s", host.Name, opts.timeout())
	}
	if truncated {
		settleFn(false)
		return models.ExecResult{}, apierrors.New(apierrors.BufferOverflow, "exec: ssh command on %q exceeded %d byte buffer cap", host.Name, opts.bufferCap())
	}
	if runErr != nil {
		settleFn(false)
		return models.ExecResult{}, apierrors.Wrap(apierrors.RemoteFailure, runErr, "exec: ssh command failed on %q", host.Name)
	}

	return models.ExecResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}, nil
}

// Dispatch picks ExecLocal or ExecSSH based on the host's execution mode
// (§3: "presence of sshUser OR non-loopback host triggers SSH execution
// mode"), after validating the raw command string through C1.
func Dispatch(ctx context.Context, pool *sshpool.Pool, host models.HostConfig, rawCommand string, opts Options) (models.ExecResult, error) {
	tokens, err := safety.ValidateCommand(rawCommand)
	if err != nil {
		return models.ExecResult{}, apierrors.Wrap(apierrors.InvalidInput, err, "exec: rejected command")
	}

	if host.UsesSSH() {
		return ExecSSH(ctx, pool, host, rawCommand, opts)
	}
	return ExecLocal(ctx, tokens, opts)
}
