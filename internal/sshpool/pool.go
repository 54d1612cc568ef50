// Package sshpool implements the bounded per-host SSH connection pool (C3).
// Compose operations issue many short commands against the same host; this
// pool removes the repeated TCP+auth cost of dialing a new session per
// command while bounding how many sessions a single host has to serve at
// once. The core shape — a per-entity mutex, a FIFO idle queue, and a
// condition variable for waiters — follows the same pattern as the runner
// pool in the reference material this was modeled on, generalized from a
// single global pool to one pool per host name so that hosts never contend
// with each other.
package sshpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/circuit"
	"github.com/rcourtman/dockfleet/internal/logging"
	"github.com/rcourtman/dockfleet/internal/metrics"
	"github.com/rcourtman/dockfleet/internal/models"
)

// Config holds the pool's policy parameters (§4.3).
type Config struct {
	MaxPerHost          int
	IdleTTL             time.Duration
	AcquireTimeout       time.Duration
	HealthProbeTimeout  time.Duration
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		MaxPerHost:         5,
		IdleTTL:            5 * time.Minute,
		AcquireTimeout:     30 * time.Second,
		HealthProbeTimeout: 5 * time.Second,
	}
}

// Session is one live shell connection to a host. Dialer implementations
// wrap a real *ssh.Client; tests substitute a fake.
type Session interface {
	// Run executes a command, capping stdout/stderr at maxBufferBytes as
	// they are read rather than after the command exits. truncated reports
	// whether either stream was cut off; the process is killed the moment
	// that happens rather than left to finish producing discarded output.
	Run(ctx context.Context, command string, maxBufferBytes int) (stdout string, stderr string, exitCode int, truncated bool, err error)
	Close() error
}

// Dialer opens new Sessions against a host. The production implementation
// dials golang.org/x/crypto/ssh with HostConfig.SSHUser/SSHKeyPath and a
// golang.org/x/crypto/ssh/knownhosts callback; see dial.go.
type Dialer interface {
	Dial(ctx context.Context, host models.HostConfig) (Session, error)
}

// entry is one pooled session plus its lifecycle bookkeeping (PoolEntry, §3).
type entry struct {
	session    Session
	lastUsedAt time.Time
}

// hostState is the per-host pool: an idle FIFO queue, a live count, and a
// condition variable for acquirers waiting at capacity. Mutated only while
// holding mu — one mutex per host, never a single pool-wide lock, so that a
// slow or overloaded host cannot stall acquisitions against another.
type hostState struct {
	mu      sync.Mutex
	cond    *sync.Cond
	idle    []*entry
	total   int
	breaker *circuit.Breaker
}

// Pool is the full per-host SSH session pool.
type Pool struct {
	cfg    Config
	dialer Dialer
	log    zerolog.Logger

	mu    sync.Mutex
	hosts map[string]*hostState

	stopMaintainer chan struct{}
	maintainerOnce sync.Once
}

// New constructs a Pool and starts its idle-eviction maintainer goroutine.
func New(dialer Dialer, cfg Config) *Pool {
	p := &Pool{
		cfg:            cfg,
		dialer:         dialer,
		log:            logging.For("sshpool"),
		hosts:          make(map[string]*hostState),
		stopMaintainer: make(chan struct{}),
	}
	go p.maintain()
	return p
}

func (p *Pool) stateFor(hostName string) *hostState {
	p.mu.Lock()
	defer p.mu.Unlock()
	hs, ok := p.hosts[hostName]
	if !ok {
		hs = &hostState{breaker: circuit.NewBreaker(hostName, circuit.DefaultConfig())}
		hs.cond = sync.NewCond(&hs.mu)
		p.hosts[hostName] = hs
	}
	return hs
}

// Acquire leases one healthy session for host, dialing or waiting as needed
// per the acquire algorithm in §4.3.
func (p *Pool) Acquire(ctx context.Context, host models.HostConfig) (*Lease, error) {
	hs := p.stateFor(host.Name)

	if !hs.breaker.CanAllow() {
		return nil, apierrors.New(apierrors.Connectivity, "ssh pool: circuit open for host %q", host.Name)
	}

	e, err := p.acquireEntry(ctx, host, hs)
	if err != nil {
		hs.breaker.RecordFailureWithCategory(err, circuit.CategorizeError(err))
		return nil, err
	}

	if err := p.probe(ctx, e); err != nil {
		p.discard(host.Name, hs, e)
		e2, err2 := p.acquireEntry(ctx, host, hs)
		if err2 != nil {
			hs.breaker.RecordFailureWithCategory(err2, circuit.CategorizeError(err2))
			return nil, err2
		}
		if err := p.probe(ctx, e2); err != nil {
			p.discard(host.Name, hs, e2)
			hs.breaker.RecordFailureWithCategory(err, circuit.CategorizeError(err))
			return nil, apierrors.Wrap(apierrors.Connectivity, err, "ssh pool: health probe failed twice for host %q", host.Name)
		}
		e = e2
	}

	hs.breaker.RecordSuccess()
	p.reportState(host.Name, hs)
	return &Lease{pool: p, hostState: hs, hostName: host.Name, entry: e}, nil
}

// reportState publishes a host's current idle/total session counts.
func (p *Pool) reportState(hostName string, hs *hostState) {
	hs.mu.Lock()
	total := hs.total
	idle := len(hs.idle)
	hs.mu.Unlock()
	metrics.ObservePoolState(hostName, total, idle)
}

// acquireEntry pops an idle entry, dials a new one under capacity, or waits.
func (p *Pool) acquireEntry(ctx context.Context, host models.HostConfig, hs *hostState) (*entry, error) {
	hs.mu.Lock()
	for {
		if n := len(hs.idle); n > 0 {
			e := hs.idle[0]
			hs.idle = hs.idle[1:]
			hs.mu.Unlock()
			return e, nil
		}
		if hs.total < p.cfg.MaxPerHost {
			hs.total++
			hs.mu.Unlock()
			session, err := p.dialer.Dial(ctx, host)
			if err != nil {
				hs.mu.Lock()
				hs.total--
				hs.mu.Unlock()
				return nil, apierrors.Wrap(apierrors.Connectivity, err, "ssh pool: dial %q failed", host.Name)
			}
			return &entry{session: session, lastUsedAt: time.Now()}, nil
		}

		if waitWithTimeout(ctx, hs.cond, p.cfg.AcquireTimeout) {
			hs.mu.Unlock()
			return nil, apierrors.New(apierrors.Timeout, "ssh pool: acquire timed out for host %q", host.Name)
		}
		// Woken by a release or a signal; loop back and re-check idle/capacity.
		if ctx.Err() != nil {
			hs.mu.Unlock()
			return nil, apierrors.Wrap(apierrors.Timeout, ctx.Err(), "ssh pool: acquire cancelled for host %q", host.Name)
		}
	}
}

// waitWithTimeout blocks on cond.Wait with a bound, reporting whether the
// bound (rather than a signal) is what woke it. sync.Cond has no native
// timeout, so a helper goroutine nudges the condition variable when the
// deadline elapses.
func waitWithTimeout(ctx context.Context, cond *sync.Cond, timeout time.Duration) (timedOut bool) {
	done := make(chan struct{})
	timer := time.AfterFunc(timeout, func() {
		cond.L.Lock()
		close(done)
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer timer.Stop()

	cond.Wait()
	select {
	case <-done:
		return true
	default:
		return false
	}
}

// probe runs a cheap liveness check against an entry before handing it out.
func (p *Pool) probe(ctx context.Context, e *entry) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.HealthProbeTimeout)
	defer cancel()
	stdout, _, exitCode, _, err := e.session.Run(probeCtx, "echo ok", 64)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	if exitCode != 0 {
		return fmt.Errorf("health probe: non-zero exit %d", exitCode)
	}
	if len(stdout) == 0 {
		return fmt.Errorf("health probe: empty response")
	}
	return nil
}

func (p *Pool) discard(hostName string, hs *hostState, e *entry) {
	e.session.Close()
	hs.mu.Lock()
	hs.total--
	total, idle := hs.total, len(hs.idle)
	hs.mu.Unlock()
	metrics.ObservePoolState(hostName, total, idle)
}

// release returns a leased entry to the idle queue and wakes one waiter.
func (p *Pool) release(hostName string, hs *hostState, e *entry) {
	e.lastUsedAt = time.Now()
	hs.mu.Lock()
	hs.idle = append(hs.idle, e)
	total, idle := hs.total, len(hs.idle)
	hs.mu.Unlock()
	hs.cond.Signal()
	metrics.ObservePoolState(hostName, total, idle)
}

// CloseHost closes every idle session for one host and resets its session
// count. Idempotent. Sessions out on lease at the time are not closed.
func (p *Pool) CloseHost(hostName string) {
	p.mu.Lock()
	hs, ok := p.hosts[hostName]
	p.mu.Unlock()
	if !ok {
		return
	}
	hs.mu.Lock()
	idle := hs.idle
	hs.idle = nil
	hs.total = 0
	hs.mu.Unlock()
	for _, e := range idle {
		e.session.Close()
	}
}

// CloseAll ends every session across every host.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	names := make([]string, 0, len(p.hosts))
	for name := range p.hosts {
		names = append(names, name)
	}
	p.mu.Unlock()
	for _, name := range names {
		p.CloseHost(name)
	}
	p.maintainerOnce.Do(func() { close(p.stopMaintainer) })
}

// maintain evicts idle entries that have outlived idleTTL, waking every
// idleTTL/2 per §4.3.
func (p *Pool) maintain() {
	interval := p.cfg.IdleTTL / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopMaintainer:
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

func (p *Pool) evictIdle() {
	p.mu.Lock()
	states := make(map[string]*hostState, len(p.hosts))
	for name, hs := range p.hosts {
		states[name] = hs
	}
	p.mu.Unlock()

	cutoff := time.Now().Add(-p.cfg.IdleTTL)
	for name, hs := range states {
		hs.mu.Lock()
		kept := hs.idle[:0]
		var evicted []*entry
		for _, e := range hs.idle {
			if e.lastUsedAt.Before(cutoff) {
				evicted = append(evicted, e)
				hs.total--
			} else {
				kept = append(kept, e)
			}
		}
		total, idle := hs.total, len(kept)
		hs.idle = kept
		hs.mu.Unlock()
		for _, e := range evicted {
			e.session.Close()
		}
		if len(evicted) > 0 {
			metrics.ObservePoolState(name, total, idle)
			p.log.Debug().Str("host", name).Int("evicted", len(evicted)).Msg("evicted idle ssh sessions")
		}
	}
}

// Lease is a held pool entry; callers must call Release or Discard exactly
// once, on every exit path (§4.3 guarantee: "entries are always returned").
type Lease struct {
	pool      *Pool
	hostState *hostState
	hostName  string
	entry     *entry
	settled   sync.Once
}

// Run executes a command on the leased session, capping stdout/stderr at
// maxBufferBytes as they stream in.
func (l *Lease) Run(ctx context.Context, command string, maxBufferBytes int) (stdout, stderr string, exitCode int, truncated bool, err error) {
	return l.entry.session.Run(ctx, command, maxBufferBytes)
}

// Release returns the session to the idle pool for reuse.
func (l *Lease) Release() {
	l.settled.Do(func() {
		l.pool.release(l.hostName, l.hostState, l.entry)
	})
}

// Discard closes the underlying session instead of returning it, for use
// when the caller knows the session is no longer trustworthy (e.g. the
// remote command was killed mid-stream on cancellation).
func (l *Lease) Discard() {
	l.settled.Do(func() {
		l.pool.discard(l.hostName, l.hostState, l.entry)
	})
}
