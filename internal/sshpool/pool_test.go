package sshpool

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rcourtman/dockfleet/internal/apierrors"
	"github.com/rcourtman/dockfleet/internal/models"
)

type fakeSession struct {
	id      int
	healthy bool
	closed  bool
}

func (s *fakeSession) Run(ctx context.Context, command string, maxBufferBytes int) (string, string, int, bool, error) {
	if !s.healthy {
		return "", "", -1, false, fmt.Errorf("session %d unhealthy", s.id)
	}
	return "ok\n", "", 0, false, nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeDialer struct {
	mu      sync.Mutex
	dials   int
	healthy bool
}

func (d *fakeDialer) Dial(ctx context.Context, host models.HostConfig) (Session, error) {
	d.mu.Lock()
	d.dials++
	n := d.dials
	d.mu.Unlock()
	return &fakeSession{id: n, healthy: d.healthy}, nil
}

func testHost(name string) models.HostConfig {
	return models.HostConfig{Name: name, Host: "10.0.0.1", Protocol: "ssh", SSHUser: "root"}
}

func TestAcquireRelease_ReusesSession(t *testing.T) {
	d := &fakeDialer{healthy: true}
	p := New(d, Config{MaxPerHost: 2, IdleTTL: time.Minute, AcquireTimeout: time.Second, HealthProbeTimeout: time.Second})
	defer p.CloseAll()

	host := testHost("h1")
	lease, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	lease.Release()

	lease2, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire second: %v", err)
	}
	lease2.Release()

	if d.dials != 1 {
		t.Fatalf("expected 1 dial (session reused), got %d", d.dials)
	}
}

func TestAcquire_RespectsMaxPerHost(t *testing.T) {
	d := &fakeDialer{healthy: true}
	p := New(d, Config{MaxPerHost: 1, IdleTTL: time.Minute, AcquireTimeout: 100 * time.Millisecond, HealthProbeTimeout: time.Second})
	defer p.CloseAll()

	host := testHost("h1")
	lease, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	_, err = p.Acquire(context.Background(), host)
	if err == nil {
		t.Fatal("expected timeout error when pool is at capacity")
	}
	if apierrors.KindOf(err) != apierrors.Timeout {
		t.Fatalf("expected Timeout kind, got %v", apierrors.KindOf(err))
	}

	lease.Release()
}

func TestAcquire_WaiterUnblockedByRelease(t *testing.T) {
	d := &fakeDialer{healthy: true}
	p := New(d, Config{MaxPerHost: 1, IdleTTL: time.Minute, AcquireTimeout: 2 * time.Second, HealthProbeTimeout: time.Second})
	defer p.CloseAll()

	host := testHost("h1")
	lease, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	resultCh := make(chan error, 1)
	go func() {
		l, err := p.Acquire(context.Background(), host)
		if err == nil {
			l.Release()
		}
		resultCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	lease.Release()

	select {
	case err := <-resultCh:
		if err != nil {
			t.Fatalf("expected waiter to acquire after release, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was never unblocked")
	}
}

func TestAcquire_UnhealthySessionDiscardedAndRetried(t *testing.T) {
	d := &fakeDialer{healthy: false}
	p := New(d, Config{MaxPerHost: 2, IdleTTL: time.Minute, AcquireTimeout: time.Second, HealthProbeTimeout: time.Second})
	defer p.CloseAll()

	host := testHost("h1")
	_, err := p.Acquire(context.Background(), host)
	if err == nil {
		t.Fatal("expected connectivity error for unhealthy sessions")
	}
	if apierrors.KindOf(err) != apierrors.Connectivity {
		t.Fatalf("expected Connectivity kind, got %v", apierrors.KindOf(err))
	}
	if d.dials != 2 {
		t.Fatalf("expected exactly one retry (2 dials), got %d", d.dials)
	}
}

func TestPerHostIndependence(t *testing.T) {
	d := &fakeDialer{healthy: true}
	p := New(d, Config{MaxPerHost: 1, IdleTTL: time.Minute, AcquireTimeout: 100 * time.Millisecond, HealthProbeTimeout: time.Second})
	defer p.CloseAll()

	h1 := testHost("h1")
	h2 := testHost("h2")

	l1, err := p.Acquire(context.Background(), h1)
	if err != nil {
		t.Fatalf("Acquire h1: %v", err)
	}
	l2, err := p.Acquire(context.Background(), h2)
	if err != nil {
		t.Fatalf("Acquire h2 should not be blocked by h1's capacity: %v", err)
	}
	l1.Release()
	l2.Release()
}

func TestCloseAll_ClosesSessions(t *testing.T) {
	d := &fakeDialer{healthy: true}
	p := New(d, Config{MaxPerHost: 2, IdleTTL: time.Minute, AcquireTimeout: time.Second, HealthProbeTimeout: time.Second})

	host := testHost("h1")
	lease, err := p.Acquire(context.Background(), host)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	session := lease.entry.session.(*fakeSession)
	lease.Release()
	p.CloseAll()

	if !session.closed {
		t.Fatal("expected session to be closed by CloseAll")
	}
}
