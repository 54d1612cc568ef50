package fanout

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

func TestRun_Partial_DropsFailures(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	op := func(_ context.Context, i int) (int, error) {
		if i%2 == 0 {
			return 0, errors.New("even numbers fail")
		}
		return i * 10, nil
	}

	out := Run(context.Background(), items, 0, op, Partial)
	values := Values(out)
	sort.Ints(values)
	want := []int{10, 30, 50}
	if len(values) != len(want) {
		t.Fatalf("got %v, want %v", values, want)
	}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("got %v, want %v", values, want)
		}
	}
}

func TestRun_Aggregate_KeepsFailures(t *testing.T) {
	items := []string{"a", "b", "c"}
	op := func(_ context.Context, s string) (string, error) {
		if s == "b" {
			return "", errors.New("b failed")
		}
		return s + "!", nil
	}

	out := Run(context.Background(), items, 0, op, Aggregate)
	if len(out) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(out))
	}
	if out[1].Err == nil {
		t.Fatal("expected outcome[1] to carry its error in aggregate mode")
	}
	if out[0].Value != "a!" || out[2].Value != "c!" {
		t.Fatalf("unexpected values: %+v", out)
	}
}

func TestRun_RespectsMaxConcurrency(t *testing.T) {
	items := make([]int, 20)
	var active, maxActive int
	var mu sync.Mutex
	op := func(_ context.Context, _ int) (int, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		active--
		mu.Unlock()
		return 0, nil
	}

	Run(context.Background(), items, 3, op, Partial)
	if maxActive > 3 {
		t.Fatalf("expected at most 3 concurrent operations, observed %d", maxActive)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	out := Run[int, int](context.Background(), nil, 0, func(context.Context, int) (int, error) { return 0, nil }, Partial)
	if out != nil {
		t.Fatalf("expected nil for empty input, got %v", out)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	items := []int{1, 2, 3}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op := func(ctx context.Context, i int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	out := Run(ctx, items, 1, op, Aggregate)
	for _, o := range out {
		if o.Err == nil {
			t.Fatal("expected every outcome to carry the cancellation error")
		}
	}
}
