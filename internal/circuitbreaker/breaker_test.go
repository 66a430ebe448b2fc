package circuitbreaker

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int) (*Breaker, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(threshold, time.Minute).WithClock(clk.Now), clk
}

func TestBreaker_ClosedAllows(t *testing.T) {
	b, _ := newTestBreaker(3)
	if !b.Allow("USD") {
		t.Fatal("expected unknown key to be allowed")
	}
	if b.State("USD") != StateClosed {
		t.Fatalf("expected closed, got %v", b.State("USD"))
	}
}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(3)

	b.RecordFailure("USD")
	b.RecordFailure("USD")
	if !b.Allow("USD") {
		t.Fatal("should allow below threshold")
	}

	b.RecordFailure("USD")
	if b.Allow("USD") {
		t.Fatal("should reject at threshold")
	}
	if b.State("USD") != StateOpen {
		t.Fatalf("expected open, got %v", b.State("USD"))
	}
	if !b.Allow("EUR") {
		t.Fatal("other keys must be unaffected")
	}
}

func TestBreaker_SuccessResetsRun(t *testing.T) {
	b, _ := newTestBreaker(2)

	b.RecordFailure("USD")
	b.RecordSuccess("USD")
	b.RecordFailure("USD")
	if b.State("USD") != StateClosed {
		t.Fatal("non-consecutive failures must not open the circuit")
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, clk := newTestBreaker(1)

	b.RecordFailure("USD")
	clk.Advance(59 * time.Second)
	if b.Allow("USD") {
		t.Fatal("should stay open during cool-down")
	}

	clk.Advance(time.Second)
	if !b.Allow("USD") {
		t.Fatal("should admit a probe after cool-down")
	}
	if b.State("USD") != StateHalfOpen {
		t.Fatalf("expected half-open, got %v", b.State("USD"))
	}
	if b.Allow("USD") {
		t.Fatal("only one probe at a time")
	}

	b.RecordSuccess("USD")
	if b.State("USD") != StateClosed {
		t.Fatalf("expected closed after good probe, got %v", b.State("USD"))
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, clk := newTestBreaker(1)

	b.RecordFailure("GBP")
	clk.Advance(time.Minute)
	b.Allow("GBP")
	b.RecordFailure("GBP")

	if b.State("GBP") != StateOpen {
		t.Fatalf("expected open, got %v", b.State("GBP"))
	}
	if b.Allow("GBP") {
		t.Fatal("cool-down restarts after a failed probe")
	}
}

func TestBreaker_Execute(t *testing.T) {
	b, _ := newTestBreaker(2)
	boom := errors.New("upstream down")

	before := testutil.ToFloat64(transitions.WithLabelValues("EUR", "closed", "open"))

	for i := 0; i < 2; i++ {
		if err := b.Execute("EUR", func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected upstream error, got %v", err)
		}
	}

	called := false
	err := b.Execute("EUR", func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Fatal("fn must not run while open")
	}

	after := testutil.ToFloat64(transitions.WithLabelValues("EUR", "closed", "open"))
	if after-before != 1 {
		t.Fatalf("expected one closed→open transition, got %v", after-before)
	}
}

func TestBreaker_Open(t *testing.T) {
	b, _ := newTestBreaker(1)
	b.RecordFailure("USD")
	b.RecordFailure("GBP")
	b.RecordSuccess("EUR")

	got := b.Open()
	sort.Strings(got)
	if len(got) != 2 || got[0] != "GBP" || got[1] != "USD" {
		t.Fatalf("unexpected open keys %v", got)
	}
}

func TestBreaker_Concurrent(t *testing.T) {
	b, _ := newTestBreaker(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				b.Allow("USD")
				b.RecordFailure("USD")
				b.RecordSuccess("USD")
			}
		}()
	}
	wg.Wait()
	if b.State("USD") != StateClosed {
		t.Fatalf("expected closed, got %v", b.State("USD"))
	}
}
