package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fixed(r Result) *CheckerFunc {
	return NewCheckerFunc("fixed", func(context.Context) Result { return r })
}

func TestNewAggregator(t *testing.T) {
	agg := NewAggregator()
	if agg.config.Timeout != 10*time.Second {
		t.Errorf("Default timeout = %v, want 10s", agg.config.Timeout)
	}
	if !agg.config.Parallel {
		t.Error("Default Parallel should be true")
	}

	agg = NewAggregator(AggregatorConfig{Timeout: -1})
	if agg.config.Timeout != 10*time.Second {
		t.Errorf("non-positive timeout = %v, want default", agg.config.Timeout)
	}
}

func TestAggregator_RegisterOrder(t *testing.T) {
	agg := NewAggregator()
	agg.Register("b", fixed(Healthy("ok")))
	agg.Register("a", fixed(Healthy("ok")))
	agg.Register("c", fixed(Healthy("ok")))
	agg.Register("b", fixed(Healthy("again")))

	got := agg.CheckerNames()
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("CheckerNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("CheckerNames() = %v, want %v", got, want)
		}
	}

	agg.Unregister("a")
	if names := agg.CheckerNames(); len(names) != 2 || names[1] != "c" {
		t.Errorf("after Unregister: %v", names)
	}
}

func TestAggregator_Check(t *testing.T) {
	agg := NewAggregator()
	agg.Register("test", fixed(Healthy("first")))
	agg.Register("test", fixed(Healthy("second")))

	result, err := agg.Check(context.Background(), "test")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Message != "second" {
		t.Errorf("Message = %q, want replacement", result.Message)
	}

	if _, err := agg.Check(context.Background(), "missing"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("Check(missing) error = %v, want ErrCheckerNotFound", err)
	}
}

func TestAggregator_CheckAll(t *testing.T) {
	for _, parallel := range []bool{true, false} {
		agg := NewAggregator(AggregatorConfig{Parallel: parallel})
		agg.Register("healthy", fixed(Healthy("ok")))
		agg.Register("degraded", fixed(Degraded("slow")))

		report := agg.CheckAll(context.Background())
		if len(report.Components) != 2 {
			t.Fatalf("parallel=%v: %d components, want 2", parallel, len(report.Components))
		}
		if report.Components[0].Name != "healthy" || report.Components[1].Name != "degraded" {
			t.Errorf("parallel=%v: components out of order: %+v", parallel, report.Components)
		}
		if report.Status != StatusDegraded {
			t.Errorf("parallel=%v: Status = %v, want degraded", parallel, report.Status)
		}
		if r, ok := report.Result("degraded"); !ok || r.Message != "slow" {
			t.Errorf("parallel=%v: Result(degraded) = %+v, %v", parallel, r, ok)
		}
	}
}

func TestAggregator_CheckAllEmpty(t *testing.T) {
	report := NewAggregator().CheckAll(context.Background())
	if len(report.Components) != 0 || report.Status != StatusHealthy {
		t.Errorf("empty report = %+v", report)
	}
}

func TestAggregator_CheckAllTimeout(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: 50 * time.Millisecond, Parallel: true})
	release := make(chan struct{})
	defer close(release)

	agg.Register("slow", NewCheckerFunc("slow", func(ctx context.Context) Result {
		<-release
		return Healthy("ok")
	}))
	agg.Register("fast", fixed(Healthy("ok")))

	report := agg.CheckAll(context.Background())
	slow, _ := report.Result("slow")
	if slow.Status != StatusUnhealthy || !errors.Is(slow.Error, ErrCheckTimeout) {
		t.Errorf("slow = %+v, want timeout", slow)
	}
	if fast, _ := report.Result("fast"); fast.Status != StatusHealthy {
		t.Errorf("fast = %+v, want healthy", fast)
	}
	if report.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", report.Status)
	}
}

func TestAggregator_CheckerPanics(t *testing.T) {
	agg := NewAggregator()
	agg.Register("boom", NewCheckerFunc("boom", func(context.Context) Result {
		panic("kaboom")
	}))

	r, err := agg.Check(context.Background(), "boom")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, ErrCheckFailed) {
		t.Errorf("result = %+v, want unhealthy ErrCheckFailed", r)
	}
}

func TestAggregator_ParallelRunsConcurrently(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Timeout: time.Second, Parallel: true})
	var inFlight, peak atomic.Int32
	gate := make(chan struct{})

	for _, name := range []string{"a", "b"} {
		agg.Register(name, NewCheckerFunc(name, func(context.Context) Result {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			if n == 2 {
				close(gate)
			}
			<-gate
			inFlight.Add(-1)
			return Healthy("ok")
		}))
	}

	report := agg.CheckAll(context.Background())
	if report.Status != StatusHealthy {
		t.Fatalf("Status = %v, want healthy", report.Status)
	}
	if peak.Load() != 2 {
		t.Errorf("peak concurrency = %d, want 2", peak.Load())
	}
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Result{Healthy("ok"), Healthy("ok")}, StatusHealthy},
		{"one degraded", []Result{Healthy("ok"), Degraded("slow")}, StatusDegraded},
		{"unhealthy overrides degraded", []Result{Degraded("slow"), Unhealthy("down", nil)}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overall(tt.results...); got != tt.want {
				t.Errorf("Overall() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAggregator_Checker(t *testing.T) {
	agg := NewAggregator()
	agg.Register("down", fixed(Unhealthy("down", nil)))

	checker := agg.Checker()
	if checker.Name() != "aggregate" {
		t.Errorf("Name() = %q, want aggregate", checker.Name())
	}
	result := checker.Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", result.Status)
	}
	if result.Message != "some checks failed" {
		t.Errorf("Message = %q", result.Message)
	}
	if _, ok := result.Details["down"]; !ok {
		t.Error("details missing sub-check")
	}
}
