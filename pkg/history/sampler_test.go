package history

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeSource returns queued results in order; calls beyond the queue succeed with 1.0.
type fakeSource struct {
	mu      sync.Mutex
	results []result
	calls   []time.Time
	block   bool
}

type result struct {
	rate float64
	err  error
}

func (f *fakeSource) LatestRate(ctx context.Context, from, to string) (float64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, time.Now())
	var r result
	if len(f.results) > 0 {
		r = f.results[0]
		f.results = f.results[1:]
	} else {
		r = result{rate: 1.0}
	}
	block := f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return r.rate, r.err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSample_OldestFirst(t *testing.T) {
	source := &fakeSource{results: []result{{rate: 0.90}, {rate: 0.91}, {rate: 0.92}}}
	sampler := NewSampler(source, Config{Pause: 0, Timeout: time.Second})

	today := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	rates, err := sampler.Sample(context.Background(), "USD", "EUR", 3, today)
	if err != nil {
		t.Fatalf("Sample() failed: %v", err)
	}

	expected := []DailyRate{
		{Date: "2025-03-08", Rate: 0.90},
		{Date: "2025-03-09", Rate: 0.91},
		{Date: "2025-03-10", Rate: 0.92},
	}
	if len(rates) != len(expected) {
		t.Fatalf("len(rates) = %d, want %d", len(rates), len(expected))
	}
	for i := range expected {
		if rates[i] != expected[i] {
			t.Errorf("rates[%d] = %+v, want %+v", i, rates[i], expected[i])
		}
	}
}

func TestSample_SkipsFailedDays(t *testing.T) {
	source := &fakeSource{results: []result{
		{rate: 0.90},
		{err: errors.New("upstream 500")},
		{rate: 0.92},
	}}
	sampler := NewSampler(source, Config{Timeout: time.Second})

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	rates, err := sampler.Sample(context.Background(), "USD", "EUR", 3, today)
	if err != nil {
		t.Fatalf("Sample() failed: %v", err)
	}

	if len(rates) != 2 {
		t.Fatalf("len(rates) = %d, want 2", len(rates))
	}
	if rates[0].Date != "2025-03-08" || rates[1].Date != "2025-03-10" {
		t.Errorf("dates = %s, %s, want 2025-03-08, 2025-03-10", rates[0].Date, rates[1].Date)
	}
	if source.callCount() != 3 {
		t.Errorf("calls = %d, want 3", source.callCount())
	}
}

func TestSample_AllDaysFail(t *testing.T) {
	upstreamErr := errors.New("connection refused")
	source := &fakeSource{results: []result{{err: upstreamErr}, {err: upstreamErr}}}
	sampler := NewSampler(source, Config{Timeout: time.Second})

	rates, err := sampler.Sample(context.Background(), "USD", "EUR", 2, time.Now())
	if !errors.Is(err, ErrNoSamples) {
		t.Fatalf("error = %v, want ErrNoSamples", err)
	}
	if !errors.Is(err, upstreamErr) {
		t.Errorf("error should wrap the last upstream error")
	}
	if rates != nil {
		t.Errorf("rates = %v, want nil", rates)
	}
}

func TestSample_Pacing(t *testing.T) {
	source := &fakeSource{}
	pause := 30 * time.Millisecond
	sampler := NewSampler(source, Config{Pause: pause, Timeout: time.Second})

	if _, err := sampler.Sample(context.Background(), "USD", "EUR", 3, time.Now()); err != nil {
		t.Fatalf("Sample() failed: %v", err)
	}

	source.mu.Lock()
	defer source.mu.Unlock()
	for i := 1; i < len(source.calls); i++ {
		// Small slack for timer granularity
		if gap := source.calls[i].Sub(source.calls[i-1]); gap < pause-5*time.Millisecond {
			t.Errorf("gap between call %d and %d = %v, want >= %v", i-1, i, gap, pause)
		}
	}
}

func TestSample_PerDayTimeout(t *testing.T) {
	source := &fakeSource{block: true}
	sampler := NewSampler(source, Config{Timeout: 10 * time.Millisecond})

	start := time.Now()
	_, err := sampler.Sample(context.Background(), "USD", "EUR", 2, time.Now())
	if !errors.Is(err, ErrNoSamples) {
		t.Fatalf("error = %v, want ErrNoSamples", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error should wrap the per-day deadline")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Sample() took %v, per-day timeout not applied", elapsed)
	}
}

func TestSample_ContextCancelled(t *testing.T) {
	source := &fakeSource{}
	sampler := NewSampler(source, Config{Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sampler.Sample(ctx, "USD", "EUR", 5, time.Now())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if source.callCount() != 0 {
		t.Errorf("calls = %d, want 0", source.callCount())
	}
}

func TestSample_InvalidDays(t *testing.T) {
	sampler := NewSampler(&fakeSource{}, DefaultConfig())

	if _, err := sampler.Sample(context.Background(), "USD", "EUR", 0, time.Now()); err == nil {
		t.Error("Expected error for zero days")
	}
}

func TestNewSampler_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected Config
	}{
		{
			name:     "default config",
			config:   DefaultConfig(),
			expected: Config{Pause: 100 * time.Millisecond, Timeout: 3 * time.Second},
		},
		{
			name:     "zero timeout falls back",
			config:   Config{Pause: 50 * time.Millisecond},
			expected: Config{Pause: 50 * time.Millisecond, Timeout: 3 * time.Second},
		},
		{
			name:     "negative pause disabled",
			config:   Config{Pause: -time.Second, Timeout: time.Second},
			expected: Config{Pause: 0, Timeout: time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSampler(&fakeSource{}, tt.config).config; got != tt.expected {
				t.Errorf("config = %+v, want %+v", got, tt.expected)
			}
		})
	}
}
