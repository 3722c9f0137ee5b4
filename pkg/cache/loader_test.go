package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoad_MissThenHit(t *testing.T) {
	loader := NewLoader(NewMemory("test"))
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (float64, error) {
		atomic.AddInt32(&calls, 1)
		return 0.92, nil
	}

	value, source, err := Load(ctx, loader, "rate:from=USD:to=EUR", time.Minute, fetch)
	if err != nil {
		t.Fatalf("first Load failed: %v", err)
	}
	if value != 0.92 || source != SourceLive {
		t.Errorf("first Load = (%v, %s), want (0.92, live)", value, source)
	}

	value, source, err = Load(ctx, loader, "rate:from=USD:to=EUR", time.Minute, fetch)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if value != 0.92 || source != SourceCache {
		t.Errorf("second Load = (%v, %s), want (0.92, cache)", value, source)
	}

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch called %d times, want 1", got)
	}
}

func TestLoad_ErrorNotCached(t *testing.T) {
	loader := NewLoader(NewMemory("test"))
	ctx := context.Background()
	upstreamErr := errors.New("upstream 500")

	var calls int32
	failing := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", upstreamErr
	}

	_, _, err := Load(ctx, loader, "coins:list", time.Minute, failing)
	if !errors.Is(err, upstreamErr) {
		t.Fatalf("Load error = %v, want %v", err, upstreamErr)
	}
	if loader.Store().Len() != 0 {
		t.Errorf("store has %d entries after failed fetch, want 0", loader.Store().Len())
	}

	// Next request retries the upstream
	_, _, _ = Load(ctx, loader, "coins:list", time.Minute, failing)
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("fetch called %d times, want 2", got)
	}
}

func TestLoad_CoalescesConcurrentMisses(t *testing.T) {
	loader := NewLoader(NewMemory("test"))
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "payload", nil
	}

	const callers = 10
	var wg sync.WaitGroup
	var started sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		started.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			results[i], _, errs[i] = Load(ctx, loader, "chart:id=bitcoin", time.Minute, fetch)
		}(i)
	}

	started.Wait()
	// Give the goroutines time to join the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("fetch called %d times, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d error: %v", i, errs[i])
		}
		if results[i] != "payload" {
			t.Errorf("caller %d result = %q, want payload", i, results[i])
		}
	}
}

func TestLoad_CallerCancellationNotPropagated(t *testing.T) {
	loader := NewLoader(NewMemory("test"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	value, _, err := Load(ctx, loader, "key", time.Minute, func(ctx context.Context) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if value != 42 {
		t.Errorf("Load() = %d, want 42", value)
	}
}

func TestLoad_TypeMismatchRefetches(t *testing.T) {
	store := NewMemory("test")
	store.Set("key", "not-an-int", time.Minute)
	loader := NewLoader(store)

	value, source, err := Load(context.Background(), loader, "key", time.Minute, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if value != 7 || source != SourceLive {
		t.Errorf("Load() = (%d, %s), want (7, live)", value, source)
	}
}

func TestLoader_InvalidatePrefix(t *testing.T) {
	loader := NewLoader(NewMemory("test"))
	ctx := context.Background()
	fetch := func(ctx context.Context) (int, error) { return 1, nil }

	_, _, _ = Load(ctx, loader, "coins:page=1", time.Minute, fetch)
	_, _, _ = Load(ctx, loader, "coins:page=2", time.Minute, fetch)

	_, _, _ = Load(ctx, loader, "chart:id=bitcoin", time.Minute, fetch)

	if removed := loader.InvalidatePrefix("coins:"); removed != 2 {
		t.Errorf("InvalidatePrefix() = %d, want 2", removed)
	}

	_, source, _ := Load(ctx, loader, "coins:page=1", time.Minute, fetch)
	if source != SourceLive {
		t.Errorf("source after InvalidatePrefix = %s, want live", source)
	}
	_, source, _ = Load(ctx, loader, "chart:id=bitcoin", time.Minute, fetch)
	if source != SourceCache {
		t.Errorf("untouched key source = %s, want cache", source)
	}
}

func TestNewLoader_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewLoader should panic with nil store")
		}
	}()
	NewLoader(nil)
}
