package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(capacity int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 24, 12, 0, 0, 0, time.UTC)}
	l := NewRateLimiter("test", capacity, time.Minute, discardLogger())
	l.now = clock.Now
	return l, clock
}

func TestRateLimiter_ExactCapacity(t *testing.T) {
	for _, capacity := range []int{1, 5, 60} {
		l, clock := newTestLimiter(capacity)
		for i := 0; i < capacity; i++ {
			if ok, _ := l.Allow("10.0.0.1"); !ok {
				t.Fatalf("capacity %d: request %d rejected", capacity, i+1)
			}
			clock.Advance(100 * time.Millisecond)
		}
		ok, retryAfter := l.Allow("10.0.0.1")
		if ok {
			t.Fatalf("capacity %d: request %d allowed", capacity, capacity+1)
		}
		if retryAfter <= 0 || retryAfter > time.Minute {
			t.Errorf("capacity %d: unexpected retry after %v", capacity, retryAfter)
		}
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	l, clock := newTestLimiter(2)
	l.Allow("a")
	clock.Advance(30 * time.Second)
	l.Allow("a")

	if ok, _ := l.Allow("a"); ok {
		t.Fatal("expected third request to be rejected")
	}

	// first hit leaves the window, one slot frees up
	clock.Advance(31 * time.Second)
	if ok, _ := l.Allow("a"); !ok {
		t.Fatal("expected request after first hit expired to be allowed")
	}
	if ok, _ := l.Allow("a"); ok {
		t.Fatal("expected window to be full again")
	}

	// full reset
	clock.Advance(2 * time.Minute)
	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow("a"); !ok {
			t.Fatalf("request %d after reset rejected", i+1)
		}
	}
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1)
	if ok, _ := l.Allow("a"); !ok {
		t.Fatal("expected a to be allowed")
	}
	if ok, _ := l.Allow("b"); !ok {
		t.Fatal("expected b to be allowed")
	}
	if ok, _ := l.Allow("a"); ok {
		t.Fatal("expected a to be limited")
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(50)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("flood"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 50 {
		t.Errorf("expected exactly 50 allowed, got %d", allowed)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter(5)
	l.Allow("old")
	clock.Advance(90 * time.Second)
	l.Allow("recent")

	if n := l.Sweep(); n != 0 {
		t.Fatalf("expected nothing swept yet, got %d", n)
	}
	clock.Advance(31 * time.Second)
	if n := l.Sweep(); n != 1 {
		t.Fatalf("expected 1 client swept, got %d", n)
	}
	if l.Clients() != 1 {
		t.Errorf("expected 1 tracked client, got %d", l.Clients())
	}
}

func TestRateLimiter_RunSweeperStops(t *testing.T) {
	l, _ := newTestLimiter(5)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	l, _ := newTestLimiter(1)
	h := l.Middleware(false)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/student", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
	}
}
