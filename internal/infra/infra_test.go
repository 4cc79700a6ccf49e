package infra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// ════════════════════════════════════════════════════════════════════
// Cache / RateLimiter
// ════════════════════════════════════════════════════════════════════

func TestCacheExpiry(t *testing.T) {
	c := NewCache[int](time.Minute)
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a): got %d, %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("expected entry to be expired")
	}
	c.Invalidate("a")
	c.SetWithTTL("b", 2, time.Hour)
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) with custom TTL: got %d, %v", v, ok)
	}
}

func TestRateLimiterCancelled(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Wait: got %v, want deadline exceeded", err)
	}
}

// ════════════════════════════════════════════════════════════════════
// Ledger
// ════════════════════════════════════════════════════════════════════

func TestLedgerAbsentNeverReturnsToPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_status.json")
	l, err := OpenLedger(path)
	if err != nil {
		t.Fatal(err)
	}

	l.MarkAbsent("DEAD", "no data")
	l.MarkPending("DEAD", errors.New("timeout"))
	if got := l.Status("DEAD"); got != StatusAbsent {
		t.Fatalf("status after MarkPending: got %q, want %q", got, StatusAbsent)
	}
	if l.NeedsFetch("DEAD") {
		t.Error("absent key should not need fetch")
	}
	if err := l.Save(); err != nil {
		t.Fatal(err)
	}

	// A later run reloads the ledger and still skips it.
	l2, err := OpenLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := l2.Status("DEAD"); got != StatusAbsent {
		t.Errorf("reloaded status: got %q, want %q", got, StatusAbsent)
	}

	l2.Invalidate("DEAD")
	if !l2.NeedsFetch("DEAD") {
		t.Error("invalidated key should need fetch")
	}
}

func TestLedgerTransitions(t *testing.T) {
	l, _ := OpenLedger(filepath.Join(t.TempDir(), "s.json"))

	if !l.NeedsFetch("AAA") {
		t.Error("unknown key should need fetch")
	}
	l.MarkPending("AAA", errors.New("429"))
	if !l.NeedsFetch("AAA") {
		t.Error("pending key should need fetch")
	}
	l.MarkDone("AAA")
	if l.NeedsFetch("AAA") {
		t.Error("done key should not need fetch")
	}
	l.MarkAbsent("BBB", "empty")

	counts := l.Counts()
	if counts[StatusDone] != 1 || counts[StatusAbsent] != 1 {
		t.Errorf("Counts: got %v", counts)
	}
	if keys := l.Keys(StatusDone); len(keys) != 1 || keys[0] != "AAA" {
		t.Errorf("Keys(done): got %v", keys)
	}
}

// ════════════════════════════════════════════════════════════════════
// JSONStore
// ════════════════════════════════════════════════════════════════════

func TestJSONStoreRoundTrip(t *testing.T) {
	s := NewJSONStore(t.TempDir())
	type payload struct {
		Ticker string `json:"ticker"`
		N      int    `json:"n"`
	}

	ok, err := s.Load("prices", "AAA", &payload{})
	if err != nil || ok {
		t.Fatalf("Load missing: got %v, %v", ok, err)
	}

	if err := s.Save("prices", "brk/b", payload{Ticker: "BRK/B", N: 3}); err != nil {
		t.Fatal(err)
	}
	var got payload
	ok, err = s.Load("prices", "BRK/B", &got)
	if err != nil || !ok {
		t.Fatalf("Load: got %v, %v", ok, err)
	}
	if got.N != 3 {
		t.Errorf("N: got %d, want 3", got.N)
	}

	keys, _ := s.Keys("prices")
	if len(keys) != 1 || keys[0] != "BRK_B" {
		t.Errorf("Keys: got %v", keys)
	}
}

// ════════════════════════════════════════════════════════════════════
// HTTPClient
// ════════════════════════════════════════════════════════════════════

func testClient() *HTTPClient {
	return NewHTTPClient(HTTPOptions{
		Timeout:    2 * time.Second,
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	})
}

func TestHTTPClientRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	if err := testClient().GetJSON(context.Background(), srv.URL, nil, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if !out.OK {
		t.Error("expected ok=true")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls: got %d, want 3", got)
	}
}

func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"not found", http.StatusNotFound, func(err error) bool { return errors.Is(err, ErrNotFound) }},
		{"rate limited", http.StatusTooManyRequests, func(err error) bool { return errors.Is(err, ErrRateLimited) }},
		{"forbidden", http.StatusForbidden, func(err error) bool {
			var he *ErrHTTP
			return errors.As(err, &he) && he.StatusCode == http.StatusForbidden && !he.Transient()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := testClient().Get(context.Background(), srv.URL, nil)
			if err == nil || !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNewLoggerLevel(t *testing.T) {
	l := NewLogger("warn", "json", nil)
	if l.GetLevel().String() != "warn" {
		t.Errorf("level: got %s, want warn", l.GetLevel())
	}
	l = NewLogger("bogus", "text", nil)
	if l.GetLevel().String() != "info" {
		t.Errorf("fallback level: got %s, want info", l.GetLevel())
	}
}
