package worker

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiterBurstFallback(t *testing.T) {
	if got := NewLimiter(10, 3).burst; got != 3 {
		t.Errorf("burst = %d, want 3", got)
	}
	if got := NewLimiter(10, 0).burst; got != 5 {
		t.Errorf("burst = %d, want fallback 5", got)
	}
}

func TestLimiterZeroRateIsUnlimited(t *testing.T) {
	l := NewLimiter(0, 1)
	for i := range 200 {
		if !l.Allow("family.db") {
			t.Fatalf("lookup %d refused", i)
		}
	}
}

func TestLimiterSharesBudgetPerHost(t *testing.T) {
	l := NewLimiter(0.5, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Wait(ctx, "bolt://graph:7687"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if l.Allow("neo4j://graph:7687") {
		t.Error("another scheme on the same host got a fresh budget")
	}
	if !l.Allow("bolt://replica:7687") {
		t.Error("a different host was throttled")
	}
	if !l.Allow("tree.yaml") {
		t.Error("a local file was throttled")
	}
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	l := NewLimiter(0.01, 1)
	l.Allow("bolt://graph:7687")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "bolt://graph:7687"); err == nil {
		t.Error("Wait returned nil with an exhausted budget and a short deadline")
	}
}

func TestHostOf(t *testing.T) {
	for in, want := range map[string]string{
		"bolt://graph:7687":             "graph:7687",
		"neo4j://user@db:7687/x":        "db:7687",
		"https://example.org/tree.yaml": "example.org",
		"tree.yaml":                     "tree.yaml",
		"/var/lib/lifespan/tree.db":     "/var/lib/lifespan/tree.db",
	} {
		if got := hostOf(in); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}
