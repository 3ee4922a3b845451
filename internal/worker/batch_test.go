package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/estimate"
	"github.com/ppiankov/lifespan/internal/record"
	"github.com/ppiankov/lifespan/internal/store"
)

// mockDecider answers every handle alive, failing the ones listed
type mockDecider struct {
	fail  map[string]error
	delay time.Duration
}

func (m *mockDecider) DecideHandle(ctx context.Context, handle string, ref date.Date, opts ...estimate.Option) (*record.Person, estimate.Verdict, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, estimate.Verdict{}, ctx.Err()
		}
	}
	if err := m.fail[handle]; err != nil {
		return nil, estimate.Verdict{}, err
	}
	return &record.Person{Handle: handle, Name: record.Name{Given: "P", Surname: handle}},
		estimate.Verdict{Alive: true, Phase: estimate.PhaseUnresolved}, nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "handles.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessHandles(t *testing.T) {
	processor := NewBatchProcessor(&mockDecider{}, 2, 0, 0)

	handles := []string{"I1", "I2", "I3"}
	results := processor.ProcessHandles(context.Background(), handles)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Handle, res.Error)
		}
		if res.Handle != handles[i] {
			t.Errorf("expected %s at index %d, got %s", handles[i], i, res.Handle)
		}
		if !res.Verdict.Alive {
			t.Errorf("expected alive verdict for %s", res.Handle)
		}
		if res.Name != "P "+res.Handle {
			t.Errorf("unexpected name %q", res.Name)
		}
	}
}

func TestBatchProcessor_ManyHandles(t *testing.T) {
	processor := NewBatchProcessor(&mockDecider{}, 3, 0, 0)

	handles := make([]string, 500)
	for i := range handles {
		handles[i] = "I" + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}

	done := make(chan []*VerdictResult)
	go func() { done <- processor.ProcessHandles(context.Background(), handles) }()

	select {
	case results := <-done:
		if len(results) != len(handles) {
			t.Fatalf("expected %d results, got %d", len(handles), len(results))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish")
	}
}

func TestBatchProcessor_Errors(t *testing.T) {
	cycle := &estimate.CycleError{Handle: "I2", Name: "Loop", Phase: estimate.PhaseAncestorScan}
	processor := NewBatchProcessor(&mockDecider{fail: map[string]error{"I2": cycle}}, 2, 0, 0)

	results := processor.ProcessHandles(context.Background(), []string{"I1", "I2"})
	if results[0].Error != nil {
		t.Errorf("unexpected error: %v", results[0].Error)
	}
	if !errors.Is(results[1].GetError(), estimate.ErrGraphCycle) {
		t.Errorf("expected cycle error, got %v", results[1].Error)
	}
}

func TestBatchProcessor_Timeout(t *testing.T) {
	processor := NewBatchProcessor(&mockDecider{delay: time.Second}, 2, 0, 0)
	processor.Timeout = 10 * time.Millisecond

	results := processor.ProcessHandles(context.Background(), []string{"I1"})
	if !errors.Is(results[0].Error, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", results[0].Error)
	}
}

func TestBatchProcessor_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(&mockDecider{delay: time.Second}, 1, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := processor.ProcessHandles(ctx, []string{"I1", "I2", "I3"})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, res := range results {
		if res.Error == nil {
			t.Errorf("expected error for %s after cancel", res.Handle)
		}
	}
}

func TestBatchProcessor_RateLimited(t *testing.T) {
	processor := NewBatchProcessor(&mockDecider{}, 2, 1000, 1)
	processor.Source = "bolt://graph:7687"

	results := processor.ProcessHandles(context.Background(), []string{"I1", "I2", "I3"})
	for _, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error: %v", res.Error)
		}
	}
}

func TestBatchProcessor_RealDecider(t *testing.T) {
	b := store.NewBuilder()
	b.Person("OLD", "Old", "").Born("1800")
	b.Person("NEW", "New", "").Born("2000")
	d := estimate.NewDecider(estimate.New(b.Build(), estimate.DefaultConfig(), nil))

	processor := NewBatchProcessor(d, 2, 0, 0)
	processor.Ref = date.Year(2020)
	results := processor.ProcessHandles(context.Background(), []string{"OLD", "NEW", "MISSING"})

	if results[0].Verdict.Alive {
		t.Error("expected OLD to be dead")
	}
	if !results[1].Verdict.Alive {
		t.Error("expected NEW to be alive")
	}
	if !record.IsNotFound(results[2].Error) {
		t.Errorf("expected not found for MISSING, got %v", results[2].Error)
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockDecider{}, 2, 0, 0)

	results := processor.ProcessHandles(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadHandlesFromFile(t *testing.T) {
	path := writeFile(t, "I0001\n# comment\nI0002\n   \n  I0003   \nI0001\n")

	handles, err := ReadHandlesFromFile(path)
	if err != nil {
		t.Fatalf("ReadHandlesFromFile failed: %v", err)
	}

	expected := []string{"I0001", "I0002", "I0003"}
	if len(handles) != len(expected) {
		t.Fatalf("expected %d handles, got %d", len(expected), len(handles))
	}
	for i, h := range handles {
		if h != expected[i] {
			t.Errorf("expected handle %s at index %d, got %s", expected[i], i, h)
		}
	}
}

func TestReadHandlesFromFile_NonExistent(t *testing.T) {
	_, err := ReadHandlesFromFile("non_existent_file.txt")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeFile(t, "I1\nI2\n# comment\n\nI3\n")
	processor := NewBatchProcessor(&mockDecider{}, 2, 0, 0)

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}

	if _, err := processor.ProcessFile(context.Background(), "no_such_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestVerdictResult_GetError(t *testing.T) {
	r1 := &VerdictResult{Handle: "I1"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("lookup failed")
	r2 := &VerdictResult{Handle: "I1", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}
