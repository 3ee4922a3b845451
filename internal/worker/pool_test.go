package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type lookupResult struct {
	handle string
	err    error
}

func (r *lookupResult) GetError() error { return r.err }

// lookupJob pretends to resolve one handle. hook, when set, runs before
// the job finishes and may block.
type lookupJob struct {
	handle string
	fail   bool
	hook   func(ctx context.Context)
}

func (j *lookupJob) Execute(ctx context.Context) Result {
	if j.hook != nil {
		j.hook(ctx)
	}
	if j.fail {
		return &lookupResult{handle: j.handle, err: errors.New("no such person")}
	}
	return &lookupResult{handle: j.handle}
}

// feed submits jobs from a goroutine and closes the pool, then drains
// every result
func feed(p *Pool, jobs []Job) []Result {
	go func() {
		for _, j := range jobs {
			p.Submit(j)
		}
		p.Close()
	}()
	var out []Result
	for r := range p.Results() {
		out = append(out, r)
	}
	return out
}

func TestNewPoolClampsSize(t *testing.T) {
	for _, size := range []int{-3, 0, 1} {
		if got := NewPool(size).size; got != 1 {
			t.Errorf("NewPool(%d).size = %d, want 1", size, got)
		}
	}
	if got := NewPool(6).size; got != 6 {
		t.Errorf("NewPool(6).size = %d", got)
	}
}

func TestPoolEveryHandleReported(t *testing.T) {
	p := NewPool(3)
	p.Start()

	var jobs []Job
	want := map[string]bool{}
	for _, h := range []string{"I1", "I2", "I3", "I4", "I5", "I6", "I7", "I8", "I9", "I10", "I11"} {
		jobs = append(jobs, &lookupJob{handle: h, fail: h == "I4" || h == "I9"})
		want[h] = true
	}

	results := feed(p, jobs)
	if len(results) != len(jobs) {
		t.Fatalf("got %d results for %d jobs", len(results), len(jobs))
	}
	failed := 0
	for _, r := range results {
		lr := r.(*lookupResult)
		if !want[lr.handle] {
			t.Errorf("unexpected or duplicate handle %q", lr.handle)
		}
		delete(want, lr.handle)
		if lr.GetError() != nil {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("failed = %d, want 2", failed)
	}
}

func TestPoolBoundsParallelism(t *testing.T) {
	const size = 4
	p := NewPool(size)
	p.Start()

	var inFlight, peak int32
	hook := func(ctx context.Context) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}

	jobs := make([]Job, 40)
	for i := range jobs {
		jobs[i] = &lookupJob{handle: "P", hook: hook}
	}
	if got := len(feed(p, jobs)); got != 40 {
		t.Fatalf("got %d results, want 40", got)
	}
	if got := atomic.LoadInt32(&peak); got > size {
		t.Errorf("peak parallelism %d exceeds pool size %d", got, size)
	}
}

func TestPoolShutdownCancelsRunningJob(t *testing.T) {
	p := NewPool(1)
	p.Start()

	started := make(chan struct{})
	cancelled := make(chan struct{})
	p.Submit(&lookupJob{handle: "slow", hook: func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}})
	<-started

	stopped := make(chan struct{})
	go func() {
		p.Shutdown()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return")
	}
	select {
	case <-cancelled:
	default:
		t.Error("running job never saw cancellation")
	}
	for range p.Results() {
	}
}

func TestPoolRejectsAfterShutdown(t *testing.T) {
	p := NewPool(2)
	p.Start()
	p.Shutdown()

	done := make(chan bool)
	go func() { done <- p.Submit(&lookupJob{handle: "late"}) }()

	select {
	case accepted := <-done:
		if accepted {
			t.Error("Submit accepted a job after Shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked after Shutdown")
	}
}

func TestPoolParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoolContext(ctx, 1)
	p.Start()

	var once sync.Once
	started := make(chan struct{})
	p.Submit(&lookupJob{handle: "A", hook: func(ctx context.Context) {
		once.Do(func() { close(started) })
		<-ctx.Done()
	}})
	<-started
	cancel()

	done := make(chan bool)
	go func() { done <- p.Submit(&lookupJob{handle: "B"}) }()
	select {
	case accepted := <-done:
		if accepted {
			t.Error("Submit accepted a job after parent cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("Submit blocked after parent cancel")
	}
	p.Shutdown()
}

func TestPoolStreamsLargeBatch(t *testing.T) {
	p := NewPool(2)
	p.Start()

	jobs := make([]Job, 250)
	for i := range jobs {
		jobs[i] = &lookupJob{handle: "H", fail: i%25 == 0}
	}
	results := feed(p, jobs)

	failed := 0
	for _, r := range results {
		if r.GetError() != nil {
			failed++
		}
	}
	if len(results) != 250 || failed != 10 {
		t.Errorf("results = %d failed = %d, want 250 and 10", len(results), failed)
	}
}
