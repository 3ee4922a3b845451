package worker

import (
	"context"
	"sync"
)

// Job is a unit of work run by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a job produced
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed set of goroutines and streams their results.
// The usual shape is: Start, Submit from one goroutine then Close, and
// range over Results until it closes.
type Pool struct {
	size    int
	queue   chan Job
	results chan Result
	running sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	closeQueue   sync.Once
	closeResults sync.Once
}

// NewPool creates a pool of size workers (at least one)
func NewPool(size int) *Pool {
	return NewPoolContext(context.Background(), size)
}

// NewPoolContext creates a pool whose jobs run under a child of parent.
// Cancelling parent stops the pool like Shutdown does.
func NewPoolContext(parent context.Context, size int) *Pool {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(parent)
	return &Pool{
		size:    size,
		queue:   make(chan Job, size*2),
		results: make(chan Result, size*2),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.running.Add(p.size)
	for range p.size {
		go p.run()
	}
}

func (p *Pool) run() {
	defer p.running.Done()
	for {
		var job Job
		select {
		case <-p.ctx.Done():
			return
		case j, ok := <-p.queue:
			if !ok {
				return
			}
			job = j
		}

		res := job.Execute(p.ctx)
		select {
		case p.results <- res:
		case <-p.ctx.Done():
			return
		}
	}
}

// Submit queues a job, blocking while the queue is full. It reports false
// when the pool stopped before the job was accepted. Submit must not be
// called after Close.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.queue <- job:
		return true
	}
}

// Results streams results as jobs finish. The channel is closed once the
// pool is closed and drained, or shut down.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close stops accepting jobs. Queued jobs still run.
func (p *Pool) Close() {
	p.closeQueue.Do(func() {
		close(p.queue)
		go func() {
			p.running.Wait()
			p.finish()
		}()
	})
}

// Shutdown cancels in-flight jobs and waits for the workers to exit
func (p *Pool) Shutdown() {
	p.cancel()
	p.running.Wait()
	p.finish()
}

func (p *Pool) finish() {
	p.closeResults.Do(func() { close(p.results) })
}
