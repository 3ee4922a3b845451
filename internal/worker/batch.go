package worker

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ppiankov/lifespan/internal/date"
	"github.com/ppiankov/lifespan/internal/estimate"
	"github.com/ppiankov/lifespan/internal/record"
)

// Decider answers aliveness for a handle
type Decider interface {
	DecideHandle(ctx context.Context, handle string, ref date.Date, opts ...estimate.Option) (*record.Person, estimate.Verdict, error)
}

// DecideJob decides one person
type DecideJob struct {
	Index   int
	Handle  string
	Ref     date.Date
	Options []estimate.Option
	Decider Decider
	Limiter *Limiter
	Source  string
	Timeout time.Duration
}

// Execute runs the decider under the job's time budget
func (j *DecideJob) Execute(ctx context.Context) Result {
	start := time.Now()
	res := &VerdictResult{Index: j.Index, Handle: j.Handle}

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.Source); err != nil {
			res.Error = errors.Wrap(err, "rate limit")
			res.Duration = time.Since(start)
			return res
		}
	}

	p, v, err := j.Decider.DecideHandle(ctx, j.Handle, j.Ref, j.Options...)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	res.Name = p.DisplayName()
	res.Verdict = v
	return res
}

// VerdictResult is the outcome for one handle
type VerdictResult struct {
	Index    int
	Handle   string
	Name     string
	Verdict  estimate.Verdict
	Error    error
	Duration time.Duration
}

// GetError returns the decision error, if any
func (r *VerdictResult) GetError() error {
	return r.Error
}

// BatchProcessor decides many people concurrently
type BatchProcessor struct {
	decider     Decider
	concurrency int
	limiter     *Limiter

	Source  string            // Rate limiter key
	Ref     date.Date         // Reference date, invalid means today
	Options []estimate.Option // Passed to every decision
	Timeout time.Duration     // Per-person budget, zero for none
}

// NewBatchProcessor creates a processor. A positive rps throttles lookups.
func NewBatchProcessor(decider Decider, concurrency int, rps float64, burst int) *BatchProcessor {
	b := &BatchProcessor{
		decider:     decider,
		concurrency: concurrency,
	}
	if rps > 0 {
		b.limiter = NewLimiter(rps, burst)
	}
	return b
}

// ProcessHandles decides every handle and returns results in input order.
// Cancelling ctx stops outstanding work; those handles report ctx.Err().
func (b *BatchProcessor) ProcessHandles(ctx context.Context, handles []string) []*VerdictResult {
	out := make([]*VerdictResult, len(handles))
	if len(handles) == 0 {
		return out
	}

	pool := NewPoolContext(ctx, b.concurrency)
	pool.Start()
	go func() {
		for i, h := range handles {
			pool.Submit(&DecideJob{
				Index:   i,
				Handle:  h,
				Ref:     b.Ref,
				Options: b.Options,
				Decider: b.decider,
				Limiter: b.limiter,
				Source:  b.Source,
				Timeout: b.Timeout,
			})
		}
		pool.Close()
	}()

	for r := range pool.Results() {
		vr := r.(*VerdictResult)
		out[vr.Index] = vr
	}

	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = errors.New("not processed")
			}
			out[i] = &VerdictResult{Index: i, Handle: handles[i], Error: err}
		}
	}
	return out
}

// ProcessFile reads handles from a file and decides them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*VerdictResult, error) {
	handles, err := ReadHandlesFromFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "read handles")
	}
	return b.ProcessHandles(ctx, handles), nil
}

// ReadHandlesFromFile reads one handle per line, skipping blanks, #
// comments and repeats
func ReadHandlesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	defer func() { _ = file.Close() }()

	var handles []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			handles = append(handles, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan file")
	}
	return handles, nil
}
