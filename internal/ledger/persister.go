package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"budget/internal/storage"
)

// Op is the kind of write applied to a collection.
type Op string

const (
	OpPut    Op = "put"
	OpDelete Op = "delete"
	OpClear  Op = "clear"
)

// Change describes one persisted write.
type Change struct {
	Collection storage.Collection
	Op         Op
	Key        string
}

// ChangePublisher is notified after each write reaches storage.
type ChangePublisher interface {
	PublishChange(ctx context.Context, c Change) error
}

// ChangePublisherFunc adapts a function to ChangePublisher.
type ChangePublisherFunc func(ctx context.Context, c Change) error

func (f ChangePublisherFunc) PublishChange(ctx context.Context, c Change) error {
	return f(ctx, c)
}

type job struct {
	change Change
	run    func(ctx context.Context, repo storage.Repository) error
	done   chan struct{}
}

// Persister applies queued writes to the repository one at a time, in
// the order they were queued. Enqueueing never blocks.
type Persister struct {
	repo      storage.Repository
	publisher ChangePublisher

	qmu   sync.Mutex
	queue []job
	wake  chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPersister creates a persister. publisher may be nil.
func NewPersister(repo storage.Repository, publisher ChangePublisher) *Persister {
	return &Persister{
		repo:      repo,
		publisher: publisher,
		wake:      make(chan struct{}, 1),
	}
}

// Start begins draining the queue. Cancelling ctx does not stop the
// loop. Returns an error if already running.
func (p *Persister) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("persister is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// The loop outlives the caller's context; only Stop ends it.
	go p.runLoop(context.WithoutCancel(ctx))

	slog.InfoContext(ctx, "Persister started", "pending", p.Pending())
	return nil
}

// Stop writes out what is queued and waits for the loop to exit.
func (p *Persister) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Persister stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Persister stop timed out", "pending", p.Pending())
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the persister loop is active
func (p *Persister) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Pending returns the number of queued writes.
func (p *Persister) Pending() int {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	return len(p.queue)
}

// Flush waits until every write queued before the call has been applied.
func (p *Persister) Flush(ctx context.Context) error {
	done := make(chan struct{})
	p.enqueue(job{done: done})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Persister) enqueue(j job) {
	p.qmu.Lock()
	p.queue = append(p.queue, j)
	p.qmu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Persister) next() (job, bool) {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	if len(p.queue) == 0 {
		return job{}, false
	}
	j := p.queue[0]
	p.queue = p.queue[1:]
	return j, true
}

func (p *Persister) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	for {
		p.drain(ctx)
		select {
		case <-p.stopCh:
			p.drain(ctx)
			return
		case <-p.wake:
		}
	}
}

func (p *Persister) drain(ctx context.Context) {
	for {
		j, ok := p.next()
		if !ok {
			return
		}
		p.apply(ctx, j)
	}
}

func (p *Persister) apply(ctx context.Context, j job) {
	if j.done != nil {
		defer close(j.done)
	}
	if j.run == nil {
		return
	}

	if err := j.run(ctx, p.repo); err != nil {
		slog.ErrorContext(ctx, "Failed to persist change",
			"collection", j.change.Collection,
			"operation", j.change.Op,
			"key", j.change.Key,
			"error", err)
		return
	}

	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishChange(ctx, j.change); err != nil {
		slog.WarnContext(ctx, "Failed to publish change",
			"collection", j.change.Collection,
			"key", j.change.Key,
			"error", err)
	}
}
