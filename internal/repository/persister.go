package repository

import (
	"context"
	"log/slog"
	"time"

	"comanda/internal/domain"
)

// Persister writes committed order snapshots through the repository on
// its own goroutine, so the per-order critical section never holds
// across a persistence round-trip. Repository failures are transient
// infrastructure errors: the write is retried with backoff and never
// surfaced as a domain error.
type Persister struct {
	repo    Orders
	queue   chan *domain.Order
	logger  *slog.Logger
	backoff time.Duration
}

// NewPersister creates a Persister with a bounded queue.
func NewPersister(repo Orders, logger *slog.Logger) *Persister {
	return &Persister{
		repo:    repo,
		queue:   make(chan *domain.Order, 256),
		logger:  logger,
		backoff: time.Second,
	}
}

// Enqueue submits a committed snapshot for persistence. If the queue is
// full the snapshot is dropped; a later commit of the same order carries
// a higher version and supersedes it.
func (p *Persister) Enqueue(o *domain.Order) {
	select {
	case p.queue <- o:
	default:
		p.logger.Warn("persist queue full, dropping snapshot",
			slog.String("order_id", o.ID),
			slog.Uint64("version", o.Version),
		)
	}
}

// Start launches the persistence loop. It stops when ctx is cancelled.
func (p *Persister) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case o := <-p.queue:
				p.save(ctx, o)
			}
		}
	}()
}

// save retries with exponential backoff until the write succeeds or the
// context is cancelled.
func (p *Persister) save(ctx context.Context, o *domain.Order) {
	delay := p.backoff
	for attempt := 1; ; attempt++ {
		err := p.repo.Save(ctx, o)
		if err == nil {
			return
		}
		p.logger.Error("order persist failed",
			slog.String("order_id", o.ID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}
