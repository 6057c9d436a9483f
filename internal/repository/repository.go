package repository

import (
	"context"

	"comanda/internal/domain"
)

// Orders is the persistence collaborator: the core reads and writes
// order records through this interface and never sees the storage
// engine. Implementations must be safe for concurrent use.
type Orders interface {
	Load(ctx context.Context, id string) (*domain.Order, error)
	Save(ctx context.Context, o *domain.Order) error
	Delete(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]*domain.Order, error)
	Close() error
}

// Nop is the repository used when no database is configured: the
// in-memory store remains the single source of truth and writes are
// discarded.
type Nop struct{}

func (Nop) Load(ctx context.Context, id string) (*domain.Order, error) {
	return nil, domain.ErrOrderNotFound
}

func (Nop) Save(ctx context.Context, o *domain.Order) error { return nil }

func (Nop) Delete(ctx context.Context, id string) error { return nil }

func (Nop) ListActive(ctx context.Context) ([]*domain.Order, error) { return nil, nil }

func (Nop) Close() error { return nil }
