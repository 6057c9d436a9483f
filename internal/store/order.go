package store

import (
	"sync"
	"time"

	"comanda/internal/domain"

	"github.com/google/btree"
)

// boardEntry is the board-index key for one order.
type boardEntry struct {
	CreatedAt time.Time
	OrderID   string
}

// boardLess orders the board newest first, breaking ties by order id so
// iteration order is deterministic.
func boardLess(a, b boardEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// entry is the serialization unit for a single order. All mutations of
// the order run under entry.mu, so two concurrent tenders can never lose
// an increment. receipts holds one record per applied idempotency key.
type entry struct {
	mu       sync.Mutex
	order    *domain.Order
	receipts map[string]domain.TenderReceipt
	// deleted marks an entry removed from the indexes, so a caller that
	// captured the pointer before the removal observes it under entry.mu.
	deleted bool
}

// Txn is the view handed to an update function. It exposes the live
// order plus the tender receipts recorded for it, all under the entry
// lock.
type Txn struct {
	Order    *domain.Order
	receipts map[string]domain.TenderReceipt
}

// Receipt returns the recorded receipt for an idempotency key, if any.
func (t *Txn) Receipt(requestID string) (domain.TenderReceipt, bool) {
	r, ok := t.receipts[requestID]
	return r, ok
}

// PutReceipt records a receipt under its idempotency key.
func (t *Txn) PutReceipt(r domain.TenderReceipt) {
	t.receipts[r.RequestID] = r
}

// OrderStore is the authoritative in-memory container for orders, with
// a primary index by id and a B-tree board index ordered newest first
// for snapshot listing. Mutations on different orders proceed fully in
// parallel; mutations on the same order are serialized per entry.
type OrderStore struct {
	mu      sync.RWMutex // protects entries map and board index
	entries map[string]*entry
	board   *btree.BTreeG[boardEntry]
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	const degree = 32
	return &OrderStore{
		entries: make(map[string]*entry),
		board:   btree.NewG[boardEntry](degree, boardLess),
	}
}

// Create adds an order to the store. It returns ErrConcurrencyConflict
// if an order with the same id already exists.
func (s *OrderStore) Create(o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[o.ID]; ok {
		return domain.ErrConcurrencyConflict
	}
	s.entries[o.ID] = &entry{
		order:    o,
		receipts: make(map[string]domain.TenderReceipt),
	}
	s.board.ReplaceOrInsert(boardEntry{CreatedAt: o.CreatedAt, OrderID: o.ID})
	return nil
}

// Get returns a deep snapshot of the order, or ErrOrderNotFound.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.deleted {
		return nil, domain.ErrOrderNotFound
	}
	return e.order.Clone(), nil
}

// Update runs fn against the live order under the per-order lock and
// commits the result: the version is bumped and a snapshot returned. If
// fn returns an error the order is left exactly as it was. A version
// shift observed during the critical section is reported as
// ErrConcurrencyConflict rather than silently merged; under the entry
// lock it cannot occur.
func (s *OrderStore) Update(id string, fn func(tx *Txn) error) (*domain.Order, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.updateEntry(e, fn)
}

// updateEntry commits an update against an already-resolved entry. A
// delete that slipped in between the lookup and the entry lock is
// observed here; committing to the orphaned entry would acknowledge a
// mutation no reader can ever see.
func (s *OrderStore) updateEntry(e *entry, fn func(tx *Txn) error) (*domain.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deleted {
		return nil, domain.ErrOrderNotFound
	}

	before := e.order.Version
	work := e.order.Clone()
	tx := &Txn{Order: work, receipts: e.receipts}
	if err := fn(tx); err != nil {
		return nil, err
	}
	if e.order.Version != before {
		return nil, domain.ErrConcurrencyConflict
	}

	work.Version = before + 1
	e.order = work
	return work.Clone(), nil
}

// Delete removes the order, returning its final snapshot.
func (s *OrderStore) Delete(id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	e.mu.Lock()
	e.deleted = true
	snap := e.order.Clone()
	e.mu.Unlock()

	delete(s.entries, id)
	s.board.Delete(boardEntry{CreatedAt: snap.CreatedAt, OrderID: id})
	return snap, nil
}

// List returns snapshots of all orders, newest first. Optional filters
// narrow by status and channel. The board is walked under a read lock;
// each order is then copied under its own brief entry lock, so writers
// are never blocked for long.
func (s *OrderStore) List(status *domain.OrderStatus, channel *domain.Channel) []*domain.Order {
	ids := s.boardIDs()

	out := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		e, err := s.lookup(id)
		if err != nil {
			continue // deleted between walk and copy
		}
		e.mu.Lock()
		if e.deleted {
			e.mu.Unlock()
			continue
		}
		o := e.order.Clone()
		e.mu.Unlock()

		if status != nil && o.Status != *status {
			continue
		}
		if channel != nil && o.Channel != *channel {
			continue
		}
		out = append(out, o)
	}
	return out
}

// ListActive returns snapshots of all non-terminal orders, newest first.
func (s *OrderStore) ListActive() []*domain.Order {
	all := s.List(nil, nil)
	active := make([]*domain.Order, 0, len(all))
	for _, o := range all {
		if !o.IsTerminal() {
			active = append(active, o)
		}
	}
	return active
}

// Len returns the number of stored orders.
func (s *OrderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *OrderStore) lookup(id string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return e, nil
}

func (s *OrderStore) boardIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, s.board.Len())
	s.board.Ascend(func(be boardEntry) bool {
		ids = append(ids, be.OrderID)
		return true
	})
	return ids
}
