package storage

import (
	"context"
	"sync"

	"smartbill/billing-svc/internal/domain"
	"smartbill/billing-svc/internal/ledger"
)

type memoryEntry struct {
	mu      sync.Mutex
	table   *domain.Table
	deleted bool
}

// MemoryStore keeps tables in process. The map lock only guards membership;
// each table has its own mutex so updates to different tables run in
// parallel.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	order   []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) Insert(ctx context.Context, table *domain.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[table.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.entries[table.ID] = &memoryEntry{table: table.Clone()}
	s.order = append(s.order, table.ID)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry := s.lookup(id)
	if entry == nil {
		return nil, domain.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, domain.ErrNotFound
	}
	return entry.table.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*domain.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entries := make([]*memoryEntry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.entries[id])
	}
	s.mu.RUnlock()

	tables := make([]*domain.Table, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		if !entry.deleted {
			tables = append(tables, entry.table.Clone())
		}
		entry.mu.Unlock()
	}
	return tables, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn ledger.MutateFunc) (*domain.Table, error) {
	entry := s.lookup(id)
	if entry == nil {
		return nil, domain.ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.deleted {
		return nil, domain.ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working := entry.table.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	// Last chance to honour cancellation; past this point the write is visible.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry.table = working
	return working.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	delete(s.entries, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	// Waits for an in-flight update of this table only; other tables are
	// already reachable again.
	entry.mu.Lock()
	entry.deleted = true
	entry.mu.Unlock()
	return nil
}

func (s *MemoryStore) lookup(id string) *memoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

var _ ledger.Store = (*MemoryStore)(nil)
