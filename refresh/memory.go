package refresh

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps records in process memory. It is meant for tests,
// single-instance deployments and the development server.
type MemoryRepository struct {
	mu     sync.Mutex
	byHash map[string]Record
	byID   map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byHash: make(map[string]Record),
		byID:   make(map[string]string),
	}
}

func (m *MemoryRepository) Insert(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byHash[rec.Hash] = rec
	m.byID[rec.ID] = rec.Hash
	return nil
}

func (m *MemoryRepository) FindByHash(_ context.Context, hash string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byHash[hash]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *MemoryRepository) TakeByHash(_ context.Context, hash string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byHash[hash]
	if !ok {
		return Record{}, ErrNotFound
	}
	delete(m.byHash, hash)
	delete(m.byID, rec.ID)
	return rec, nil
}

func (m *MemoryRepository) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hash, ok := m.byID[id]; ok {
		delete(m.byHash, hash)
		delete(m.byID, id)
	}
	return nil
}

func (m *MemoryRepository) DeleteByUser(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for hash, rec := range m.byHash {
		if rec.UserID == userID {
			delete(m.byHash, hash)
			delete(m.byID, rec.ID)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryRepository) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for hash, rec := range m.byHash {
		if !rec.ExpiresAt.After(now) {
			delete(m.byHash, hash)
			delete(m.byID, rec.ID)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored records.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}
