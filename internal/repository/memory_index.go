package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryEntry struct {
	vectorID   string
	entityID   string
	entityType string
	ownerID    string
	embedding  []float32
}

// MemoryIndex is an in-process VectorIndex for development and tests.
// Brute-force inner-product scan; fine at the scale a single process sees.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryIndex creates an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		entries: make(map[string]memoryEntry),
	}
}

// Connected always reports true.
func (m *MemoryIndex) Connected() bool {
	return true
}

// Upsert stores an embedding and returns a generated vector ID.
func (m *MemoryIndex) Upsert(ctx context.Context, entityID, entityType, ownerID string, embedding []float32) (string, error) {
	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	vectorID := uuid.New().String()

	m.mu.Lock()
	m.entries[vectorID] = memoryEntry{
		vectorID:   vectorID,
		entityID:   entityID,
		entityType: entityType,
		ownerID:    ownerID,
		embedding:  vec,
	}
	m.mu.Unlock()

	return vectorID, nil
}

// Search scans all entries matching the scope and returns the top matches by
// inner product, best first.
func (m *MemoryIndex) Search(ctx context.Context, embedding []float32, ownerIDs []string, entityType string, limit int) ([]VectorHit, error) {
	owners := make(map[string]struct{}, len(ownerIDs))
	for _, id := range ownerIDs {
		owners[id] = struct{}{}
	}

	m.mu.RLock()
	hits := make([]VectorHit, 0, len(m.entries))
	for _, e := range m.entries {
		if e.entityType != entityType {
			continue
		}
		if len(owners) > 0 {
			if _, ok := owners[e.ownerID]; !ok {
				continue
			}
		}
		hits = append(hits, VectorHit{
			VectorID:   e.vectorID,
			EntityID:   e.entityID,
			EntityType: e.entityType,
			OwnerID:    e.ownerID,
			Score:      dotProduct(embedding, e.embedding),
		})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Remove deletes an entry by its vector ID.
func (m *MemoryIndex) Remove(ctx context.Context, vectorID string) error {
	m.mu.Lock()
	delete(m.entries, vectorID)
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func dotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
