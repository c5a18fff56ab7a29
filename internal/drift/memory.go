package drift

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schemaproof/internal/model"
)

// MemoryStore is an in-process Store. Records are kept per source in
// insertion order.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]model.DriftRecord
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]model.DriftRecord)}
}

func (m *MemoryStore) currentIndex(sourceID string) int {
	recs := m.records[sourceID]
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].IsCurrent {
			return i
		}
	}
	return -1
}

// Current returns a copy of the current record for sourceID, or nil.
func (m *MemoryStore) Current(_ context.Context, sourceID string) (*model.DriftRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.currentIndex(sourceID)
	if i < 0 {
		return nil, nil
	}
	rec := m.records[sourceID][i]
	return &rec, nil
}

// Insert adds rec as the current record. It fails with ErrCurrentExists
// when the source already has one.
func (m *MemoryStore) Insert(_ context.Context, rec *model.DriftRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentIndex(rec.SourceID) >= 0 {
		return eris.Wrapf(ErrCurrentExists, "memory: insert %s", rec.SourceID)
	}
	r := *rec
	r.IsCurrent = true
	m.records[rec.SourceID] = append(m.records[rec.SourceID], r)
	return nil
}

// find locates the current record with the given id.
func (m *MemoryStore) find(id string) (string, int) {
	for src := range m.records {
		i := m.currentIndex(src)
		if i >= 0 && m.records[src][i].ID == id {
			return src, i
		}
	}
	return "", -1
}

// Touch moves last_seen of the current record id forward to seen.
func (m *MemoryStore) Touch(_ context.Context, id string, seen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, i := m.find(id)
	if i < 0 {
		return eris.Wrapf(ErrStale, "memory: touch %s", id)
	}
	if seen.After(m.records[src][i].LastSeen) {
		m.records[src][i].LastSeen = seen
	}
	return nil
}

// Supersede retires the current record prevID and makes next current.
func (m *MemoryStore) Supersede(_ context.Context, prevID string, next *model.DriftRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, i := m.find(prevID)
	if i < 0 || src != next.SourceID {
		return eris.Wrapf(ErrStale, "memory: supersede %s", prevID)
	}
	m.records[src][i].IsCurrent = false
	r := *next
	r.IsCurrent = true
	m.records[src] = append(m.records[src], r)
	return nil
}

// History returns every record of sourceID, newest first.
func (m *MemoryStore) History(_ context.Context, sourceID string) ([]model.DriftRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.records[sourceID]
	out := make([]model.DriftRecord, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = r
	}
	return out, nil
}
