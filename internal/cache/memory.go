package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hrishabh6/CodeExecutionEngine-sub001/internal/model"
)

// Memory is the in-process cache for cacheless deployments and tests.
// Records expire lazily on access.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	// now is swappable for expiry tests.
	now func() time.Time
}

type memoryEntry struct {
	payload   []byte
	status    model.Status
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *Memory) Put(ctx context.Context, rec *model.StatusRecord, ttl time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[rec.SubmissionID] = memoryEntry{
		payload:   payload,
		status:    rec.Status,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*model.StatusRecord, error) {
	m.mu.Lock()
	entry, ok := m.liveEntry(id)
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var rec model.StatusRecord
	if err := json.Unmarshal(entry.payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *Memory) CompareAndSet(ctx context.Context, id string, expected model.Status, rec *model.StatusRecord, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.liveEntry(id)
	if !ok || entry.status != expected {
		return false, nil
	}
	m.entries[id] = memoryEntry{
		payload:   payload,
		status:    rec.Status,
		expiresAt: m.now().Add(ttl),
	}
	return true, nil
}

func (m *Memory) Touch(ctx context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.liveEntry(id)
	if !ok {
		return ErrNotFound
	}
	entry.expiresAt = m.now().Add(ttl)
	m.entries[id] = entry
	return nil
}

// liveEntry returns the entry for id, deleting it if expired. Caller holds
// the lock.
func (m *Memory) liveEntry(id string) (memoryEntry, bool) {
	entry, ok := m.entries[id]
	if !ok {
		return memoryEntry{}, false
	}
	if m.now().After(entry.expiresAt) {
		delete(m.entries, id)
		return memoryEntry{}, false
	}
	return entry, true
}
