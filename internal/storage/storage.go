// Package storage persists payments between the requests of a capture: the
// details record plus the gateway that captures it. Records are stored as
// snapshots, so secret card data never reaches a backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/capture-bridge/internal/details"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("storage: record not found")
	// ErrExists is returned by Create for an id already in use.
	ErrExists = errors.New("storage: record already exists")
)

// Record is one stored payment.
type Record struct {
	ID        string
	Gateway   string
	Details   *details.Details
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is implemented by every backend.
type Store interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Update(ctx context.Context, r *Record) error
	Close() error
}

type snapshot struct {
	gateway   string
	details   []byte
	createdAt time.Time
	updatedAt time.Time
}

func (s snapshot) record(id string) (*Record, error) {
	d, err := details.Decode(s.details)
	if err != nil {
		return nil, fmt.Errorf("storage: record %s: %w", id, err)
	}
	return &Record{ID: id, Gateway: s.gateway, Details: d, CreatedAt: s.createdAt, UpdatedAt: s.updatedAt}, nil
}

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]snapshot
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]snapshot), now: time.Now}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, r *Record) error {
	raw, err := encode(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[r.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, r.ID)
	}
	now := m.now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	m.records[r.ID] = snapshot{gateway: r.Gateway, details: raw, createdAt: now, updatedAt: now}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	s, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.record(id)
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, r *Record) error {
	raw, err := encode(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[r.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, r.ID)
	}
	s.details = raw
	s.gateway = r.Gateway
	s.updatedAt = m.now().UTC()
	m.records[r.ID] = s
	r.CreatedAt, r.UpdatedAt = s.createdAt, s.updatedAt
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

func encode(r *Record) ([]byte, error) {
	if r == nil || r.ID == "" {
		return nil, errors.New("storage: record id is required")
	}
	if r.Details == nil {
		return nil, fmt.Errorf("storage: record %s has no details", r.ID)
	}
	raw, err := r.Details.Encode()
	if err != nil {
		return nil, fmt.Errorf("storage: record %s: %w", r.ID, err)
	}
	return raw, nil
}
