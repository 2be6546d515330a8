package repository

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store. It backs tests and acts as the fallback
// when no sqlite path is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[Sheet][][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sheets: make(map[Sheet][][]string),
	}
}

// ReadAll returns a copy of the sheet's rows.
func (m *MemoryStore) ReadAll(_ context.Context, sheet Sheet) ([][]string, error) {
	if !sheet.valid() {
		return nil, ErrUnknownSheet
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.sheets[sheet]
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

// WriteAll replaces the sheet's contents.
func (m *MemoryStore) WriteAll(_ context.Context, sheet Sheet, rows [][]string) error {
	if !sheet.valid() {
		return ErrUnknownSheet
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([][]string, len(rows))
	for i, row := range rows {
		stored[i] = padRow(row)
	}
	m.sheets[sheet] = stored
	return nil
}

// Append adds one row to the end of the sheet.
func (m *MemoryStore) Append(_ context.Context, sheet Sheet, row []string) error {
	if !sheet.valid() {
		return ErrUnknownSheet
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sheets[sheet] = append(m.sheets[sheet], padRow(row))
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
