package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is a process-local RowStore used for local runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	specs  map[string]TableSpec
	tables map[string][]map[string]any
}

// NewMemoryStore creates an empty in-memory row store laid out by specs.
func NewMemoryStore(specs map[string]TableSpec) *MemoryStore {
	return &MemoryStore{specs: specs, tables: map[string][]map[string]any{}}
}

func (m *MemoryStore) spec(table string) (TableSpec, error) {
	spec, ok := m.specs[table]
	if !ok {
		return TableSpec{}, fmt.Errorf("unknown table %q", table)
	}
	return spec, nil
}

func (m *MemoryStore) Select(_ context.Context, table string, q Query) ([]json.RawMessage, error) {
	if _, err := m.spec(table); err != nil {
		return nil, err
	}
	m.mu.Lock()
	var rows []map[string]any
	for _, row := range m.tables[table] {
		if q.Match(row) {
			rows = append(rows, row)
		}
	}
	m.mu.Unlock()
	sortRows(rows, q.OrderBy)
	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		raw, err := encodeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func (m *MemoryStore) Insert(_ context.Context, table string, row map[string]any) (json.RawMessage, error) {
	spec, err := m.spec(table)
	if err != nil {
		return nil, err
	}
	raw, err := encodeRow(row)
	if err != nil {
		return nil, err
	}
	// store the decoded form so reads see the same types as the table store
	stored, err := decodeRow(raw)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tables[table] {
		if spec.partition(existing) == spec.partition(stored) && spec.key(existing) == spec.key(stored) {
			return nil, fmt.Errorf("insert %s: %w", table, ErrConflict)
		}
	}
	m.tables[table] = append(m.tables[table], stored)
	return raw, nil
}

func (m *MemoryStore) Update(_ context.Context, table string, q Query, partial map[string]any) ([]Change, error) {
	spec, err := m.spec(table)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var changes []Change
	rows := m.tables[table]
	for i, row := range rows {
		if !q.Match(row) {
			continue
		}
		if err := checkPartition(spec, row, partial); err != nil {
			return nil, err
		}
		oldRaw, err := encodeRow(row)
		if err != nil {
			return nil, err
		}
		newRaw, err := encodeRow(mergeRow(row, partial))
		if err != nil {
			return nil, err
		}
		merged, err := decodeRow(newRaw)
		if err != nil {
			return nil, err
		}
		rows[i] = merged
		changes = append(changes, Change{Old: oldRaw, New: newRaw})
	}
	if len(changes) == 0 {
		return nil, fmt.Errorf("update %s: %w", table, ErrNotFound)
	}
	return changes, nil
}

func (m *MemoryStore) Delete(_ context.Context, table string, q Query) ([]json.RawMessage, error) {
	if _, err := m.spec(table); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []json.RawMessage
	kept := m.tables[table][:0]
	for _, row := range m.tables[table] {
		if !q.Match(row) {
			kept = append(kept, row)
			continue
		}
		raw, err := encodeRow(row)
		if err != nil {
			return nil, err
		}
		removed = append(removed, raw)
	}
	m.tables[table] = kept
	if len(removed) == 0 {
		return nil, fmt.Errorf("delete %s: %w", table, ErrNotFound)
	}
	return removed, nil
}
