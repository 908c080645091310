package sheet

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a process-local RowStore for development and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	rows [][]string
}

// NewMemoryStore returns a store holding only header.
func NewMemoryStore(header []string) *MemoryStore {
	s := &MemoryStore{}
	if len(header) > 0 {
		s.rows = append(s.rows, append([]string(nil), header...))
	}
	return s
}

// Header implements RowStore.
func (s *MemoryStore) Header(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rows) == 0 {
		return nil, nil
	}
	return append([]string(nil), s.rows[0]...), nil
}

// Records implements RowStore.
func (s *MemoryStore) Records(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.rows) < 2 {
		return nil, nil
	}
	records := make([]Record, 0, len(s.rows)-1)
	for _, row := range s.rows[1:] {
		records = append(records, toRecord(s.rows[0], row))
	}
	return records, nil
}

// ColumnValues implements RowStore.
func (s *MemoryStore) ColumnValues(_ context.Context, col int) ([]string, error) {
	if err := validCoordinate(1, col); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	values := make([]string, len(s.rows))
	for i, row := range s.rows {
		if col-1 < len(row) {
			values[i] = row[col-1]
		}
	}
	return values, nil
}

// UpdateCell implements RowStore.
func (s *MemoryStore) UpdateCell(_ context.Context, row, col int, value string) error {
	if err := validCoordinate(row, col); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row > len(s.rows) {
		return fmt.Errorf("%w: %d", ErrRowNotFound, row)
	}
	cells := s.rows[row-1]
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	s.rows[row-1] = cells
	return nil
}

// AppendRow implements RowStore.
func (s *MemoryStore) AppendRow(_ context.Context, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, append([]string(nil), values...))
	return nil
}

// Ping implements RowStore.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of rows including the header.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
