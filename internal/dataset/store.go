package dataset

import "sync"

// Store holds the application's dataset slot: the single current dataset
// plus its parsed rows. A successful pipeline run replaces the whole slot
// in one step; a failed run never touches it. Consumers therefore either
// see the previous dataset intact or the new one complete, never a mix.
type Store struct {
	mu      sync.RWMutex
	current *Dataset
	headers []string
	rows    []RawRow
}

// NewStore returns an empty dataset slot.
func NewStore() *Store {
	return &Store{}
}

// Replace swaps in a new dataset with its column order and rows.
// The swap is atomic with respect to all readers.
func (s *Store) Replace(ds *Dataset, headers []string, rows []RawRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = ds
	s.headers = headers
	s.rows = rows
}

// Current returns the stored dataset, or false when the slot is empty.
func (s *Store) Current() (*Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, false
	}
	return s.current, true
}

// Get returns the stored dataset when id matches it.
func (s *Store) Get(id string) (*Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil || s.current.ID != id {
		return nil, false
	}
	return s.current, true
}

// Rows returns the column order and parsed rows for the dataset with id.
func (s *Store) Rows(id string) ([]string, []RawRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil || s.current.ID != id {
		return nil, nil, false
	}
	return s.headers, s.rows, true
}

// Clear empties the slot when id matches the stored dataset.
// Returns false when no such dataset is stored.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || s.current.ID != id {
		return false
	}
	s.current = nil
	s.headers = nil
	s.rows = nil
	return true
}
