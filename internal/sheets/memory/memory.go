package memory

import (
	"context"
	"fmt"
	"sync"

	"payback/internal/core"
	ports "payback/internal/sheets"
)

// Store keeps the last mirrored view of each period in memory.
type Store struct {
	mu     sync.Mutex
	views  map[core.Period]core.MonthView
	writes int
}

var _ ports.MonthWriter = (*Store)(nil)

func New() *Store {
	return &Store{views: make(map[core.Period]core.MonthView)}
}

// WriteMonth stores the view and returns a synthetic reference.
func (s *Store) WriteMonth(_ context.Context, view core.MonthView) (string, error) {
	if err := view.Period.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[view.Period] = view
	s.writes++
	return fmt.Sprintf("mem:%s#%d", view.Period, s.writes), nil
}

func (s *Store) ClearMonth(_ context.Context, period core.Period) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, period)
	return nil
}

// Month returns the mirrored view of a period, if any.
func (s *Store) Month(period core.Period) (core.MonthView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[period]
	return v, ok
}

// Writes counts successful WriteMonth calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
