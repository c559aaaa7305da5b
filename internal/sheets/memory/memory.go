// Package memory keeps exported months in process. The worker uses it when
// no spreadsheet is configured; tests use it to observe exports.
package memory

import (
	"context"
	"sort"
	"sync"

	"budgetcal/internal/sheets"
)

type Store struct {
	mu     sync.Mutex
	tabs   map[string][][]any
	counts map[string]int
	err    error
}

var _ sheets.MonthExporter = (*Store)(nil)

func New() *Store {
	return &Store{tabs: make(map[string][][]any), counts: make(map[string]int)}
}

// FailWith makes every following export return err; nil clears it.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ExportMonth replaces the tab of the month with its current rows.
func (s *Store) ExportMonth(ctx context.Context, m sheets.MonthSheet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.tabs[m.TabName()] = m.Rows()
	s.counts[m.TabName()]++
	return nil
}

// Tab returns the rows last exported to a tab.
func (s *Store) Tab(name string) ([][]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.tabs[name]
	return rows, ok
}

// Exports returns how many times a tab was written.
func (s *Store) Exports(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[name]
}

// Tabs lists the exported tab names in order.
func (s *Store) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tabs))
	for name := range s.tabs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
