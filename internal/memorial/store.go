package memorial

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"

	"auracal/internal/datemath"
	appLog "auracal/internal/log"
	"auracal/internal/model"
)

// Store owns the in-memory set of memorial days for the running process.
//
// Every mutation rewrites the whole collection through the Repository
// (last write wins). Reads are recomputed on demand; the collection is small
// and changes rarely, so nothing derived is cached.
type Store struct {
	repo Repository

	mu    sync.RWMutex
	items []model.MemorialDay

	newID func() string
}

// NewStore creates an empty store backed by repo. Call Load before use.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:  repo,
		newID: uuid.NewString,
	}
}

// Load replaces the in-memory collection with the repository contents.
// It is intended to be called once at boot.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("memorial: load: %w", err)
	}

	s.mu.Lock()
	s.items = slices.Clone(items)
	s.mu.Unlock()

	appLog.Info("memorial days loaded", "count", len(items))
	return nil
}

// Add appends a new memorial day. An empty name or date is refused: nothing
// changes and ok is false. If persisting fails the addition is rolled back.
func (s *Store) Add(ctx context.Context, name, date string) (m model.MemorialDay, ok bool, err error) {
	name = strings.TrimSpace(name)
	date = strings.TrimSpace(date)
	if name == "" || date == "" {
		return model.MemorialDay{}, false, nil
	}

	m = model.MemorialDay{ID: s.newID(), Name: name, Date: date}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.items
	s.items = append(slices.Clone(prev), m)
	if err := s.repo.Save(ctx, s.items); err != nil {
		s.items = prev
		return model.MemorialDay{}, false, fmt.Errorf("memorial: save after add: %w", err)
	}

	appLog.Info("memorial day added", "id", m.ID, "name", m.Name, "date", m.Date)
	return m, true, nil
}

// Import appends several entries with a single persistence write. Entries
// with an empty name or date are skipped. It returns the added records.
func (s *Store) Import(ctx context.Context, entries []model.MemorialDay) ([]model.MemorialDay, error) {
	added := make([]model.MemorialDay, 0, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		date := strings.TrimSpace(e.Date)
		if name == "" || date == "" {
			continue
		}
		added = append(added, model.MemorialDay{ID: s.newID(), Name: name, Date: date})
	}
	if len(added) == 0 {
		return added, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.items
	s.items = append(slices.Clone(prev), added...)
	if err := s.repo.Save(ctx, s.items); err != nil {
		s.items = prev
		return nil, fmt.Errorf("memorial: save after import: %w", err)
	}

	appLog.Info("memorial days imported", "count", len(added))
	return added, nil
}

// Remove deletes the entry with the given id. An unknown id is not an error;
// removed is false and nothing is persisted.
func (s *Store) Remove(ctx context.Context, id string) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.items, func(m model.MemorialDay) bool { return m.ID == id })
	if idx < 0 {
		return false, nil
	}

	prev := s.items
	s.items = slices.Delete(slices.Clone(prev), idx, idx+1)
	if err := s.repo.Save(ctx, s.items); err != nil {
		s.items = prev
		return false, fmt.Errorf("memorial: save after remove: %w", err)
	}

	appLog.Info("memorial day removed", "id", id)
	return true, nil
}

// List returns a copy of all entries in insertion order.
func (s *Store) List() []model.MemorialDay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Get looks up a single entry by id.
func (s *Store) Get(id string) (model.MemorialDay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.items {
		if m.ID == id {
			return m, true
		}
	}
	return model.MemorialDay{}, false
}

// ListNearest resolves every entry against today and returns the count
// nearest ones, ascending by days remaining. Ties keep insertion order.
// Entries whose date cannot be parsed are skipped. A count <= 0 returns all.
func (s *Store) ListNearest(today time.Time, count int) []model.CountdownResult {
	items := s.List()

	out := make([]model.CountdownResult, 0, len(items))
	for _, m := range items {
		occ, err := datemath.NextOccurrence(today, m)
		if err != nil {
			appLog.Debug("skipping memorial day with malformed date", "id", m.ID, "date", m.Date)
			continue
		}
		out = append(out, model.CountdownResult{
			MemorialDay:   m,
			Target:        occ.Target,
			DaysRemaining: occ.DaysRemaining,
		})
	}

	slices.SortStableFunc(out, func(a, b model.CountdownResult) int {
		return a.DaysRemaining - b.DaysRemaining
	})

	if count > 0 && len(out) > count {
		out = out[:count]
	}
	return out
}

// Search returns entries whose name fuzzily matches query, best match
// first. An empty query returns every entry in insertion order.
func (s *Store) Search(query string) []model.MemorialDay {
	items := s.List()

	query = strings.TrimSpace(query)
	if query == "" {
		return items
	}

	names := make([]string, len(items))
	for i, m := range items {
		names[i] = m.Name
	}

	matches := fuzzy.Find(query, names)
	out := make([]model.MemorialDay, 0, len(matches))
	for _, match := range matches {
		out = append(out, items[match.Index])
	}
	return out
}
