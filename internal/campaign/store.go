package campaign

import (
	"context"
	"sync"

	"pigeon/internal/logger"
	pkgerrors "pigeon/pkg/errors"
)

// Store is an in-memory read cache of campaigns, backed by the
// repository. The repository row is authoritative: mutations re-read
// it before applying, and every mutation is written through before
// the cache is updated, so a failed write never leaves the cache
// ahead of the database. More than one process may share the same
// repository (the API and the worker do), so a cached entry is only a
// hint.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*Campaign
	repo   Repository
	logger logger.Logger
}

func NewStore(repo Repository, log logger.Logger) *Store {
	return &Store{
		byID:   make(map[string]*Campaign),
		repo:   repo,
		logger: log,
	}
}

// Load warms the cache from the repository. Called once at startup.
func (s *Store) Load(ctx context.Context) error {
	const pageSize = 500

	s.mu.Lock()
	defer s.mu.Unlock()

	for offset := 0; ; offset += pageSize {
		page, err := s.repo.List(ctx, "", pageSize, offset)
		if err != nil {
			return err
		}
		for i := range page {
			c := page[i]
			s.byID[c.ID] = &c
		}
		if len(page) < pageSize {
			break
		}
	}

	s.logger.Infow("Campaign store loaded", "campaigns", len(s.byID))
	return nil
}

// Get returns a copy of the campaign so callers cannot mutate shared
// state behind the store's back. A cache miss falls back to the
// repository: another process may have created the campaign after
// this store was warmed.
func (s *Store) Get(ctx context.Context, id string) (*Campaign, error) {
	s.mu.RLock()
	c, ok := s.byID[id]
	if ok {
		copied := *c
		s.mu.RUnlock()
		return &copied, nil
	}
	s.mu.RUnlock()

	fresh, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *fresh
	s.byID[id] = &copied
	returned := *fresh
	return &returned, nil
}

// List returns copies of all cached campaigns, optionally filtered by
// status.
func (s *Store) List(status Status) []Campaign {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Campaign, 0, len(s.byID))
	for _, c := range s.byID {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, *c)
	}
	return out
}

// Create persists the campaign and caches it.
func (s *Store) Create(ctx context.Context, c *Campaign) error {
	if err := s.repo.Create(ctx, c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *c
	s.byID[c.ID] = &copied
	return nil
}

// Update writes the campaign through to the repository, then replaces
// the cached entry.
func (s *Store) Update(ctx context.Context, c *Campaign) error {
	if err := s.repo.Update(ctx, c); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *c
	s.byID[c.ID] = &copied
	return nil
}

// Mutate re-reads the campaign from the repository under the store
// lock, applies fn to the fresh row and writes the result through.
// Reading through means a mutation can never write back a stale
// snapshot over changes committed by another process, such as the
// worker completing a campaign while the API still holds the
// scheduled row in cache. If fn or the write fails the cache keeps
// the prior value, so the campaign stays consistent.
func (s *Store) Mutate(ctx context.Context, id string, fn func(c *Campaign) error) (*Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			delete(s.byID, id)
		}
		return nil, err
	}

	working := *current
	if err := fn(&working); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, &working); err != nil {
		return nil, err
	}

	s.byID[id] = &working
	copied := working
	return &copied, nil
}

// Delete removes the campaign from the repository and the cache.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return NewCampaignNotFoundError(id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	delete(s.byID, id)
	return nil
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
