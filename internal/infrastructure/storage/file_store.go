/*
Package storage provides the durable watchlist and seen-state backends: a
single-file JSON store for small deployments and a Postgres store.
*/
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/ports"
)

// userState is the on-disk representation of one user:
// symbols plus the delivered filing ids per symbol.
type userState struct {
	Symbols     []string            `json:"symbols"`
	LastFilings map[string][]string `json:"lastFilings"`
}

// FileStore keeps all state in one JSON file. Every mutation is flushed
// through a temp-file rename before the call returns, so a crash mid-cycle
// leaves either the previous or the new state on disk, never a partial
// merge. A single mutex serializes mutations, which also satisfies the
// per-user write ordering requirement.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	state map[string]*userState
}

var (
	_ ports.WatchlistStore = (*FileStore)(nil)
	_ ports.SeenStore      = (*FileStore)(nil)
)

// NewFileStore loads the state file. A missing file is an empty state; an
// existing but unparseable file fails loudly instead of silently resetting.
func NewFileStore(path string, log *slog.Logger) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		logger: log,
		state:  map[string]*userState{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if log != nil {
				log.Info("state file not found, starting empty", "path", path)
			}
			return s, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrStorageFailure, path, err)
	}

	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrStateCorrupt, path, err)
	}
	return s, nil
}

// Users lists every known user id.
func (s *FileStore) Users(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]string, 0, len(s.state))
	for id := range s.state {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

// EnsureUser creates the user entry on first contact, optionally seeded.
func (s *FileStore) EnsureUser(ctx context.Context, userID string, seed []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state[userID]; ok {
		return nil
	}
	s.state[userID] = &userState{
		Symbols:     append([]string(nil), seed...),
		LastFilings: map[string][]string{},
	}
	return s.flush()
}

// Symbols returns a copy of the user's tracked symbols.
func (s *FileStore) Symbols(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.state[userID]
	if !ok {
		return nil, nil
	}
	return append([]string(nil), user.Symbols...), nil
}

// AddSymbol appends the symbol unless it is already tracked.
func (s *FileStore) AddSymbol(ctx context.Context, userID, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.userLocked(userID)
	for _, existing := range user.Symbols {
		if existing == symbol {
			return false, nil
		}
	}
	user.Symbols = append(user.Symbols, symbol)
	if err := s.flush(); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveSymbol drops the symbol and its seen-state; absent symbols are a
// no-op.
func (s *FileStore) RemoveSymbol(ctx context.Context, userID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.state[userID]
	if !ok {
		return nil
	}

	kept := user.Symbols[:0]
	removed := false
	for _, existing := range user.Symbols {
		if existing == symbol {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return nil
	}
	user.Symbols = kept
	delete(user.LastFilings, symbol)
	return s.flush()
}

// FirstContact reports whether the pair has never been committed.
func (s *FileStore) FirstContact(ctx context.Context, userID, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.state[userID]
	if !ok {
		return true, nil
	}
	_, committed := user.LastFilings[symbol]
	return !committed, nil
}

// Seen returns which of the given ids are already recorded for the pair.
func (s *FileStore) Seen(ctx context.Context, userID, symbol string, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]bool, len(ids))
	user, ok := s.state[userID]
	if !ok {
		return result, nil
	}

	recorded := make(map[string]struct{}, len(user.LastFilings[symbol]))
	for _, id := range user.LastFilings[symbol] {
		recorded[id] = struct{}{}
	}
	for _, id := range ids {
		if _, seen := recorded[id]; seen {
			result[id] = true
		}
	}
	return result, nil
}

// CommitSeen merges the ids into the pair's set and persists before
// returning. Committing the same ids twice leaves the set unchanged.
func (s *FileStore) CommitSeen(ctx context.Context, userID, symbol string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := s.userLocked(userID)
	existing := user.LastFilings[symbol]
	recorded := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		recorded[id] = struct{}{}
	}

	merged := existing
	for _, id := range ids {
		if _, ok := recorded[id]; ok {
			continue
		}
		recorded[id] = struct{}{}
		merged = append(merged, id)
	}
	if user.LastFilings == nil {
		user.LastFilings = map[string][]string{}
	}
	user.LastFilings[symbol] = merged

	return s.flush()
}

func (s *FileStore) userLocked(userID string) *userState {
	user, ok := s.state[userID]
	if !ok {
		user = &userState{LastFilings: map[string][]string{}}
		s.state[userID] = user
	}
	if user.LastFilings == nil {
		user.LastFilings = map[string][]string{}
	}
	return user
}

// flush writes the whole state through a temp file and renames it into
// place. Called with the mutex held.
func (s *FileStore) flush() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal state: %v", domain.ErrStorageFailure, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrStorageFailure, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", domain.ErrStorageFailure, s.path, err)
	}
	return nil
}
