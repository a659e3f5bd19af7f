package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/logging"
)

func newStore(t *testing.T) (*FileStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state.json")
	store, err := NewFileStore(path, logging.Discard())
	require.NoError(t, err)
	return store, path
}

func TestMissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)

	users, err := store.Users(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestCorruptFileFailsLoudly(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStore(path, logging.Discard())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStateCorrupt)
}

func TestAddSymbolIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newStore(t)

	added, err := store.AddSymbol(ctx, "u1", "RELIANCE")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AddSymbol(ctx, "u1", "RELIANCE")
	require.NoError(t, err)
	assert.False(t, added)

	symbols, err := store.Symbols(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE"}, symbols)
}

func TestRemoveAbsentSymbolIsNoOp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newStore(t)

	require.NoError(t, store.RemoveSymbol(ctx, "u1", "TCS"))

	_, err := store.AddSymbol(ctx, "u1", "TCS")
	require.NoError(t, err)
	require.NoError(t, store.RemoveSymbol(ctx, "u1", "INFY"))

	symbols, err := store.Symbols(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"TCS"}, symbols)
}

func TestRemoveSymbolDropsSeenState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newStore(t)

	_, err := store.AddSymbol(ctx, "u1", "TCS")
	require.NoError(t, err)
	require.NoError(t, store.CommitSeen(ctx, "u1", "TCS", []string{"f1"}))
	require.NoError(t, store.RemoveSymbol(ctx, "u1", "TCS"))

	first, err := store.FirstContact(ctx, "u1", "TCS")
	require.NoError(t, err)
	assert.True(t, first, "re-adding a removed symbol starts fresh")
}

func TestCommitSeenIsIdempotentUnion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newStore(t)

	require.NoError(t, store.CommitSeen(ctx, "u1", "RELIANCE", []string{"f1", "f2"}))
	require.NoError(t, store.CommitSeen(ctx, "u1", "RELIANCE", []string{"f2", "f3"}))
	require.NoError(t, store.CommitSeen(ctx, "u1", "RELIANCE", []string{"f2", "f3"}))

	seen, err := store.Seen(ctx, "u1", "RELIANCE", []string{"f1", "f2", "f3", "f4"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"f1": true, "f2": true, "f3": true}, seen)
}

func TestFirstContactMarker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newStore(t)

	first, err := store.FirstContact(ctx, "u1", "RELIANCE")
	require.NoError(t, err)
	assert.True(t, first)

	// seeding with zero filings still marks the pair as fetched
	require.NoError(t, store.CommitSeen(ctx, "u1", "RELIANCE", nil))

	first, err = store.FirstContact(ctx, "u1", "RELIANCE")
	require.NoError(t, err)
	assert.False(t, first)
}

func TestStateSurvivesReload(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, path := newStore(t)

	_, err := store.AddSymbol(ctx, "u1", "RELIANCE")
	require.NoError(t, err)
	require.NoError(t, store.CommitSeen(ctx, "u1", "RELIANCE", []string{"f1", "f2"}))

	reloaded, err := NewFileStore(path, logging.Discard())
	require.NoError(t, err)

	symbols, err := reloaded.Symbols(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"RELIANCE"}, symbols)

	seen, err := reloaded.Seen(ctx, "u1", "RELIANCE", []string{"f1", "f2"})
	require.NoError(t, err)
	assert.Len(t, seen, 2)

	first, err := reloaded.FirstContact(ctx, "u1", "RELIANCE")
	require.NoError(t, err)
	assert.False(t, first)
}

func TestEnsureUserSeedsOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newStore(t)

	require.NoError(t, store.EnsureUser(ctx, "u1", []string{"NIFTYBEES"}))
	require.NoError(t, store.EnsureUser(ctx, "u1", []string{"OTHER"}))

	symbols, err := store.Symbols(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"NIFTYBEES"}, symbols)
}
