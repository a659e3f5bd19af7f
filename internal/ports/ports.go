package ports

import (
	"context"
	"time"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
)

// FilingSource pulls the current filings for a symbol from an exchange
// endpoint, most recent first.
type FilingSource interface {
	Fetch(ctx context.Context, symbol string) ([]domain.Filing, error)
}

// WatchlistStore persists the per-user symbol sets.
type WatchlistStore interface {
	// Users lists every known user id.
	Users(ctx context.Context) ([]string, error)
	// EnsureUser creates the user's watchlist on first contact, seeded
	// with the given symbols. Existing users are left untouched.
	EnsureUser(ctx context.Context, userID string, seed []string) error
	// Symbols returns the user's tracked symbols.
	Symbols(ctx context.Context, userID string) ([]string, error)
	// AddSymbol adds a symbol; it reports whether the symbol was new.
	AddSymbol(ctx context.Context, userID, symbol string) (bool, error)
	// RemoveSymbol removes a symbol; removing an absent symbol is a no-op.
	RemoveSymbol(ctx context.Context, userID, symbol string) error
}

// SeenStore persists filing ids already delivered per (user, symbol).
type SeenStore interface {
	// FirstContact reports whether the (user, symbol) pair has never been
	// committed before.
	FirstContact(ctx context.Context, userID, symbol string) (bool, error)
	// Seen returns which of the given ids are already recorded.
	Seen(ctx context.Context, userID, symbol string, ids []string) (map[string]bool, error)
	// CommitSeen merges the ids into the existing set (union, not
	// replace) and persists durably before returning.
	CommitSeen(ctx context.Context, userID, symbol string, ids []string) error
}

// Notifier forwards a rendered message to the external messaging sink.
type Notifier interface {
	Notify(ctx context.Context, recipientID, text string) error
}

// Scheduler controls when polling cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
