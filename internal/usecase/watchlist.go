package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kunju1991/NSExchangefilings/internal/ports"
)

// symbolExpr bounds what we accept as an exchange ticker (e.g. RELIANCE,
// M&M, BAJAJ-AUTO).
var symbolExpr = regexp.MustCompile(`^[A-Z0-9&-]{1,20}$`)

// WatchlistService exposes the inbound control surface for managing
// per-user symbol sets. A watchlist is created on first contact, seeded
// with the configured default symbols.
type WatchlistService struct {
	store    ports.WatchlistStore
	defaults []string
	logger   *slog.Logger
}

// NewWatchlistService wires the store and the default seed symbols.
func NewWatchlistService(store ports.WatchlistStore, defaults []string, log *slog.Logger) *WatchlistService {
	normalized := make([]string, 0, len(defaults))
	for _, s := range defaults {
		if up, err := NormalizeSymbol(s); err == nil {
			normalized = append(normalized, up)
		}
	}
	return &WatchlistService{
		store:    store,
		defaults: normalized,
		logger:   log,
	}
}

// NormalizeSymbol uppercases and validates a ticker symbol.
func NormalizeSymbol(symbol string) (string, error) {
	up := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolExpr.MatchString(up) {
		return "", fmt.Errorf("invalid symbol %q", symbol)
	}
	return up, nil
}

// AddSymbol tracks a symbol for the user; it reports whether the symbol
// was newly added. Adding an already-tracked symbol is a no-op.
func (s *WatchlistService) AddSymbol(ctx context.Context, userID, symbol string) (bool, error) {
	up, err := NormalizeSymbol(symbol)
	if err != nil {
		return false, err
	}

	if err := s.store.EnsureUser(ctx, userID, s.defaults); err != nil {
		return false, err
	}

	added, err := s.store.AddSymbol(ctx, userID, up)
	if err != nil {
		return false, err
	}
	if added && s.logger != nil {
		s.logger.Info("symbol added", "user", userID, "symbol", up)
	}
	return added, nil
}

// RemoveSymbol stops tracking a symbol. Removing an absent symbol
// succeeds silently.
func (s *WatchlistService) RemoveSymbol(ctx context.Context, userID, symbol string) error {
	up, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}
	return s.store.RemoveSymbol(ctx, userID, up)
}

// ListSymbols returns the user's tracked symbols, creating the watchlist
// on first contact.
func (s *WatchlistService) ListSymbols(ctx context.Context, userID string) ([]string, error) {
	if err := s.store.EnsureUser(ctx, userID, s.defaults); err != nil {
		return nil, err
	}
	return s.store.Symbols(ctx, userID)
}
