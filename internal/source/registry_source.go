package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/ports"
)

// RegistrySource implements ports.FilingSource by dispatching to the
// adapter configured for the deployment.
type RegistrySource struct {
	registry *Registry
	adapter  string
	logger   *slog.Logger
}

var _ ports.FilingSource = (*RegistrySource)(nil)

// NewRegistrySource wires the adapter registry with the configured adapter
// name.
func NewRegistrySource(reg *Registry, adapter string, log *slog.Logger) *RegistrySource {
	return &RegistrySource{
		registry: reg,
		adapter:  adapter,
		logger:   log,
	}
}

// Fetch resolves the configured adapter and delegates the fetch.
func (s *RegistrySource) Fetch(ctx context.Context, symbol string) ([]domain.Filing, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}

	adapter, err := s.registry.Resolve(s.adapter)
	if err != nil {
		return nil, err
	}

	filings, err := adapter.Fetch(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: symbol %s: %w", s.adapter, symbol, err)
	}

	s.debug("fetched filings", "adapter", s.adapter, "symbol", symbol, "count", len(filings))
	return filings, nil
}

func (s *RegistrySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
