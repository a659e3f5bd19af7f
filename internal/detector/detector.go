// Package detector diffs freshly fetched filings against the durable
// seen-state and yields only what is new, in delivery order.
package detector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/ports"
)

// Policy selects first-contact behavior for a (user, symbol) pair.
type Policy string

const (
	// PolicySeed treats pre-existing filings as already known and only
	// notifies of future ones. Default: avoids a notification flood on
	// first subscribe.
	PolicySeed Policy = "seed"
	// PolicyLatest delivers the single most recent filing as a welcome
	// notification and seeds the rest.
	PolicyLatest Policy = "latest"
)

// ParsePolicy validates a configured policy string.
func ParsePolicy(value string) (Policy, error) {
	switch Policy(value) {
	case PolicySeed, PolicyLatest:
		return Policy(value), nil
	case "":
		return PolicySeed, nil
	default:
		return "", fmt.Errorf("unknown first-contact policy %q", value)
	}
}

// Result is the outcome of one detection pass.
type Result struct {
	// Filings to deliver, oldest first, so a user reading sequentially
	// sees chronological order even though sources return newest first.
	Filings []domain.Filing
	// Seed holds ids to commit without delivery (first-contact
	// suppression).
	Seed []string
	// First reports that the pair had no seen-state before this pass.
	First bool
}

// Detector computes the per-(user, symbol) filing diff.
type Detector struct {
	source ports.FilingSource
	seen   ports.SeenStore
	policy Policy
	logger *slog.Logger
}

// New wires the source and seen-state store.
func New(src ports.FilingSource, seen ports.SeenStore, policy Policy, log *slog.Logger) *Detector {
	return &Detector{
		source: src,
		seen:   seen,
		policy: policy,
		logger: log,
	}
}

// DetectNew fetches the current filings and returns the undelivered subset
// oldest-first. Source failures leave the seen-state untouched.
func (d *Detector) DetectNew(ctx context.Context, userID, symbol string) (Result, error) {
	filings, err := d.source.Fetch(ctx, symbol)
	if err != nil {
		return Result{}, err
	}

	first, err := d.seen.FirstContact(ctx, userID, symbol)
	if err != nil {
		return Result{}, err
	}

	if first {
		return d.firstContact(userID, symbol, filings), nil
	}

	ids := make([]string, len(filings))
	for i, f := range filings {
		ids[i] = f.ID
	}

	seen, err := d.seen.Seen(ctx, userID, symbol, ids)
	if err != nil {
		return Result{}, err
	}

	fresh := make([]domain.Filing, 0)
	for _, f := range filings {
		if !seen[f.ID] {
			fresh = append(fresh, f)
		}
	}
	reverse(fresh)

	if d.logger != nil && len(fresh) > 0 {
		d.logger.Debug("new filings detected", "user", userID, "symbol", symbol, "count", len(fresh))
	}
	return Result{Filings: fresh}, nil
}

func (d *Detector) firstContact(userID, symbol string, filings []domain.Filing) Result {
	result := Result{First: true}

	switch d.policy {
	case PolicyLatest:
		if len(filings) > 0 {
			result.Filings = filings[:1]
			for _, f := range filings[1:] {
				result.Seed = append(result.Seed, f.ID)
			}
		}
	default: // PolicySeed
		for _, f := range filings {
			result.Seed = append(result.Seed, f.ID)
		}
	}

	if d.logger != nil {
		d.logger.Info("first contact for pair",
			"user", userID, "symbol", symbol,
			"policy", string(d.policy), "suppressed", len(result.Seed))
	}
	return result
}

func reverse(filings []domain.Filing) {
	for i, j := 0, len(filings)-1; i < j; i, j = i+1, j-1 {
		filings[i], filings[j] = filings[j], filings[i]
	}
}
