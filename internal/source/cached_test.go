package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
)

type countingSource struct {
	calls   int
	filings []domain.Filing
	err     error
}

func (c *countingSource) Fetch(ctx context.Context, symbol string) ([]domain.Filing, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.filings, nil
}

func TestCachedFetchesUpstreamOncePerSymbol(t *testing.T) {
	inner := &countingSource{filings: []domain.Filing{{Symbol: "RELIANCE", ID: "f1"}}}
	cached := NewCached(inner, time.Minute)

	for i := 0; i < 3; i++ {
		filings, err := cached.Fetch(context.Background(), "RELIANCE")
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if len(filings) != 1 || filings[0].ID != "f1" {
			t.Fatalf("fetch %d: unexpected filings %v", i, filings)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", inner.calls)
	}

	if _, err := cached.Fetch(context.Background(), "TCS"); err != nil {
		t.Fatal(err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected a fresh upstream call per symbol, got %d", inner.calls)
	}
}

func TestCachedDoesNotCacheFailures(t *testing.T) {
	inner := &countingSource{err: domain.ErrSourceUnavailable}
	cached := NewCached(inner, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cached.Fetch(context.Background(), "RELIANCE"); !errors.Is(err, domain.ErrSourceUnavailable) {
			t.Fatalf("fetch %d: expected unavailable, got %v", i, err)
		}
	}
	if inner.calls != 2 {
		t.Fatalf("failures must not be cached, got %d calls", inner.calls)
	}

	inner.err = nil
	inner.filings = []domain.Filing{{Symbol: "RELIANCE", ID: "f1"}}
	filings, err := cached.Fetch(context.Background(), "RELIANCE")
	if err != nil {
		t.Fatal(err)
	}
	if len(filings) != 1 {
		t.Fatalf("unexpected filings %v", filings)
	}
}
