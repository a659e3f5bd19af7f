package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/logging"
)

type fakeSource struct {
	filings []domain.Filing
	err     error
}

func (f *fakeSource) Fetch(ctx context.Context, symbol string) ([]domain.Filing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.filings, nil
}

type fakeSeen struct {
	recorded map[string]bool
	first    bool
	commits  [][]string
}

func (f *fakeSeen) FirstContact(ctx context.Context, userID, symbol string) (bool, error) {
	return f.first, nil
}

func (f *fakeSeen) Seen(ctx context.Context, userID, symbol string, ids []string) (map[string]bool, error) {
	result := map[string]bool{}
	for _, id := range ids {
		if f.recorded[id] {
			result[id] = true
		}
	}
	return result, nil
}

func (f *fakeSeen) CommitSeen(ctx context.Context, userID, symbol string, ids []string) error {
	f.commits = append(f.commits, ids)
	return nil
}

func filing(id string) domain.Filing {
	return domain.Filing{Symbol: "RELIANCE", ID: id, Headline: "headline " + id}
}

func TestDetectNewReturnsDiffOldestFirst(t *testing.T) {
	t.Parallel()

	// source returns newest first: f4, f3, f2, f1; f1 and f2 delivered
	src := &fakeSource{filings: []domain.Filing{filing("f4"), filing("f3"), filing("f2"), filing("f1")}}
	seen := &fakeSeen{recorded: map[string]bool{"f1": true, "f2": true}}

	d := New(src, seen, PolicySeed, logging.Discard())
	result, err := d.DetectNew(context.Background(), "u1", "RELIANCE")
	if err != nil {
		t.Fatalf("DetectNew error: %v", err)
	}

	if len(result.Filings) != 2 {
		t.Fatalf("expected 2 fresh filings, got %d", len(result.Filings))
	}
	if result.Filings[0].ID != "f3" || result.Filings[1].ID != "f4" {
		t.Fatalf("expected oldest-first [f3 f4], got [%s %s]", result.Filings[0].ID, result.Filings[1].ID)
	}
	if result.First {
		t.Fatal("pair with history must not report first contact")
	}
}

func TestDetectNewNothingFresh(t *testing.T) {
	t.Parallel()

	src := &fakeSource{filings: []domain.Filing{filing("f2"), filing("f1")}}
	seen := &fakeSeen{recorded: map[string]bool{"f1": true, "f2": true}}

	d := New(src, seen, PolicySeed, logging.Discard())
	result, err := d.DetectNew(context.Background(), "u1", "RELIANCE")
	if err != nil {
		t.Fatalf("DetectNew error: %v", err)
	}
	if len(result.Filings) != 0 {
		t.Fatalf("expected no filings, got %d", len(result.Filings))
	}
}

func TestFirstContactSeedPolicySuppresses(t *testing.T) {
	t.Parallel()

	src := &fakeSource{filings: []domain.Filing{filing("f2"), filing("f1")}}
	seen := &fakeSeen{first: true}

	d := New(src, seen, PolicySeed, logging.Discard())
	result, err := d.DetectNew(context.Background(), "u1", "RELIANCE")
	if err != nil {
		t.Fatalf("DetectNew error: %v", err)
	}

	if len(result.Filings) != 0 {
		t.Fatalf("seed policy must suppress delivery, got %d filings", len(result.Filings))
	}
	if !result.First {
		t.Fatal("expected first-contact result")
	}
	if len(result.Seed) != 2 {
		t.Fatalf("expected both ids seeded, got %v", result.Seed)
	}
}

func TestFirstContactLatestPolicyDeliversNewest(t *testing.T) {
	t.Parallel()

	src := &fakeSource{filings: []domain.Filing{filing("f3"), filing("f2"), filing("f1")}}
	seen := &fakeSeen{first: true}

	d := New(src, seen, PolicyLatest, logging.Discard())
	result, err := d.DetectNew(context.Background(), "u1", "RELIANCE")
	if err != nil {
		t.Fatalf("DetectNew error: %v", err)
	}

	if len(result.Filings) != 1 || result.Filings[0].ID != "f3" {
		t.Fatalf("expected single welcome filing f3, got %+v", result.Filings)
	}
	if len(result.Seed) != 2 {
		t.Fatalf("expected remaining ids seeded, got %v", result.Seed)
	}
}

func TestSourceFailureLeavesSeenUntouched(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: domain.ErrSourceMalformed}
	seen := &fakeSeen{}

	d := New(src, seen, PolicySeed, logging.Discard())
	_, err := d.DetectNew(context.Background(), "u1", "RELIANCE")
	if !errors.Is(err, domain.ErrSourceMalformed) {
		t.Fatalf("expected ErrSourceMalformed, got %v", err)
	}
	if len(seen.commits) != 0 {
		t.Fatal("a failed fetch must not touch the seen store")
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	if p, err := ParsePolicy(""); err != nil || p != PolicySeed {
		t.Fatalf("empty policy must default to seed, got %s/%v", p, err)
	}
	if p, err := ParsePolicy("latest"); err != nil || p != PolicyLatest {
		t.Fatalf("expected latest, got %s/%v", p, err)
	}
	if _, err := ParsePolicy("bogus"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
