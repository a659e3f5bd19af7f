package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kunju1991/NSExchangefilings/internal/detector"
	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/ports"
)

// ErrCycleInProgress is returned when a trigger arrives while a cycle is
// still running. The trigger is skipped, never queued.
var ErrCycleInProgress = errors.New("cycle already in progress")

// CycleDeps wires all driven adapters into the polling cycle.
type CycleDeps struct {
	Watchlists  ports.WatchlistStore
	Seen        ports.SeenStore
	Detector    *detector.Detector
	Notifier    ports.Notifier
	Concurrency int
	UnitTimeout time.Duration
	Logger      *slog.Logger
}

// Cycle drives one full polling pass: snapshot watchlists, detect new
// filings per (user, symbol), deliver, and commit seen-state for confirmed
// deliveries only.
type Cycle struct {
	watchlists  ports.WatchlistStore
	seen        ports.SeenStore
	detector    *detector.Detector
	notifier    ports.Notifier
	concurrency int
	unitTimeout time.Duration
	logger      *slog.Logger

	running atomic.Bool
}

// NewCycle constructs the orchestrator.
func NewCycle(deps CycleDeps) *Cycle {
	concurrency := deps.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	unitTimeout := deps.UnitTimeout
	if unitTimeout <= 0 {
		unitTimeout = 20 * time.Second
	}
	return &Cycle{
		watchlists:  deps.Watchlists,
		seen:        deps.Seen,
		detector:    deps.Detector,
		notifier:    deps.Notifier,
		concurrency: concurrency,
		unitTimeout: unitTimeout,
		logger:      deps.Logger,
	}
}

type unit struct {
	userID string
	symbol string
}

// Run executes one cycle. Per-symbol source and delivery failures are
// recorded in the report without affecting other symbols or users; storage
// failures abort the whole cycle since state consistency cannot be
// guaranteed.
func (c *Cycle) Run(ctx context.Context) (domain.CycleReport, error) {
	if !c.running.CompareAndSwap(false, true) {
		return domain.CycleReport{}, ErrCycleInProgress
	}
	defer c.running.Store(false)

	report := domain.CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now(),
	}

	// watchlist snapshot at cycle start; mutations land on the next cycle
	users, err := c.watchlists.Users(ctx)
	if err != nil {
		report.FinishedAt = time.Now()
		return report, fmt.Errorf("cycle aborted: %w", err)
	}

	var units []unit
	for _, userID := range users {
		symbols, err := c.watchlists.Symbols(ctx, userID)
		if err != nil {
			report.FinishedAt = time.Now()
			return report, fmt.Errorf("cycle aborted: %w", err)
		}
		for _, symbol := range symbols {
			units = append(units, unit{userID: userID, symbol: symbol})
		}
	}
	report.SymbolsChecked = len(units)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, u := range units {
		u := u
		g.Go(func() error {
			return c.runUnit(gctx, u, &report, &mu)
		})
	}

	err = g.Wait()
	report.FinishedAt = time.Now()
	if err != nil {
		c.error("cycle aborted", "cycle", report.CycleID, "error", err)
		return report, fmt.Errorf("cycle aborted: %w", err)
	}

	c.info("cycle completed",
		"cycle", report.CycleID,
		"symbols", report.SymbolsChecked,
		"delivered", report.Delivered,
		"fetch_failures", report.FetchFailures,
		"delivery_failures", report.DeliveryFailures,
	)
	return report, nil
}

// runUnit handles one (user, symbol) pair: fetch, diff, deliver oldest
// first, commit delivered ids. Within a unit the steps are strictly
// sequential.
func (c *Cycle) runUnit(ctx context.Context, u unit, report *domain.CycleReport, mu *sync.Mutex) error {
	unitCtx, cancel := context.WithTimeout(ctx, c.unitTimeout)
	defer cancel()

	result, err := c.detector.DetectNew(unitCtx, u.userID, u.symbol)
	if err != nil {
		if domain.SourceError(err) {
			mu.Lock()
			report.FetchFailures++
			report.Errors = append(report.Errors, domain.CycleError{
				UserID: u.userID, Symbol: u.symbol, Reason: err.Error(),
			})
			mu.Unlock()
			c.warn("fetch failed", "user", u.userID, "symbol", u.symbol, "error", err)
			return nil
		}
		return err
	}

	// Commits run on an uncancelable context: once delivery (or a seed
	// decision) is confirmed, the record must land even if the cycle is
	// shutting down. Abandoning a unit is safe, a partial commit is not.
	commitCtx := context.WithoutCancel(ctx)

	if result.First {
		if err := c.seen.CommitSeen(commitCtx, u.userID, u.symbol, result.Seed); err != nil {
			return err
		}
	}

	var delivered []string
	var deliveryErr error
	for _, f := range result.Filings {
		if err := c.notifier.Notify(unitCtx, u.userID, FormatFiling(f)); err != nil {
			// stop at the first failure so the remaining filings are
			// retried in order next cycle
			deliveryErr = err
			break
		}
		delivered = append(delivered, f.ID)
	}

	if len(delivered) > 0 {
		if err := c.seen.CommitSeen(commitCtx, u.userID, u.symbol, delivered); err != nil {
			return err
		}
	}

	mu.Lock()
	report.Delivered += len(delivered)
	if deliveryErr != nil {
		report.DeliveryFailures++
		report.Errors = append(report.Errors, domain.CycleError{
			UserID: u.userID, Symbol: u.symbol, Reason: deliveryErr.Error(),
		})
	}
	mu.Unlock()

	if deliveryErr != nil {
		c.warn("delivery failed", "user", u.userID, "symbol", u.symbol, "error", deliveryErr)
	}
	return nil
}

// FormatFiling renders the fixed notification template.
func FormatFiling(f domain.Filing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📢 %s filing: %s", f.Symbol, f.Headline)
	if !f.PublishedAt.IsZero() {
		fmt.Fprintf(&b, " (%s)", f.PublishedAt.Format("02 Jan 2006 15:04"))
	}
	if f.DocumentURL != "" {
		b.WriteString("\n")
		b.WriteString(f.DocumentURL)
	}
	return b.String()
}

func (c *Cycle) info(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Cycle) warn(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Cycle) error(msg string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
