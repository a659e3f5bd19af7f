// Package bse scrapes the BSE corporate-announcements page. Unlike the NSE
// JSON API the endpoint serves server-rendered HTML, so filings are lifted
// out of the announcements table.
package bse

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kunju1991/NSExchangefilings/internal/config"
	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/source"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

var dateLayouts = []string{
	"02 Jan 2006 15:04",
	"02-01-2006 15:04:05",
	"02/01/2006",
}

// Scraper implements source.Adapter against the BSE announcements page.
type Scraper struct {
	pageURL string
	client  *http.Client
	logger  *slog.Logger
}

var _ source.Adapter = (*Scraper)(nil)

// NewScraper wires an HTTP client from configuration.
func NewScraper(cfg config.BSEConfig, log *slog.Logger) *Scraper {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Scraper{
		pageURL: cfg.URL,
		client:  &http.Client{Timeout: timeout},
		logger:  log,
	}
}

// Name identifies the adapter inside the registry.
func (s *Scraper) Name() string {
	return "bse"
}

// Fetch loads the announcements page for the symbol and extracts filings in
// page order (newest first).
func (s *Scraper) Fetch(ctx context.Context, symbol string) ([]domain.Filing, error) {
	upper := strings.ToUpper(symbol)

	pageURL, err := buildPageURL(s.pageURL, upper)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", s.pageURL)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusForbidden, resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status %d", domain.ErrSourceRejected, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", domain.ErrSourceRejected, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse page: %v", domain.ErrSourceMalformed, err)
	}

	return s.extractFilings(doc, upper)
}

// extractFilings walks the announcements table. A page without the table at
// all is treated as malformed (typically a block page), while a present but
// empty table is a normal empty result.
func (s *Scraper) extractFilings(doc *goquery.Document, symbol string) ([]domain.Filing, error) {
	table := doc.Find("table.announcements")
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: announcements table not found", domain.ErrSourceMalformed)
	}

	filings := make([]domain.Filing, 0)
	table.Find("tbody tr").Each(func(i int, row *goquery.Selection) {
		dateText := strings.TrimSpace(row.Find("td").Eq(0).Text())
		link := row.Find("td").Eq(1).Find("a").First()
		headline := strings.TrimSpace(link.Text())
		if headline == "" {
			headline = strings.TrimSpace(row.Find("td").Eq(1).Text())
		}
		href, _ := link.Attr("href")

		if headline == "" && dateText == "" {
			return
		}

		filings = append(filings, domain.Filing{
			Symbol:      symbol,
			ID:          domain.FilingID("", symbol, headline, dateText),
			Headline:    headline,
			PublishedAt: parseDate(dateText),
			DocumentURL: strings.TrimSpace(href),
		})
	})

	s.debug("extracted filings", "symbol", symbol, "count", len(filings))
	return filings, nil
}

func buildPageURL(base, symbol string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid page url %s: %w", base, err)
	}
	query := parsed.Query()
	query.Set("symbol", symbol)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func parseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (s *Scraper) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
