/*
Package nse fetches corporate-announcement filings from the NSE India API.

The endpoint sits behind anti-automation checks: data requests succeed only
with browser-like headers and session cookies obtained from a prior visit
to the landing page. The client keeps a shared cookie jar, warms it up
before the first data request, and refreshes it after a rejection.
*/
package nse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/publicsuffix"

	"github.com/kunju1991/NSExchangefilings/internal/config"
	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/source"
)

const (
	announcementsPath = "/api/corporate-announcements"
	referrerPath      = "/companies-listing/corporate-filings-announcements"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	sessionTTL  = 30 * time.Minute
	maxBodySize = 4 << 20
)

// Client implements source.Adapter for the NSE announcements endpoint.
type Client struct {
	baseURL     string
	listKey     string
	maxAttempts int
	backoffBase time.Duration
	client      *http.Client
	logger      *slog.Logger

	mu       sync.Mutex
	warmedAt time.Time
}

var _ source.Adapter = (*Client)(nil)

// NewClient builds a client with a fresh cookie jar from configuration.
func NewClient(cfg config.NSEConfig, log *slog.Logger) *Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}

	listKey := cfg.ListKey
	if listKey == "" {
		listKey = "rows"
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		listKey:     listKey,
		maxAttempts: attempts,
		backoffBase: time.Second,
		client: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		logger: log,
	}
}

// Name identifies the adapter inside the registry.
func (c *Client) Name() string {
	return "nse"
}

// Fetch returns the current filings for the symbol, newest first. Transient
// failures (network, 5xx, anti-bot rejections) are retried with bounded
// exponential backoff; a rejection also invalidates the session so the next
// attempt re-acquires cookies.
func (c *Client) Fetch(ctx context.Context, symbol string) ([]domain.Filing, error) {
	c.ensureSession(ctx, false)

	var filings []domain.Filing
	op := func() error {
		result, err := c.fetchOnce(ctx, symbol)
		if err != nil {
			var rej *rejectionError
			switch {
			case errors.As(err, &rej) && rej.retryable:
				// stale or blocked session; re-acquire cookies before
				// the next attempt
				c.ensureSession(ctx, true)
				return err
			case errors.Is(err, domain.ErrSourceUnavailable):
				return err
			default:
				return backoff.Permanent(err)
			}
		}
		filings = result
		return nil
	}

	if err := backoff.Retry(op, c.newBackoff(ctx)); err != nil {
		return nil, err
	}
	return filings, nil
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	retries := uint64(0)
	if c.maxAttempts > 1 {
		retries = uint64(c.maxAttempts - 1)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

// ensureSession performs the warm-up request when the jar is cold, stale,
// or explicitly invalidated. Warm-up failures are logged and tolerated: the
// data request will fail explicitly if the session is still blocked.
func (c *Client) ensureSession(ctx context.Context, force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && time.Since(c.warmedAt) < sessionTTL && !c.warmedAt.IsZero() {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		c.warn("session warm-up request build failed", "error", err)
		return
	}
	c.browserHeaders(req)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		c.warn("session warm-up failed", "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.warn("session warm-up returned non-OK status", "status", resp.Status)
		return
	}

	c.warmedAt = time.Now()
	c.logCookies()
}

// warn logs at warn level when a logger is configured.
func (c *Client) warn(msg string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, args...)
}

// logCookies emits the acquired session cookies at debug level. Values are
// irreversibly masked; raw cookie values must never reach logs or disk.
func (c *Client) logCookies() {
	if c.logger == nil || c.client.Jar == nil {
		return
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}
	for _, ck := range c.client.Jar.Cookies(u) {
		c.logger.Debug("session cookie acquired", "name", ck.Name, "value", maskValue(ck.Value))
	}
}

func maskValue(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return v[:2] + strings.Repeat("*", len(v)-4) + v[len(v)-2:]
}

func (c *Client) fetchOnce(ctx context.Context, symbol string) ([]domain.Filing, error) {
	endpoint, err := url.Parse(c.baseURL + announcementsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base url %s", domain.ErrSourceUnavailable, c.baseURL)
	}
	query := endpoint.Query()
	query.Set("index", "equities")
	query.Set("symbol", strings.ToUpper(symbol))
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrSourceUnavailable, err)
	}
	c.browserHeaders(req)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrSourceUnavailable, err)
	}

	return c.normalize(symbol, body)
}

func (c *Client) browserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", c.baseURL+referrerPath)
}

// rejectionError carries the HTTP status behind a domain.ErrSourceRejected
// so Fetch can tell an anti-bot rejection (retry after session refresh)
// from a malformed-symbol 4xx (permanent).
type rejectionError struct {
	status    int
	retryable bool
}

func (e *rejectionError) Error() string {
	return fmt.Sprintf("%v: status %d", domain.ErrSourceRejected, e.status)
}

func (e *rejectionError) Is(target error) bool {
	return target == domain.ErrSourceRejected
}

// classifyStatus maps HTTP status codes onto the failure taxonomy.
// 401/403/429 are rejections worth a session refresh and retry; remaining
// 4xx codes (typically a malformed symbol) are permanent rejections.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return &rejectionError{status: status, retryable: true}
	case status >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, status)
	case status >= 400:
		return &rejectionError{status: status}
	default:
		return fmt.Errorf("%w: unexpected status %d", domain.ErrSourceMalformed, status)
	}
}

// announcementRow tolerates the field variations NSE serves across
// endpoint versions. Optional fields default to empty rather than failing
// the whole fetch.
type announcementRow struct {
	Symbol     string `json:"symbol"`
	Desc       string `json:"desc"`
	Subject    string `json:"sm_name"`
	Date       string `json:"an_dt"`
	LegacyDate string `json:"dt"`
	Attachment string `json:"attchmntFile"`
	SeqID      string `json:"seq_id"`
}

var dateLayouts = []string{
	"02-Jan-2006 15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
	"02-Jan-2006",
}

// normalize converts the raw payload into filings. The presence of the
// configured top-level list key is the discriminator between "no filings"
// and a block page that returned an empty-looking body: key present with
// an empty list is a normal empty result, key absent or not a list is
// malformed.
func (c *Client) normalize(symbol string, body []byte) ([]domain.Filing, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode announcements: %v", domain.ErrSourceMalformed, err)
	}

	raw, ok := payload[c.listKey]
	if !ok {
		return nil, fmt.Errorf("%w: missing %q key", domain.ErrSourceMalformed, c.listKey)
	}

	var rows []announcementRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: %q is not a list: %v", domain.ErrSourceMalformed, c.listKey, err)
	}

	upper := strings.ToUpper(symbol)
	filings := make([]domain.Filing, 0, len(rows))
	for _, row := range rows {
		headline := firstNonEmpty(row.Desc, row.Subject)
		dateStr := firstNonEmpty(row.Date, row.LegacyDate)

		filings = append(filings, domain.Filing{
			Symbol:      upper,
			ID:          domain.FilingID(row.SeqID, upper, headline, dateStr),
			Headline:    headline,
			PublishedAt: parseDate(dateStr),
			DocumentURL: row.Attachment,
		})
	}

	return filings, nil
}

func parseDate(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
