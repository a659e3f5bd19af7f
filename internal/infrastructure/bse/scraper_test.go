package bse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/kunju1991/NSExchangefilings/internal/config"
	"github.com/kunju1991/NSExchangefilings/internal/domain"
	"github.com/kunju1991/NSExchangefilings/internal/logging"
)

const samplePage = `
<html><body>
<table class="announcements">
  <tbody>
    <tr>
      <td>08 Jan 2026 10:15</td>
      <td><a href="/docs/outcome.pdf">Outcome of Board Meeting</a></td>
    </tr>
    <tr>
      <td>07 Jan 2026 16:30</td>
      <td><a href="/docs/results.pdf">Unaudited Financial Results</a></td>
    </tr>
  </tbody>
</table>
</body></html>`

func newTestScraper(baseURL string) *Scraper {
	return NewScraper(config.BSEConfig{URL: baseURL, TimeoutSeconds: 5}, logging.Discard())
}

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	u, err := buildPageURL("https://www.bseindia.com/corporates/ann.html", "TATASTEEL")
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if parsed.Query().Get("symbol") != "TATASTEEL" {
		t.Fatalf("expected symbol=TATASTEEL, got %s", parsed.Query().Get("symbol"))
	}
}

func TestFetchExtractsTableRows(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "TATASTEEL" {
			t.Errorf("expected symbol=TATASTEEL, got %s", got)
		}
		_, _ = w.Write([]byte(samplePage))
	}))
	defer server.Close()

	s := newTestScraper(server.URL)

	filings, err := s.Fetch(context.Background(), "tatasteel")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(filings) != 2 {
		t.Fatalf("expected 2 filings, got %d", len(filings))
	}
	if filings[0].Headline != "Outcome of Board Meeting" {
		t.Fatalf("unexpected headline: %s", filings[0].Headline)
	}
	if filings[0].DocumentURL != "/docs/outcome.pdf" {
		t.Fatalf("unexpected document url: %s", filings[0].DocumentURL)
	}
	if filings[0].Symbol != "TATASTEEL" {
		t.Fatalf("symbol must be uppercased, got %s", filings[0].Symbol)
	}
	if filings[0].PublishedAt.IsZero() {
		t.Fatal("expected parsed announcement date")
	}
	if filings[0].ID == filings[1].ID {
		t.Fatal("distinct rows must derive distinct ids")
	}

	again, err := s.Fetch(context.Background(), "TATASTEEL")
	if err != nil {
		t.Fatalf("second Fetch error: %v", err)
	}
	if again[0].ID != filings[0].ID {
		t.Fatal("re-fetch must derive identical ids")
	}
}

func TestFetchMissingTableIsMalformed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>Access denied</body></html>`))
	}))
	defer server.Close()

	s := newTestScraper(server.URL)

	_, err := s.Fetch(context.Background(), "INFY")
	if !errors.Is(err, domain.ErrSourceMalformed) {
		t.Fatalf("expected ErrSourceMalformed, got %v", err)
	}
}

func TestFetchEmptyTableIsNormal(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><table class="announcements"><tbody></tbody></table></body></html>`))
	}))
	defer server.Close()

	s := newTestScraper(server.URL)

	filings, err := s.Fetch(context.Background(), "INFY")
	if err != nil {
		t.Fatalf("empty table must not fail: %v", err)
	}
	if len(filings) != 0 {
		t.Fatalf("expected no filings, got %d", len(filings))
	}
}

func TestFetchRejectedStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	s := newTestScraper(server.URL)

	_, err := s.Fetch(context.Background(), "INFY")
	if !errors.Is(err, domain.ErrSourceRejected) {
		t.Fatalf("expected ErrSourceRejected, got %v", err)
	}
}
