package crawler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"news-scraper/internal/config"
	"news-scraper/internal/storage"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

// fakeSite serves pages from memory and records how it was called.
type fakeSite struct {
	mu       sync.Mutex
	pages    map[string]string
	render   func(url string) (string, bool)
	flaky    map[string]int
	status   map[string]int
	calls    map[string]int
	delay    time.Duration
	order    []string
	inFlight atomic.Int64
	peak     atomic.Int64
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:  make(map[string]string),
		flaky:  make(map[string]int),
		status: make(map[string]int),
		calls:  make(map[string]int),
	}
}

func (s *fakeSite) Load(ctx context.Context, url string) (*Page, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	if s.delay > 0 {
		if err := sleepCtx(ctx, s.delay); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	s.calls[url]++
	s.order = append(s.order, url)
	if s.flaky[url] > 0 {
		s.flaky[url]--
		s.mu.Unlock()
		return nil, &FetchError{URL: url, StatusCode: 503, Err: errors.New("service unavailable")}
	}
	code := s.status[url]
	html, ok := s.pages[url]
	s.mu.Unlock()

	if code != 0 {
		return nil, &FetchError{URL: url, StatusCode: code, Err: errors.New("status error")}
	}
	if !ok && s.render != nil {
		html, ok = s.render(url)
	}
	if !ok {
		return nil, &FetchError{URL: url, StatusCode: 404, Err: errors.New("not found")}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Page{URL: url, StatusCode: 200, Body: []byte(html), Doc: doc}, nil
}

func (s *fakeSite) callsTo(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[url]
}

// memorySink keeps written batches and when they were written.
type memorySink struct {
	mu      sync.Mutex
	batches []storage.Batch
	written []time.Time
}

func (m *memorySink) WriteBatch(_ context.Context, b storage.Batch) error {
	m.mu.Lock()
	m.batches = append(m.batches, b)
	m.written = append(m.written, time.Now())
	m.mu.Unlock()
	return nil
}

func (m *memorySink) Close() error { return nil }

func nullLogger() logrus.FieldLogger {
	log, _ := logtest.NewNullLogger()
	return log
}

func fastRetry(attempts int) config.RetryPolicy {
	return config.RetryPolicy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

// simpleProfile extracts <h1> as title and <p> as body.
var simpleProfile = config.Profile{
	Name:        "test",
	ListingURL:  "https://news.test/indeks/{date}",
	ListingLink: "h2 a",
	Title:       "h1",
	Body:        "article p",
}

func simpleArticle(title, body string) string {
	return "<html><body><h1>" + title + "</h1><article><p>" + body + "</p></article></body></html>"
}

func newTestFetcher(t *testing.T, site *fakeSite, profile config.Profile, concurrency, attempts int) *Fetcher {
	t.Helper()
	ex := NewExtractor(profile, site, ExtractorOptions{Validate: true, MaxPages: 5})
	return NewFetcher(ex, FetcherOptions{
		Concurrency: concurrency,
		Retry:       fastRetry(attempts),
		Logger:      nullLogger(),
	})
}

func jpnnProfile() config.Profile {
	return config.BuiltinProfiles()["jpnn"]
}
