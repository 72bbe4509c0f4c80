package crawler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"news-scraper/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, ctx context.Context, f *Fetcher, links []models.ChildLink) ([]Outcome, Report) {
	t.Helper()
	var (
		mu   sync.Mutex
		outs []Outcome
	)
	report := f.FetchAll(ctx, links, func(o Outcome) {
		mu.Lock()
		outs = append(outs, o)
		mu.Unlock()
	})
	return outs, report
}

func seedLinks(site *fakeSite, n int) []models.ChildLink {
	links := make([]models.ChildLink, n)
	for i := range links {
		u := fmt.Sprintf("https://news.test/read/%d", i)
		if site != nil {
			site.pages[u] = simpleArticle(fmt.Sprintf("Title %d", i), fmt.Sprintf("Body %d", i))
		}
		links[i] = models.ChildLink{URL: u}
	}
	return links
}

func TestFetchAll_NeverExceedsConcurrency(t *testing.T) {
	site := newFakeSite()
	site.delay = 10 * time.Millisecond
	links := seedLinks(site, 30)

	f := newTestFetcher(t, site, simpleProfile, 3, 1)
	outs, report := collect(t, context.Background(), f, links)

	require.Len(t, outs, 30)
	assert.Equal(t, 30, report.Recorded)
	assert.LessOrEqual(t, site.peak.Load(), int64(3))
	assert.Greater(t, site.peak.Load(), int64(1))
	assert.LessOrEqual(t, f.progress.PeakInFlight(), int64(3))
}

func TestFetchAll_SerialWhenConcurrencyIsOne(t *testing.T) {
	site := newFakeSite()
	links := seedLinks(site, 3)

	f := newTestFetcher(t, site, simpleProfile, 1, 1)
	outs, _ := collect(t, context.Background(), f, links)

	require.Len(t, outs, 3)
	for i, o := range outs {
		assert.Equal(t, links[i].URL, o.Item.URL)
	}
	assert.Equal(t, []string{links[0].URL, links[1].URL, links[2].URL}, site.order)
}

func TestFetchAll_EveryLinkExactlyOnce(t *testing.T) {
	site := newFakeSite()
	links := seedLinks(site, 50)
	site.flaky[links[7].URL] = 1
	site.flaky[links[21].URL] = 2

	f := newTestFetcher(t, site, simpleProfile, 8, 3)
	outs, report := collect(t, context.Background(), f, links)

	assert.Equal(t, 50, report.Recorded)
	assert.Zero(t, report.Failed)

	seen := make(map[string]int)
	for _, o := range outs {
		require.Equal(t, models.StateRecorded, o.State)
		seen[o.Item.URL]++
	}
	for _, l := range links {
		assert.Equal(t, 1, seen[l.URL], l.URL)
	}
}

func TestFetch_RetriesTransientFailure(t *testing.T) {
	site := newFakeSite()
	links := seedLinks(site, 1)
	site.flaky[links[0].URL] = 2

	f := newTestFetcher(t, site, simpleProfile, 1, 3)
	out := f.Fetch(context.Background(), links[0])

	require.Equal(t, models.StateRecorded, out.State)
	assert.Equal(t, 3, out.Item.Attempts)
	assert.Equal(t, "Title 0", out.Item.Title)
	assert.Equal(t, 3, site.callsTo(links[0].URL))
}

func TestFetch_GivesUpAfterMaxAttempts(t *testing.T) {
	site := newFakeSite()
	links := seedLinks(site, 1)
	site.flaky[links[0].URL] = 10

	f := newTestFetcher(t, site, simpleProfile, 1, 3)
	out := f.Fetch(context.Background(), links[0])

	require.Equal(t, models.StateFailed, out.State)
	assert.Equal(t, 3, out.Failure.Attempts)
	assert.Equal(t, links[0].URL, out.Failure.URL)
	assert.Equal(t, 3, site.callsTo(links[0].URL))
	assert.Equal(t, models.ExtractedItem{}, out.Item)
}

func TestFetch_PermanentFailureIsNotRetried(t *testing.T) {
	site := newFakeSite()
	link := models.ChildLink{URL: "https://news.test/missing"}

	f := newTestFetcher(t, site, simpleProfile, 1, 5)
	out := f.Fetch(context.Background(), link)

	require.Equal(t, models.StateFailed, out.State)
	assert.Equal(t, 1, out.Failure.Attempts)
	assert.Equal(t, 1, site.callsTo(link.URL))
}

func TestFetch_RetryNeverRecordsPartialBody(t *testing.T) {
	site := newFakeSite()
	first := "https://www.jpnn.com/news/1"
	second := "https://www.jpnn.com/news/1?page=2"
	site.pages[first] = jpnnPage1
	site.pages[second] = jpnnPage2
	site.flaky[second] = 1

	ex := NewExtractor(jpnnProfile(), site, ExtractorOptions{Validate: true, MaxPages: 5})
	f := NewFetcher(ex, FetcherOptions{Concurrency: 1, Retry: fastRetry(3), Logger: nullLogger()})
	out := f.Fetch(context.Background(), models.ChildLink{URL: first})

	require.Equal(t, models.StateRecorded, out.State)
	assert.Equal(t, "Paragraf satu. Paragraf dua. Paragraf tiga.", out.Item.Body)
	assert.Equal(t, 2, out.Item.Attempts)
	assert.Equal(t, 2, site.callsTo(first))
}

func TestFetchAll_CancelledContextFailsRemainingLinks(t *testing.T) {
	site := newFakeSite()
	links := seedLinks(site, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(t, site, simpleProfile, 2, 3)
	outs, report := collect(t, ctx, f, links)

	require.Len(t, outs, 5)
	assert.Equal(t, 5, report.Failed)
	for _, o := range outs {
		assert.Equal(t, models.StateFailed, o.State)
		assert.ErrorIs(t, o.Failure.Err, context.Canceled)
		assert.Zero(t, o.Failure.Attempts)
	}
}

func TestFetchAll_ProgressCountsPendingAndFetching(t *testing.T) {
	site := newFakeSite()
	site.delay = 20 * time.Millisecond
	links := seedLinks(site, 8)

	progress := NewProgress("run", "test")
	progress.AddTotal(len(links))
	ex := NewExtractor(simpleProfile, site, ExtractorOptions{Validate: true, MaxPages: 1})
	f := NewFetcher(ex, FetcherOptions{Concurrency: 2, Retry: fastRetry(1), Progress: progress, Logger: nullLogger()})

	var snaps []ProgressSnapshot
	var mu sync.Mutex
	f.FetchAll(context.Background(), links, func(Outcome) {
		mu.Lock()
		snaps = append(snaps, progress.Snapshot())
		mu.Unlock()
	})

	require.Len(t, snaps, len(links))
	for _, s := range snaps {
		assert.LessOrEqual(t, s.InFlight, int64(2))
		assert.Equal(t, s.Total, s.Pending+s.InFlight+s.Recorded+s.Failed)
	}
	assert.Positive(t, snaps[0].Pending)

	final := progress.Snapshot()
	assert.Equal(t, int64(8), final.Recorded)
	assert.Zero(t, final.Pending)
}
