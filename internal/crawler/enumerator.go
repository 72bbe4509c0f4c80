package crawler

import (
	"context"
	"time"

	"news-scraper/internal/config"
	"news-scraper/pkg/models"
	"news-scraper/pkg/util"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EnumerationResult holds the links found across a date range, ordered by
// date, page and position on the page.
type EnumerationResult struct {
	Links    []models.ChildLink
	Listing  []models.ListingPage
	Pages    int
	Failures []models.Failure
}

// Enumerator walks a site's daily listing pages and their pagination.
type Enumerator struct {
	loader      PageLoader
	profile     config.Profile
	retry       config.RetryPolicy
	concurrency int
	maxPages    int
	metrics     *Metrics
	log         logrus.FieldLogger
}

type EnumeratorOptions struct {
	Concurrency int
	MaxPages    int
	Retry       config.RetryPolicy
	Metrics     *Metrics
	Logger      logrus.FieldLogger
}

func NewEnumerator(profile config.Profile, loader PageLoader, opts EnumeratorOptions) *Enumerator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Enumerator{
		loader:      loader,
		profile:     profile,
		retry:       opts.Retry,
		concurrency: opts.Concurrency,
		maxPages:    opts.MaxPages,
		metrics:     opts.Metrics,
		log:         opts.Logger,
	}
}

type dayResult struct {
	links    []models.ChildLink
	pages    []models.ListingPage
	failures []models.Failure
}

// Enumerate visits one listing chain per day in [from, to]. Pages that keep
// failing are reported in Failures; they never abort the run.
func (e *Enumerator) Enumerate(ctx context.Context, from, to time.Time) (EnumerationResult, error) {
	var days []time.Time
	for d := truncateDay(from); !d.After(truncateDay(to)); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}

	results := make([]dayResult, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			results[i] = e.enumerateDay(gctx, day)
			return nil
		})
	}
	_ = g.Wait()

	var out EnumerationResult
	seen := make(map[string]bool)
	for _, r := range results {
		out.Listing = append(out.Listing, r.pages...)
		out.Failures = append(out.Failures, r.failures...)
		for _, l := range r.links {
			if seen[l.URL] {
				continue
			}
			seen[l.URL] = true
			out.Links = append(out.Links, l)
		}
	}
	out.Pages = len(out.Listing)
	return out, ctx.Err()
}

func (e *Enumerator) enumerateDay(ctx context.Context, day time.Time) dayResult {
	var res dayResult
	log := e.log.WithField("date", day.Format(config.DateLayout))

	visited := make(map[string]bool)
	url := e.profile.ListingURLFor(day)
	for index := 0; url != "" && index < e.maxPages; index++ {
		if visited[url] {
			break
		}
		visited[url] = true

		page, attempts, err := e.loadWithRetry(ctx, url)
		if err != nil {
			e.metrics.listingPage("failed")
			log.WithError(err).WithField("page", index).Warn("Giving up on listing page")
			res.failures = append(res.failures, models.Failure{URL: url, Attempts: attempts, Err: err})
			break
		}
		e.metrics.listingPage("ok")
		res.pages = append(res.pages, models.ListingPage{Date: day, Index: index, URL: url})

		links := ExtractLinks(page, e.profile)
		log.WithFields(logrus.Fields{"page": index, "links": len(links)}).Debug("Listing page enumerated")
		res.links = append(res.links, links...)

		url = ""
		if e.profile.ListingNext != "" {
			if href, ok := page.Doc.Find(e.profile.ListingNext).First().Attr("href"); ok {
				url, _ = util.ResolveURL(page.URL, href)
			}
		}
	}
	return res
}

func (e *Enumerator) loadWithRetry(ctx context.Context, url string) (*Page, int, error) {
	var lastErr error
	for attempt := 1; attempt <= e.retry.MaxAttempts; attempt++ {
		page, err := e.loader.Load(ctx, url)
		if err == nil {
			return page, attempt, nil
		}
		lastErr = err
		if !retryable(err) || attempt == e.retry.MaxAttempts {
			return nil, attempt, err
		}
		e.log.WithError(err).WithFields(logrus.Fields{"url": url, "attempt": attempt}).Info("Listing page failed, retrying")
		if err := sleepCtx(ctx, e.retry.Delay(attempt)); err != nil {
			return nil, attempt, err
		}
	}
	return nil, e.retry.MaxAttempts, lastErr
}

// ExtractLinks returns the child links on a listing page in document order.
func ExtractLinks(page *Page, profile config.Profile) []models.ChildLink {
	var links []models.ChildLink
	add := func(a *goquery.Selection, summary string) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		u, ok := util.ResolveURL(page.URL, href)
		if !ok {
			return
		}
		links = append(links, models.ChildLink{URL: u, Summary: summary})
	}

	if profile.ListingItem == "" {
		page.Doc.Find(profile.ListingLink).Each(func(_ int, a *goquery.Selection) {
			add(a, "")
		})
		return links
	}

	page.Doc.Find(profile.ListingItem).Each(func(_ int, item *goquery.Selection) {
		summary := ""
		if profile.ListingSummary != "" {
			summary = cleanText(item.Find(profile.ListingSummary).First().Text())
		}
		add(item.Find(profile.ListingLink).First(), summary)
	})
	return links
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
