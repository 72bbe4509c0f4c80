package crawler

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"news-scraper/internal/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly"
	"golang.org/x/time/rate"
)

// Page is a fetched and parsed HTML page.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Doc        *goquery.Document
}

// PageLoader fetches a URL and returns it parsed.
type PageLoader interface {
	Load(ctx context.Context, url string) (*Page, error)
}

// Scraper loads pages with a colly collector. It is safe for concurrent use:
// each Load works on a clone that shares the base collector's HTTP backend.
type Scraper struct {
	base    *colly.Collector
	limiter *rate.Limiter
}

type ScraperOptions struct {
	UserAgent         string
	Timeout           time.Duration
	RandomDelay       time.Duration
	RequestsPerSecond float64
}

func ScraperOptionsFromConfig(cfg *config.Config) ScraperOptions {
	return ScraperOptions{
		UserAgent:         cfg.UserAgent,
		Timeout:           cfg.RequestTimeout,
		RandomDelay:       cfg.RandomDelay,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}

func NewScraper(opts ScraperOptions) (*Scraper, error) {
	c := colly.NewCollector(
		colly.UserAgent(opts.UserAgent),
	)
	c.AllowURLRevisit = true
	if opts.Timeout > 0 {
		c.SetRequestTimeout(opts.Timeout)
	}

	if opts.RandomDelay > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			RandomDelay: opts.RandomDelay,
		}); err != nil {
			return nil, fmt.Errorf("failed to set limit rule: %w", err)
		}
	}

	s := &Scraper{base: c}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return s, nil
}

func (s *Scraper) collector() *colly.Collector {
	c := s.base.Clone()
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "id-ID,id;q=0.9,en-US;q=0.5")
		r.Headers.Set("DNT", "1")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
	})
	return c
}

func (s *Scraper) Load(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var (
		page     *Page
		parseErr error
		status   int
	)
	c := s.collector()
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			parseErr = err
			return
		}
		page = &Page{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
			Doc:        doc,
		}
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(url); err != nil {
		return nil, &FetchError{URL: url, StatusCode: status, Err: err}
	}
	if parseErr != nil {
		return nil, &FetchError{URL: url, StatusCode: status, Err: fmt.Errorf("failed to parse html: %w", parseErr)}
	}
	if page == nil {
		return nil, &FetchError{URL: url, StatusCode: status, Err: ErrEmptyResponse}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return page, nil
}
