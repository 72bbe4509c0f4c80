package crawler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"news-scraper/internal/config"
	"news-scraper/pkg/models"
	"news-scraper/pkg/util"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// Outcome is the terminal state of one link.
type Outcome struct {
	Link    models.ChildLink
	State   models.ItemState
	Item    models.ExtractedItem
	Failure models.Failure
}

// Report summarizes one FetchAll call.
type Report struct {
	Recorded int
	Failed   int
	Duration time.Duration
}

// Fetcher extracts articles with at most Concurrency extractions in flight,
// retrying each link under a bounded back-off policy.
type Fetcher struct {
	extractor   *Extractor
	retry       config.RetryPolicy
	concurrency int
	robots      *util.RobotsGate
	metrics     *Metrics
	progress    *Progress
	log         logrus.FieldLogger
}

type FetcherOptions struct {
	Concurrency int
	Retry       config.RetryPolicy
	Robots      *util.RobotsGate
	Metrics     *Metrics
	Progress    *Progress
	Logger      logrus.FieldLogger
}

func NewFetcher(extractor *Extractor, opts FetcherOptions) *Fetcher {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = 1
	}
	progress := opts.Progress
	if progress == nil {
		progress = NewProgress("", "")
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{
		extractor:   extractor,
		retry:       opts.Retry,
		concurrency: concurrency,
		robots:      opts.Robots,
		metrics:     opts.Metrics,
		progress:    progress,
		log:         log,
	}
}

// FetchAll processes every link exactly once and calls record with each
// terminal outcome, in completion order. record is called from worker
// goroutines and must be safe for concurrent use.
func (f *Fetcher) FetchAll(ctx context.Context, links []models.ChildLink, record func(Outcome)) Report {
	start := time.Now()
	var recorded, failed atomic.Int64

	p := pool.New().WithContext(ctx).WithMaxGoroutines(f.concurrency)
	for _, link := range links {
		link := link
		p.Go(func(ctx context.Context) error {
			out := f.Fetch(ctx, link)
			if out.State == models.StateRecorded {
				recorded.Add(1)
			} else {
				failed.Add(1)
			}
			record(out)
			return nil
		})
	}
	_ = p.Wait()

	return Report{
		Recorded: int(recorded.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
}

// Fetch runs the retry loop for a single link until it is recorded or failed.
func (f *Fetcher) Fetch(ctx context.Context, link models.ChildLink) Outcome {
	log := f.log.WithField("url", link.URL)

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return f.fail(link, attempt-1, err)
		}

		item, err := f.attempt(ctx, link)
		if err == nil {
			item.Attempts = attempt
			f.progress.Recorded()
			f.metrics.terminal(models.StateRecorded.String())
			return Outcome{Link: link, State: models.StateRecorded, Item: item}
		}

		if !retryable(err) || attempt == f.retry.MaxAttempts {
			log.WithError(err).WithField("attempt", attempt).Warn("Giving up on article")
			return f.fail(link, attempt, err)
		}

		delay := f.retry.Delay(attempt)
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Info("Extraction failed, retrying")
		if err := sleepCtx(ctx, delay); err != nil {
			return f.fail(link, attempt, err)
		}
	}
	return f.fail(link, f.retry.MaxAttempts, errors.New("no attempts made"))
}

func (f *Fetcher) attempt(ctx context.Context, link models.ChildLink) (models.ExtractedItem, error) {
	f.progress.enter()
	f.metrics.begin()
	start := time.Now()
	defer func() {
		f.metrics.end()
		f.progress.leave()
	}()

	if f.robots != nil {
		allowed, err := f.robots.Allowed(ctx, link.URL)
		if err != nil {
			f.metrics.attempt("error", time.Since(start))
			return models.ExtractedItem{}, err
		}
		if !allowed {
			f.metrics.attempt("error", time.Since(start))
			return models.ExtractedItem{}, ErrDisallowedByRobots
		}
	}

	item, err := f.extractor.Extract(ctx, link)
	if err != nil {
		f.metrics.attempt("error", time.Since(start))
		return models.ExtractedItem{}, err
	}
	f.metrics.attempt("success", time.Since(start))
	return item, nil
}

func (f *Fetcher) fail(link models.ChildLink, attempts int, err error) Outcome {
	f.progress.Failed()
	f.metrics.terminal(models.StateFailed.String())
	return Outcome{
		Link:    link,
		State:   models.StateFailed,
		Failure: models.Failure{URL: link.URL, Attempts: attempts, Err: err},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
