package crawler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"news-scraper/internal/config"
	"news-scraper/internal/frontier"
	"news-scraper/internal/storage"
	"news-scraper/pkg/models"
	"news-scraper/pkg/util"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RecordedCache remembers URLs persisted by earlier runs.
type RecordedCache interface {
	Unrecorded(ctx context.Context, urls []string) ([]string, error)
	MarkRecorded(ctx context.Context, urls ...string) error
}

// LinkPublisher receives enumerated links.
type LinkPublisher interface {
	AddLinks(ctx context.Context, links []models.ChildLink) error
}

// Coordinator wires the enumerator, the bounded fetcher and the sinks into
// one run.
type Coordinator struct {
	cfg        *config.Config
	profile    config.Profile
	runID      string
	enumerator *Enumerator
	fetcher    *Fetcher
	sink       storage.Sink
	cache      RecordedCache
	publisher  LinkPublisher
	progress   *Progress
	log        logrus.FieldLogger
}

type Options struct {
	RunID     string
	Loader    PageLoader
	Sink      storage.Sink
	Cache     RecordedCache
	Publisher LinkPublisher
	Robots    *util.RobotsGate
	Metrics   *Metrics
	Progress  *Progress
	Logger    logrus.FieldLogger
}

// RunSummary describes the article phase of a run.
type RunSummary struct {
	RunID    string
	Batches  int
	Seeds    int
	Skipped  int
	Recorded int
	Failed   int
}

func NewCoordinator(cfg *config.Config, opts Options) (*Coordinator, error) {
	if opts.Sink == nil {
		return nil, errors.New("a sink is required")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	profile := cfg.ActiveProfile()
	if opts.Loader == nil {
		scraper, err := NewScraper(ScraperOptionsFromConfig(cfg))
		if err != nil {
			return nil, err
		}
		opts.Loader = scraper
	}
	if opts.Progress == nil {
		opts.Progress = NewProgress(opts.RunID, profile.Name)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	log := opts.Logger.WithFields(logrus.Fields{"run_id": opts.RunID, "profile": profile.Name})

	extractor := NewExtractor(profile, opts.Loader, ExtractorOptions{
		Readability: cfg.ReadabilityFallback,
		Validate:    cfg.ValidateItems,
		MaxPages:    cfg.MaxArticlePages,
	})

	return &Coordinator{
		cfg:     cfg,
		profile: profile,
		runID:   opts.RunID,
		enumerator: NewEnumerator(profile, opts.Loader, EnumeratorOptions{
			Concurrency: cfg.ListingConcurrency,
			MaxPages:    cfg.MaxListingPages,
			Retry:       cfg.Retry,
			Metrics:     opts.Metrics,
			Logger:      log,
		}),
		fetcher: NewFetcher(extractor, FetcherOptions{
			Concurrency: cfg.Concurrency,
			Retry:       cfg.Retry,
			Robots:      opts.Robots,
			Metrics:     opts.Metrics,
			Progress:    opts.Progress,
			Logger:      log,
		}),
		sink:      opts.Sink,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		progress:  opts.Progress,
		log:       log,
	}, nil
}

func (c *Coordinator) RunID() string {
	return c.runID
}

func (c *Coordinator) Progress() *Progress {
	return c.progress
}

// IndexPath is where Index writes the enumerated links.
func (c *Coordinator) IndexPath() string {
	return filepath.Join(c.cfg.Output.Dir, fmt.Sprintf("%s_index_%s.csv", c.profile.Name, c.cfg.OutputLabel()))
}

// Index enumerates the date range, writes the links CSV and publishes the
// links when a publisher is configured.
func (c *Coordinator) Index(ctx context.Context, from, to time.Time) (EnumerationResult, error) {
	c.progress.SetPhase("index", 0)
	start := time.Now()

	res, err := c.enumerator.Enumerate(ctx, from, to)
	c.progress.AddLinks(len(res.Links))
	if err != nil {
		return res, err
	}

	if err := frontier.WriteLinks(c.IndexPath(), res.Links); err != nil {
		return res, fmt.Errorf("failed to write index: %w", err)
	}
	if c.publisher != nil && len(res.Links) > 0 {
		if err := c.publisher.AddLinks(ctx, res.Links); err != nil {
			return res, fmt.Errorf("failed to publish links: %w", err)
		}
	}

	c.log.WithFields(logrus.Fields{
		"links":        len(res.Links),
		"pages":        res.Pages,
		"failed_pages": len(res.Failures),
		"elapsed":      time.Since(start).Round(time.Millisecond),
		"index_file":   c.IndexPath(),
	}).Info("Index complete")
	return res, nil
}

// Articles fetches links in batches, writing each batch to the sink and
// pausing between batches.
func (c *Coordinator) Articles(ctx context.Context, links []models.ChildLink) (RunSummary, error) {
	summary := RunSummary{RunID: c.runID}
	links = frontier.Dedupe(links)
	summary.Seeds = len(links)

	if c.cfg.SkipRecorded && c.cache != nil {
		remaining, err := c.skipRecorded(ctx, links)
		if err != nil {
			return summary, err
		}
		summary.Skipped = len(links) - len(remaining)
		links = remaining
	}
	c.progress.AddTotal(len(links))

	batches := SplitBatches(links, c.cfg.Batch.Size)
	// a resumed run keeps the batch number so earlier files survive
	single := len(batches) == 1 && c.cfg.Batch.Start <= 1
	for i, chunk := range batches {
		number := c.cfg.Batch.Start + i
		log := c.log.WithField("batch", number)
		c.progress.SetPhase("articles", number)

		results := &models.ResultSet{}
		report := c.fetcher.FetchAll(ctx, chunk, func(o Outcome) {
			if o.State == models.StateRecorded {
				results.Add(o.Item)
			} else {
				results.Fail(o.Failure)
			}
		})

		batch := storage.Batch{
			RunID:    c.runID,
			Site:     c.profile.Name,
			Label:    c.cfg.OutputLabel(),
			Number:   number,
			Single:   single,
			Items:    results.Items(),
			Failures: results.Failures(),
		}
		// what was gathered is persisted even when the run is being cancelled
		if err := c.sink.WriteBatch(context.WithoutCancel(ctx), batch); err != nil {
			return summary, err
		}
		if c.cache != nil && len(batch.Items) > 0 {
			if err := c.cache.MarkRecorded(context.WithoutCancel(ctx), itemURLs(batch.Items)...); err != nil {
				log.WithError(err).Warn("Failed to mark recorded URLs")
			}
		}

		summary.Batches++
		summary.Recorded += report.Recorded
		summary.Failed += report.Failed
		log.WithFields(logrus.Fields{
			"recorded": report.Recorded,
			"failed":   report.Failed,
			"elapsed":  report.Duration.Round(time.Millisecond),
		}).Info("Finished batch")

		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if i < len(batches)-1 && c.cfg.Batch.Pause > 0 {
			log.WithField("pause", c.cfg.Batch.Pause).Info("Pausing between batches")
			if err := sleepCtx(ctx, c.cfg.Batch.Pause); err != nil {
				return summary, err
			}
		}
	}

	c.progress.SetPhase("done", 0)
	return summary, nil
}

// Run enumerates the date range and then fetches every link found.
func (c *Coordinator) Run(ctx context.Context, from, to time.Time) (RunSummary, error) {
	res, err := c.Index(ctx, from, to)
	if err != nil {
		return RunSummary{RunID: c.runID}, err
	}
	return c.Articles(ctx, res.Links)
}

func (c *Coordinator) skipRecorded(ctx context.Context, links []models.ChildLink) ([]models.ChildLink, error) {
	urls := make([]string, len(links))
	for i, l := range links {
		urls[i] = l.URL
	}
	pending, err := c.cache.Unrecorded(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("failed to check recorded urls: %w", err)
	}
	keep := make(map[string]bool, len(pending))
	for _, u := range pending {
		keep[u] = true
	}
	out := make([]models.ChildLink, 0, len(pending))
	for _, l := range links {
		if keep[l.URL] {
			out = append(out, l)
		}
	}
	return out, nil
}

// SplitBatches cuts links into consecutive chunks of at most size links.
// A size of zero or less yields a single batch.
func SplitBatches(links []models.ChildLink, size int) [][]models.ChildLink {
	if len(links) == 0 {
		return nil
	}
	if size <= 0 || size >= len(links) {
		return [][]models.ChildLink{links}
	}
	var batches [][]models.ChildLink
	for i := 0; i < len(links); i += size {
		end := min(i+size, len(links))
		batches = append(batches, links[i:end])
	}
	return batches
}

func itemURLs(items []models.ExtractedItem) []string {
	urls := make([]string, len(items))
	for i, it := range items {
		urls[i] = it.URL
	}
	return urls
}
