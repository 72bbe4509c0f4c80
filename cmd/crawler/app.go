package main

import (
	"context"
	"fmt"
	"time"

	"news-scraper/internal/config"
	"news-scraper/internal/crawler"
	"news-scraper/internal/crawlerservice"
	"news-scraper/internal/frontier"
	"news-scraper/internal/logger"
	"news-scraper/internal/storage"
	"news-scraper/pkg/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// app holds the wired dependencies of one command invocation.
type app struct {
	log         *logrus.Logger
	coordinator *crawler.Coordinator
	frontier    *frontier.URLFrontier
	server      *crawlerservice.Server
	closers     []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{log: logger.New(cfg.Log.Level, cfg.Log.Format)}
	a.log.WithField("config", cfg.String()).Debug("Configuration loaded")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := crawler.NewMetrics(reg)

	sink, err := a.buildSinks(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}

	opts := crawler.Options{
		Sink:    sink,
		Metrics: metrics,
		Logger:  a.log,
	}

	var robotsCache util.RobotsCache
	if cfg.Redis.Address != "" {
		cache, err := storage.NewRedisCache(cfg.Redis.Address)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, cache.Close)
		opts.Cache = cache
		robotsCache = cache
	}
	if cfg.RespectRobots {
		opts.Robots = util.NewRobotsGate(cfg.UserAgent, robotsCache, cfg.RequestTimeout)
	}

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.LinksTopic != "" {
		a.frontier = frontier.NewURLFrontier(cfg.Kafka.Brokers, cfg.Kafka.LinksTopic, "news-scraper-"+cfg.Profile)
		a.closers = append(a.closers, a.frontier.Close)
		opts.Publisher = a.frontier
	}

	a.coordinator, err = crawler.NewCoordinator(cfg, opts)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.MetricsAddr != "" {
		a.server = crawlerservice.NewServer(cfg.MetricsAddr, reg, a.coordinator.Progress(), a.log)
		go func() {
			if err := a.server.Start(); err != nil {
				a.log.WithError(err).Error("Status server stopped")
			}
		}()
	}

	a.log.WithFields(logrus.Fields{
		"run_id":      a.coordinator.RunID(),
		"profile":     cfg.Profile,
		"concurrency": cfg.Concurrency,
	}).Info("Scraper ready")
	return a, nil
}

func (a *app) buildSinks(ctx context.Context, cfg *config.Config) (storage.Sink, error) {
	var sinks storage.MultiSink
	for _, name := range cfg.Output.Sinks {
		switch name {
		case "csv":
			s, err := storage.NewCSVSink(cfg.Output.Dir)
			if err != nil {
				sinks.Close()
				return nil, err
			}
			sinks = append(sinks, s)
		case "kafka":
			sinks = append(sinks, storage.NewResultsWriter(cfg.Kafka.Brokers, cfg.Kafka.ItemsTopic))
		case "cassandra":
			s, err := storage.NewCassandraStorage(cfg.Cassandra.Hosts, cfg.Cassandra.Keyspace)
			if err != nil {
				sinks.Close()
				return nil, fmt.Errorf("failed to connect to cassandra: %w", err)
			}
			if err := s.Migrate(ctx); err != nil {
				s.Close()
				sinks.Close()
				return nil, fmt.Errorf("failed to create articles table: %w", err)
			}
			sinks = append(sinks, s)
		}
	}
	a.closers = append(a.closers, sinks.Close)
	return sinks, nil
}

func (a *app) report(s crawler.RunSummary) {
	a.log.WithFields(logrus.Fields{
		"run_id":   s.RunID,
		"seeds":    s.Seeds,
		"skipped":  s.Skipped,
		"batches":  s.Batches,
		"recorded": s.Recorded,
		"failed":   s.Failed,
	}).Info("Scraping complete")
}

func (a *app) close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.WithError(err).Warn("Failed to stop status server")
		}
		cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("Failed to close resource")
		}
	}
}
