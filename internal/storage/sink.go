package storage

import (
	"context"
	"errors"
	"fmt"

	"news-scraper/pkg/models"
)

// Batch is one unit of output. Single marks a run that was not split.
type Batch struct {
	RunID    string
	Site     string
	Label    string
	Number   int
	Single   bool
	Items    []models.ExtractedItem
	Failures []models.Failure
}

// Sink persists batches of extracted items.
type Sink interface {
	WriteBatch(ctx context.Context, batch Batch) error
	Close() error
}

// MultiSink writes every batch to all of its sinks.
type MultiSink []Sink

func (m MultiSink) WriteBatch(ctx context.Context, batch Batch) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteBatch(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("write batch %d: %w", batch.Number, errors.Join(errs...))
	}
	return nil
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
