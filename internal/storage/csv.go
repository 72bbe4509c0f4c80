package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"news-scraper/pkg/models"
)

var itemHeader = []string{"url", "title", "body", "summary", "date", "genre", "keyphrases", "pages", "attempts"}

var failureHeader = []string{"url", "attempts", "error"}

// CSVSink writes one file per batch under Dir.
type CSVSink struct {
	Dir string
}

func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &CSVSink{Dir: dir}, nil
}

// Path returns the item file for a batch, e.g. jpnn_2023_batch_19.csv.
func (s *CSVSink) Path(b Batch) string {
	name := fmt.Sprintf("%s_%s_batch_%d.csv", b.Site, b.Label, b.Number)
	if b.Single {
		name = fmt.Sprintf("%s_%s.csv", b.Site, b.Label)
	}
	return filepath.Join(s.Dir, name)
}

// FailurePath returns the sibling file listing a batch's failed URLs.
func (s *CSVSink) FailurePath(b Batch) string {
	p := s.Path(b)
	return p[:len(p)-len(".csv")] + "_failed.csv"
}

func (s *CSVSink) WriteBatch(_ context.Context, b Batch) error {
	if err := writeCSV(s.Path(b), itemHeader, len(b.Items), func(i int) ([]string, error) {
		return itemRecord(b.Items[i])
	}); err != nil {
		return err
	}
	if len(b.Failures) == 0 {
		return nil
	}
	return writeCSV(s.FailurePath(b), failureHeader, len(b.Failures), func(i int) ([]string, error) {
		f := b.Failures[i]
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		return []string{f.URL, strconv.Itoa(f.Attempts), msg}, nil
	})
}

func (s *CSVSink) Close() error {
	return nil
}

func itemRecord(it models.ExtractedItem) ([]string, error) {
	keyphrases := it.Keyphrases
	if keyphrases == nil {
		keyphrases = []string{}
	}
	kp, err := json.Marshal(keyphrases)
	if err != nil {
		return nil, err
	}
	return []string{
		it.URL,
		it.Title,
		it.Body,
		it.Summary,
		it.Date,
		it.Genre,
		string(kp),
		strconv.Itoa(it.Pages),
		strconv.Itoa(it.Attempts),
	}, nil
}

// writeCSV writes to a temp file and renames it so readers never see a
// half-written batch.
func writeCSV(path string, header []string, n int, row func(int) ([]string, error)) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	w := csv.NewWriter(f)
	err = w.Write(header)
	for i := 0; err == nil && i < n; i++ {
		var rec []string
		if rec, err = row(i); err == nil {
			err = w.Write(rec)
		}
	}
	if err == nil {
		w.Flush()
		err = w.Error()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return os.Rename(tmp, path)
}
