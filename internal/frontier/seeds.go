package frontier

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"news-scraper/pkg/models"
)

var ErrURLColumnNotFound = errors.New("url column not found")

// fallbackColumns are tried when the configured column is missing.
var fallbackColumns = []string{"url", "Link", "link"}

// ReadSeeds reads child links from CSV with a header row. An optional
// "summary" column is carried along. Blank URLs are skipped.
func ReadSeeds(r io.Reader, column string) ([]models.ChildLink, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	urlIdx, summaryIdx := -1, -1
	for _, name := range append([]string{column}, fallbackColumns...) {
		if urlIdx = indexOf(header, name); urlIdx >= 0 {
			break
		}
	}
	if urlIdx < 0 {
		return nil, fmt.Errorf("%w: %q in %v", ErrURLColumnNotFound, column, header)
	}
	summaryIdx = indexOf(header, "summary")

	var links []models.ChildLink
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read seeds: %w", err)
		}
		if urlIdx >= len(rec) {
			continue
		}
		u := strings.TrimSpace(rec[urlIdx])
		if u == "" {
			continue
		}
		link := models.ChildLink{URL: u}
		if summaryIdx >= 0 && summaryIdx < len(rec) {
			link.Summary = strings.TrimSpace(rec[summaryIdx])
		}
		links = append(links, link)
	}
	return links, nil
}

func ReadSeedFile(path, column string) ([]models.ChildLink, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()
	return ReadSeeds(f, column)
}

// WriteLinks writes enumerated links as url,summary CSV.
func WriteLinks(path string, links []models.ChildLink) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	err = w.Write([]string{"url", "summary"})
	for i := 0; err == nil && i < len(links); i++ {
		err = w.Write([]string{links[i].URL, links[i].Summary})
	}
	if err == nil {
		w.Flush()
		err = w.Error()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Dedupe drops repeated URLs, keeping the first occurrence.
func Dedupe(links []models.ChildLink) []models.ChildLink {
	seen := make(map[string]bool, len(links))
	out := make([]models.ChildLink, 0, len(links))
	for _, l := range links {
		if seen[l.URL] {
			continue
		}
		seen[l.URL] = true
		out = append(out, l)
	}
	return out
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")) == name {
			return i
		}
	}
	return -1
}
