package crawler

import (
	"strings"
	"time"

	"news-scraper/internal/config"

	"github.com/araddon/dateparse"
)

var indonesianMonths = strings.NewReplacer(
	"Januari", "January",
	"Februari", "February",
	"Maret", "March",
	"Mei", "May",
	"Juni", "June",
	"Juli", "July",
	"Agustus", "August",
	"Oktober", "October",
	"Desember", "December",
)

// NormalizeDate turns site date strings into YYYY-MM-DD (Indonesian long
// form, e.g. "Minggu, 31 Desember 2023 – 23:59 WIB") or RFC 3339 (anything
// dateparse understands). Unrecognized input is returned trimmed.
func NormalizeDate(raw string) string {
	s := cleanText(raw)
	if s == "" {
		return ""
	}

	if d, ok := parseIndonesianDate(s); ok {
		return d.Format(config.DateLayout)
	}
	if t, err := dateparse.ParseAny(s); err == nil {
		return t.Format(time.RFC3339)
	}
	return s
}

func parseIndonesianDate(s string) (time.Time, bool) {
	s = strings.ReplaceAll(s, "–", "-")
	part, _, _ := strings.Cut(s, "-")
	if _, after, found := strings.Cut(part, ","); found {
		part = after
	}
	part = indonesianMonths.Replace(strings.TrimSpace(part))
	t, err := time.Parse("2 January 2006", part)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
