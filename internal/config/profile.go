package config

import (
	"strings"
	"time"
)

// Profile describes where a site's listing and article fields live.
// Selectors are CSS selectors. Listing link and summary selectors are
// relative to ListingItem when it is set.
type Profile struct {
	Name string `mapstructure:"-"`

	// ListingURL may contain {date} (YYYY-MM-DD), {yyyy}, {mm} and {dd}.
	ListingURL     string `mapstructure:"listing_url"`
	ListingItem    string `mapstructure:"listing_item"`
	ListingLink    string `mapstructure:"listing_link"`
	ListingSummary string `mapstructure:"listing_summary"`
	ListingNext    string `mapstructure:"listing_next"`

	UseLDJSON   bool   `mapstructure:"use_ld_json"`
	Title       string `mapstructure:"title"`
	Body        string `mapstructure:"body"`
	Date        string `mapstructure:"date"`
	Genre       string `mapstructure:"genre"`
	GenreIndex  int    `mapstructure:"genre_index"`
	Keyphrases  string `mapstructure:"keyphrases"`
	Summary     string `mapstructure:"summary"`
	ArticleNext string `mapstructure:"article_next"`
}

// BuiltinProfiles returns the profiles for the sites the scraper ships with.
func BuiltinProfiles() map[string]Profile {
	return map[string]Profile{
		"tempo": {
			Name:           "tempo",
			ListingURL:     "https://www.tempo.co/indeks/{date}/",
			ListingItem:    "article.text-card",
			ListingLink:    "h2.title a",
			ListingSummary: "p:not([class])",
			UseLDJSON:      true,
			Genre:          `span[itemprop="name"]`,
			GenreIndex:     1,
		},
		"jpnn": {
			Name:        "jpnn",
			ListingURL:  "https://www.jpnn.com/indeks?id=&d={dd}&m={mm}&y={yyyy}&tab=all",
			ListingLink: "h1 a",
			ListingNext: `.pagination a:contains("Next")`,
			Title:       "h1.judul",
			Body:        `div[itemprop="articleBody"] p`,
			Date:        ".date-publish",
			Genre:       "div.breadcrumb a",
			GenreIndex:  1,
			Keyphrases:  "div.tags > a:not(.text-tags)",
			Summary:     "div.text-center.relative > :first-child",
			ArticleNext: `.pagination a:contains("Next")`,
		},
	}
}

func (p Profile) Validate(readabilityFallback bool) error {
	if p.ListingURL == "" {
		return ErrMissingListingURL
	}
	if p.ListingLink == "" {
		return ErrMissingListingLink
	}
	if !p.UseLDJSON && p.Title == "" && p.Body == "" && !readabilityFallback {
		return ErrNothingToExtractWith
	}
	return nil
}

// ListingURLFor expands the listing URL template for a day.
func (p Profile) ListingURLFor(day time.Time) string {
	r := strings.NewReplacer(
		"{date}", day.Format(DateLayout),
		"{yyyy}", day.Format("2006"),
		"{mm}", day.Format("01"),
		"{dd}", day.Format("02"),
	)
	return r.Replace(p.ListingURL)
}
