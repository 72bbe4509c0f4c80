package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strings"

	"news-scraper/internal/config"
	"news-scraper/pkg/models"
	"news-scraper/pkg/util"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// Extractor turns an article URL into an ExtractedItem following a site profile.
type Extractor struct {
	profile     config.Profile
	loader      PageLoader
	strip       *bluemonday.Policy
	readability bool
	validate    bool
	maxPages    int
}

type ExtractorOptions struct {
	Readability bool
	Validate    bool
	MaxPages    int
}

func NewExtractor(profile config.Profile, loader PageLoader, opts ExtractorOptions) *Extractor {
	maxPages := opts.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}
	return &Extractor{
		profile:     profile,
		loader:      loader,
		strip:       bluemonday.StrictPolicy(),
		readability: opts.Readability,
		validate:    opts.Validate,
		maxPages:    maxPages,
	}
}

// Extract loads link and every continuation page and assembles one item.
// Any error discards everything gathered so far.
func (e *Extractor) Extract(ctx context.Context, link models.ChildLink) (models.ExtractedItem, error) {
	page, err := e.loader.Load(ctx, link.URL)
	if err != nil {
		return models.ExtractedItem{}, err
	}

	item, err := e.parse(page)
	if err != nil {
		return models.ExtractedItem{}, err
	}
	item.URL = link.URL
	if item.Summary == "" {
		item.Summary = link.Summary
	}

	fragments := []string{item.Body}
	visited := map[string]bool{page.URL: true, link.URL: true}
	item.Pages = 1
	for item.Pages < e.maxPages {
		next := e.nextURL(page, e.profile.ArticleNext)
		if next == "" || visited[next] {
			break
		}
		visited[next] = true

		page, err = e.loader.Load(ctx, next)
		if err != nil {
			return models.ExtractedItem{}, fmt.Errorf("article page %d: %w", item.Pages+1, err)
		}
		if body := e.body(page.Doc); body != "" {
			fragments = append(fragments, body)
		}
		item.Pages++
	}
	item.Body = strings.Join(fragments, " ")

	if e.validate && (item.Title == "" || item.Body == "") {
		return models.ExtractedItem{}, e.incomplete(item)
	}
	return item, nil
}

func (e *Extractor) incomplete(item models.ExtractedItem) error {
	if item.Title == "" && e.profile.Title != "" {
		return fmt.Errorf("%w: title %q", ErrSelectorNotFound, e.profile.Title)
	}
	if item.Body == "" && e.profile.Body != "" {
		return fmt.Errorf("%w: body %q", ErrSelectorNotFound, e.profile.Body)
	}
	return fmt.Errorf("%w: title=%t body=%t", ErrIncompleteItem, item.Title != "", item.Body != "")
}

// parse extracts the fields of a single page. Structured metadata wins,
// selectors fill what it left empty, readability fills the rest.
func (e *Extractor) parse(page *Page) (models.ExtractedItem, error) {
	var item models.ExtractedItem
	doc := page.Doc

	if e.profile.UseLDJSON {
		if ld, ok := findLDArticle(doc); ok {
			item.Title = cleanText(ld.Headline)
			item.Body = cleanText(e.stripHTML(ld.ArticleBody))
			item.Date = ld.DatePublished
			item.Keyphrases = ld.Keywords
			item.Summary = cleanText(ld.Description)
			item.Genre = cleanText(ld.Section)
		}
	}

	if item.Title == "" && e.profile.Title != "" {
		item.Title = cleanText(doc.Find(e.profile.Title).First().Text())
	}
	if item.Body == "" && e.profile.Body != "" {
		item.Body = e.body(doc)
	}
	if e.profile.Date != "" && item.Date == "" {
		item.Date = doc.Find(e.profile.Date).First().Text()
	}
	if e.profile.Genre != "" {
		if g := cleanText(doc.Find(e.profile.Genre).Eq(e.profile.GenreIndex).Text()); g != "" {
			item.Genre = g
		}
	}
	if e.profile.Keyphrases != "" && len(item.Keyphrases) == 0 {
		doc.Find(e.profile.Keyphrases).Each(func(_ int, s *goquery.Selection) {
			if k := cleanText(s.Text()); k != "" {
				item.Keyphrases = append(item.Keyphrases, k)
			}
		})
	}
	if e.profile.Summary != "" {
		if s := cleanText(doc.Find(e.profile.Summary).First().Text()); s != "" {
			item.Summary = s
		}
	}

	if e.readability && (item.Title == "" || item.Body == "") {
		if err := e.fillFromReadability(page, &item); err != nil {
			return models.ExtractedItem{}, err
		}
	}

	item.Date = NormalizeDate(item.Date)
	if item.Keyphrases == nil {
		item.Keyphrases = []string{}
	}
	return item, nil
}

func (e *Extractor) fillFromReadability(page *Page, item *models.ExtractedItem) error {
	pageURL, err := url.Parse(page.URL)
	if err != nil {
		return fmt.Errorf("invalid page url: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		// Unreadable pages surface as incomplete items.
		return nil
	}
	if item.Title == "" {
		item.Title = cleanText(article.Title)
	}
	if item.Body == "" {
		item.Body = cleanText(article.TextContent)
	}
	return nil
}

// body returns the joined text of the body selector, or the ld+json body
// when the profile has no body selector.
func (e *Extractor) body(doc *goquery.Document) string {
	if e.profile.Body == "" {
		if ld, ok := findLDArticle(doc); ok {
			return cleanText(e.stripHTML(ld.ArticleBody))
		}
		return ""
	}
	var parts []string
	doc.Find(e.profile.Body).Each(func(_ int, s *goquery.Selection) {
		if t := cleanText(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func (e *Extractor) nextURL(page *Page, selector string) string {
	if selector == "" {
		return ""
	}
	href, ok := page.Doc.Find(selector).First().Attr("href")
	if !ok {
		return ""
	}
	next, ok := util.ResolveURL(page.URL, href)
	if !ok {
		return ""
	}
	return next
}

func (e *Extractor) stripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	return html.UnescapeString(e.strip.Sanitize(s))
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type ldArticle struct {
	Headline      string
	ArticleBody   string
	DatePublished string
	Description   string
	Section       string
	Keywords      []string
}

var articleTypes = map[string]bool{
	"Article":              true,
	"NewsArticle":          true,
	"ReportageNewsArticle": true,
	"AnalysisNewsArticle":  true,
	"BlogPosting":          true,
}

// findLDArticle returns the first article object among the page's ld+json blocks.
func findLDArticle(doc *goquery.Document) (ldArticle, bool) {
	var (
		found ldArticle
		ok    bool
	)
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return true
		}
		if obj := findArticleObject(v); obj != nil {
			found = ldArticle{
				Headline:      stringField(obj["headline"]),
				ArticleBody:   stringField(obj["articleBody"]),
				DatePublished: stringField(obj["datePublished"]),
				Description:   stringField(obj["description"]),
				Section:       strings.Join(listField(obj["articleSection"]), ", "),
				Keywords:      listField(obj["keywords"]),
			}
			ok = true
			return false
		}
		return true
	})
	return found, ok
}

func findArticleObject(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, el := range t {
			if obj := findArticleObject(el); obj != nil {
				return obj
			}
		}
	case map[string]any:
		if isArticle(t["@type"]) {
			return t
		}
		if _, ok := t["headline"]; ok {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findArticleObject(graph)
		}
	}
	return nil
}

func isArticle(v any) bool {
	for _, typ := range listField(v) {
		if articleTypes[typ] {
			return true
		}
	}
	return false
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			return stringField(t[0])
		}
	}
	return ""
}

// listField accepts a comma separated string or an array of strings.
func listField(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		for _, part := range strings.Split(t, ",") {
			if p := cleanText(part); p != "" {
				out = append(out, p)
			}
		}
	case []any:
		for _, el := range t {
			if s, ok := el.(string); ok {
				if p := cleanText(s); p != "" {
					out = append(out, p)
				}
			}
		}
	}
	return out
}
