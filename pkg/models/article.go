package models

import "time"

// ChildLink is a content page URL found on a listing page.
type ChildLink struct {
	URL     string
	Summary string
}

// ListingPage identifies one page of a date's listing pagination chain.
type ListingPage struct {
	Date  time.Time
	Index int
	URL   string
}

// ExtractedItem is a fully extracted article. It is only ever built from a
// successful attempt and never mutated after being recorded.
type ExtractedItem struct {
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Date       string   `json:"date"`
	Genre      string   `json:"genre"`
	Keyphrases []string `json:"keyphrases"`
	Summary    string   `json:"summary"`
	Pages      int      `json:"pages"`
	Attempts   int      `json:"attempts"`
}

// Failure is the terminal state of a URL that could not be extracted.
type Failure struct {
	URL      string
	Attempts int
	Err      error
}

func (f Failure) Error() string {
	if f.Err == nil {
		return f.URL + ": failed"
	}
	return f.URL + ": " + f.Err.Error()
}

// ItemState tracks a link through the fetcher. Outcomes only ever carry
// StateRecorded or StateFailed; links in StatePending and StateFetching are
// counted by the run's progress snapshot.
type ItemState int

const (
	StatePending ItemState = iota
	StateFetching
	StateRecorded
	StateFailed
)

func (s ItemState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateRecorded:
		return "recorded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s ItemState) Terminal() bool {
	return s == StateRecorded || s == StateFailed
}
