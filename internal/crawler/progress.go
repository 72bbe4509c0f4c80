package crawler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress is a live view of a run, safe for concurrent use.
type Progress struct {
	RunID   string
	Profile string
	Started time.Time

	mu    sync.Mutex
	phase string
	batch int

	links    atomic.Int64
	total    atomic.Int64
	recorded atomic.Int64
	failed   atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

type ProgressSnapshot struct {
	RunID    string    `json:"run_id"`
	Profile  string    `json:"profile"`
	Phase    string    `json:"phase"`
	Batch    int       `json:"batch"`
	Started  time.Time `json:"started"`
	Links    int64     `json:"links_enumerated"`
	Total    int64     `json:"total"`
	Recorded int64     `json:"recorded"`
	Failed   int64     `json:"failed"`
	Pending  int64     `json:"pending"`
	InFlight int64     `json:"in_flight"`
	Peak     int64     `json:"peak_in_flight"`
}

func NewProgress(runID, profile string) *Progress {
	return &Progress{RunID: runID, Profile: profile, Started: time.Now(), phase: "idle"}
}

func (p *Progress) SetPhase(phase string, batch int) {
	p.mu.Lock()
	p.phase, p.batch = phase, batch
	p.mu.Unlock()
}

func (p *Progress) AddLinks(n int) { p.links.Add(int64(n)) }

func (p *Progress) AddTotal(n int) { p.total.Add(int64(n)) }

func (p *Progress) Recorded() { p.recorded.Add(1) }

func (p *Progress) Failed() { p.failed.Add(1) }

// PeakInFlight is the highest number of concurrent extractions seen.
func (p *Progress) PeakInFlight() int64 { return p.peak.Load() }

func (p *Progress) enter() {
	n := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (p *Progress) leave() {
	p.inFlight.Add(-1)
}

func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	phase, batch := p.phase, p.batch
	p.mu.Unlock()

	total, recorded, failed, inFlight := p.total.Load(), p.recorded.Load(), p.failed.Load(), p.inFlight.Load()
	// links waiting for dispatch or sleeping before a retry
	pending := max(total-recorded-failed-inFlight, 0)
	return ProgressSnapshot{
		RunID:    p.RunID,
		Profile:  p.Profile,
		Phase:    phase,
		Batch:    batch,
		Started:  p.Started,
		Links:    p.links.Load(),
		Total:    total,
		Recorded: recorded,
		Failed:   failed,
		Pending:  pending,
		InFlight: inFlight,
		Peak:     p.peak.Load(),
	}
}
