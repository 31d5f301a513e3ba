package progress

import (
	"sync"
	"time"
)

// Phase of a correction run, coarse enough for a status page.
type Phase string

const (
	PhaseQueued    Phase = "queued"
	PhaseFixing    Phase = "fixing"
	PhaseVerifying Phase = "verifying"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
)

func (p Phase) Terminal() bool { return p == PhaseDone || p == PhaseFailed }

// Run is a snapshot of one correction attempt's progress.
type Run struct {
	RunID     string    `json:"run_id"`
	ErrorID   string    `json:"error_id"`
	Strategy  string    `json:"strategy"`
	Phase     Phase     `json:"phase"`
	Percent   int       `json:"percent"`
	Step      string    `json:"step"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Tracker keeps in-memory progress per run.
// Concurrent-safe; snapshots are returned by value supaya caller
// gak bisa mutasi state internal.
type Tracker struct {
	mu   sync.RWMutex
	runs map[string]*Run
	now  func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string]*Run), now: time.Now}
}

// Begin registers a run at 0%. Re-registering an existing runID resets it.
func (t *Tracker) Begin(runID, errorID, strategy string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.runs[runID] = &Run{
		RunID:     runID,
		ErrorID:   errorID,
		Strategy:  strategy,
		Phase:     PhaseQueued,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves a run forward. Percent hanya boleh naik; a lower value
// keeps the previous one so the UI never sees progress go backwards.
// No-op on unknown or already-terminal runs.
func (t *Tracker) Advance(runID string, phase Phase, percent int, step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.runs[runID]
	if !ok || r.Phase.Terminal() {
		return
	}
	if percent > r.Percent {
		if percent > 100 {
			percent = 100
		}
		r.Percent = percent
	}
	r.Phase = phase
	r.Step = step
	r.UpdatedAt = t.now()
}

// Complete marks a run terminal. success=true pins percent at 100.
func (t *Tracker) Complete(runID string, success bool, step string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.runs[runID]
	if !ok || r.Phase.Terminal() {
		return
	}
	if success {
		r.Phase = PhaseDone
		r.Percent = 100
	} else {
		r.Phase = PhaseFailed
	}
	r.Step = step
	r.UpdatedAt = t.now()
}

// Get returns a snapshot copy of one run.
func (t *Tracker) Get(runID string) (Run, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.runs[runID]
	if !ok {
		return Run{}, false
	}
	return *r, true
}

// List returns snapshots of all tracked runs, order unspecified.
func (t *Tracker) List() []Run {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Run, 0, len(t.runs))
	for _, r := range t.runs {
		out = append(out, *r)
	}
	return out
}

// Remove drops a run, typically setelah hasilnya dipersist.
func (t *Tracker) Remove(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, runID)
}
