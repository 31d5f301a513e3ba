package progress

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginAndGet(t *testing.T) {
	tr := NewTracker()
	tr.Begin("r1", "e1", "toolkit_repair")

	r, ok := tr.Get("r1")
	require.True(t, ok)
	assert.Equal(t, PhaseQueued, r.Phase)
	assert.Equal(t, 0, r.Percent)
	assert.Equal(t, "e1", r.ErrorID)

	_, ok = tr.Get("nope")
	assert.False(t, ok)
}

func TestPercentNeverGoesBackwards(t *testing.T) {
	tr := NewTracker()
	tr.Begin("r1", "e1", "toolkit_repair")

	tr.Advance("r1", PhaseFixing, 60, "toolkit opened")
	tr.Advance("r1", PhaseVerifying, 40, "re-checking")

	r, _ := tr.Get("r1")
	assert.Equal(t, 60, r.Percent)
	assert.Equal(t, PhaseVerifying, r.Phase) // phase still moves
	assert.Equal(t, "re-checking", r.Step)
}

func TestPercentClampedAtHundred(t *testing.T) {
	tr := NewTracker()
	tr.Begin("r1", "e1", "toolkit_repair")
	tr.Advance("r1", PhaseFixing, 150, "overshoot")

	r, _ := tr.Get("r1")
	assert.Equal(t, 100, r.Percent)
}

func TestCompleteIsTerminal(t *testing.T) {
	tr := NewTracker()
	tr.Begin("r1", "e1", "toolkit_repair")
	tr.Complete("r1", true, "verified")

	r, _ := tr.Get("r1")
	assert.Equal(t, PhaseDone, r.Phase)
	assert.Equal(t, 100, r.Percent)

	// further updates are no-ops
	tr.Advance("r1", PhaseFixing, 10, "zombie update")
	tr.Complete("r1", false, "too late")
	r, _ = tr.Get("r1")
	assert.Equal(t, PhaseDone, r.Phase)
	assert.Equal(t, 100, r.Percent)
	assert.Equal(t, "verified", r.Step)
}

func TestCompleteFailureKeepsPercent(t *testing.T) {
	tr := NewTracker()
	tr.Begin("r1", "e1", "toolkit_repair")
	tr.Advance("r1", PhaseFixing, 70, "clicking proceed")
	tr.Complete("r1", false, "window never opened")

	r, _ := tr.Get("r1")
	assert.Equal(t, PhaseFailed, r.Phase)
	assert.Equal(t, 70, r.Percent)
}

func TestAdvanceUnknownRunIsNoop(t *testing.T) {
	tr := NewTracker()
	tr.Advance("ghost", PhaseFixing, 50, "x")
	tr.Complete("ghost", true, "x")
	_, ok := tr.Get("ghost")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	tr := NewTracker()
	tr.Begin("r1", "e1", "toolkit_repair")
	tr.Remove("r1")
	_, ok := tr.Get("r1")
	assert.False(t, ok)
	assert.Empty(t, tr.List())
}

func TestConcurrentUpdates(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("r%d", i)
			tr.Begin(id, "e", "s")
			for p := 0; p <= 100; p += 10 {
				tr.Advance(id, PhaseFixing, p, "step")
			}
			tr.Complete(id, i%2 == 0, "done")
		}(i)
	}
	wg.Wait()
	assert.Len(t, tr.List(), 20)
}
