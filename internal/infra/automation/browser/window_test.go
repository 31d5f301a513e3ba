package browser

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthora/eldwatch/internal/domain/automation"
)

func TestAwaitWindowResolvesOnMatch(t *testing.T) {
	ch := make(chan target.ID, 1)
	ch <- target.ID("TAB-42")

	w, err := awaitWindow(context.Background(), time.Second, ch, func() string {
		return "https://fortex.example/report"
	})
	require.NoError(t, err)
	assert.Equal(t, "TAB-42", w.TargetID)
	assert.Equal(t, "https://fortex.example/report", w.URL)
}

func TestAwaitWindowTimesOut(t *testing.T) {
	ch := make(chan target.ID)

	_, err := awaitWindow(context.Background(), 20*time.Millisecond, ch, func() string { return "" })
	assert.ErrorIs(t, err, automation.ErrWindowTimeout)
}

func TestAwaitWindowCancels(t *testing.T) {
	ch := make(chan target.ID)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := awaitWindow(ctx, time.Second, ch, func() string { return "" })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireHonorsContextWhileHeld(t *testing.T) {
	m := NewManager(Config{}, nil, zerolog.Nop())
	m.sem <- struct{}{} // session held by another strategy

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
