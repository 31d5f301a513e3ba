package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthora/eldwatch/internal/domain/automation"
)

type fakeDriver struct {
	textErr     error
	selectorErr error
	keyboardErr error
	coordErr    error

	calls []string
}

func (f *fakeDriver) clickText(_ context.Context, _ string) error {
	f.calls = append(f.calls, "text")
	return f.textErr
}

func (f *fakeDriver) clickSelector(_ context.Context, _ string) error {
	f.calls = append(f.calls, "selector")
	return f.selectorErr
}

func (f *fakeDriver) focusAndEnter(_ context.Context, _ automation.Target) error {
	f.calls = append(f.calls, "keyboard")
	return f.keyboardErr
}

func (f *fakeDriver) clickCoordinates(_ context.Context, _ automation.Target) error {
	f.calls = append(f.calls, "coordinate")
	return f.coordErr
}

var errNope = errors.New("nope")

func run(t *testing.T, d driver, tgt automation.Target) error {
	t.Helper()
	return runChain(context.Background(), d, tgt, 50*time.Millisecond, zerolog.Nop())
}

func TestChainSemanticTextFirst(t *testing.T) {
	d := &fakeDriver{}
	err := run(t, d, automation.Target{Text: "AI REPAIR"})
	require.NoError(t, err)
	assert.Equal(t, []string{"text"}, d.calls)
}

func TestChainFallsBackToSelector(t *testing.T) {
	d := &fakeDriver{textErr: errNope}
	err := run(t, d, automation.Target{Text: "AI REPAIR", Selector: ".ant-btn"})
	require.NoError(t, err)
	assert.Equal(t, []string{"text", "selector"}, d.calls)
}

func TestChainFallsThroughToKeyboard(t *testing.T) {
	d := &fakeDriver{textErr: errNope, selectorErr: errNope}
	err := run(t, d, automation.Target{Text: "PROCEED", Selector: ".ant-btn"})
	require.NoError(t, err)
	assert.Equal(t, []string{"text", "selector", "keyboard"}, d.calls)
}

func TestChainCoordinateIsLastResort(t *testing.T) {
	d := &fakeDriver{textErr: errNope, selectorErr: errNope, keyboardErr: errNope}
	err := run(t, d, automation.Target{Text: "PROCEED", Selector: ".ant-btn"})
	require.NoError(t, err)
	assert.Equal(t, []string{"text", "selector", "keyboard", "coordinate"}, d.calls)
}

func TestChainExhausted(t *testing.T) {
	d := &fakeDriver{textErr: errNope, selectorErr: errNope, keyboardErr: errNope, coordErr: errNope}
	err := run(t, d, automation.Target{Text: "PROCEED", Selector: ".ant-btn"})
	require.Error(t, err)
	assert.ErrorIs(t, err, automation.ErrChainExhausted)
	assert.Len(t, d.calls, 4)
}

func TestChainTextOnlyTargetSkipsSelector(t *testing.T) {
	d := &fakeDriver{textErr: errNope}
	err := run(t, d, automation.Target{Text: "TOOL KIT"})
	// semantic fails without trying a selector it does not have
	require.NoError(t, err)
	assert.Equal(t, []string{"text", "keyboard"}, d.calls)
}

func TestChainEmptyTarget(t *testing.T) {
	d := &fakeDriver{keyboardErr: errNope, coordErr: errNope}
	err := run(t, d, automation.Target{})
	assert.ErrorIs(t, err, automation.ErrChainExhausted)
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &fakeDriver{textErr: errNope}
	err := runChain(ctx, d, automation.Target{Text: "X"}, 50*time.Millisecond, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, d.calls)
}
