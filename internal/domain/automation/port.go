package automation

import (
	"context"
	"errors"
	"time"
)

// ErrSessionInvalid: login expired or rejected. The manager re-logins on
// the next acquisition; if that re-login fails the agent must stop.
var ErrSessionInvalid = errors.New("automation: session invalid")

// ErrChainExhausted: every interaction strategy in the fallback chain
// failed for the target element.
var ErrChainExhausted = errors.New("automation: interaction chain exhausted")

// ErrWindowTimeout: no spawned window matched the predicate in time.
var ErrWindowTimeout = errors.New("automation: window wait timed out")

// Target describes a UI element for the resilient action chain. Text is
// the visible label (semantic lookup); Selector is a CSS fallback. The
// chain decides how to reach it, the caller only says what.
type Target struct {
	Text     string
	Selector string
}

// Window is a spawned tab/window captured as a side effect of an action.
type Window struct {
	TargetID string
	URL      string
}

// WindowPredicate selects the spawned window to capture, by URL.
type WindowPredicate func(url string) bool

// Manager owns the single authenticated automation session.
type Manager interface {
	// Start establishes the session: reuse persisted state when valid,
	// otherwise interactive login. Failure here is fatal for agent start.
	Start(ctx context.Context) error
	// Acquire takes exclusive use of the session for one strategy
	// execution and re-validates login state. Callers must Release the
	// returned session on every exit path.
	Acquire(ctx context.Context) (Session, error)
	Close(ctx context.Context) error
}

// Session is the exclusive handle strategies interact through.
type Session interface {
	BaseURL() string
	Navigate(ctx context.Context, url string) error
	// Click drives the resilient action chain: semantic locator, then
	// keyboard navigation, then coordinate click, bounded per strategy.
	Click(ctx context.Context, t Target) error
	// SetChecked checks the checkbox with the given visible label.
	// Returns false when no such checkbox exists.
	SetChecked(ctx context.Context, label string) (bool, error)
	Count(ctx context.Context, selector string) (int, error)
	Fill(ctx context.Context, selector, value string) error
	Text(ctx context.Context, selector string) (string, error)
	// WaitForWindow resolves with the first spawned window matching the
	// predicate, or ErrWindowTimeout. Cancelling ctx cancels the wait.
	WaitForWindow(ctx context.Context, timeout time.Duration, pred WindowPredicate) (*Window, error)
	// Screenshot captures the page and stores it via the diagnostics
	// store, returning the stored URL.
	Screenshot(ctx context.Context, name string) (string, error)
	// Release returns the session to baseline: closes secondary tabs and
	// navigates back to the dashboard. Must be called exactly once.
	Release()
}
