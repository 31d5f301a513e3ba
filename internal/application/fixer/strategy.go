package fixer

import (
	"context"

	"github.com/pthora/eldwatch/internal/domain/automation"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// FixResult is what a strategy reports back after one execution.
type FixResult struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	DurationMS    int64          `json:"duration_ms"`
	ScreenshotURL string         `json:"screenshot_url,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Strategy fixes one kind of logging error by driving the UI session.
// Execute gets a nil session when NeedsSession() is false.
type Strategy interface {
	Name() string
	// NeedsSession reports whether Execute drives the browser. Session-
	// less strategies can run concurrently, session-bound ones are
	// serialized by the manager's exclusive acquire.
	NeedsSession() bool
	CanHandle(e *detecterrors.DetectedError) bool
	Execute(ctx context.Context, e *detecterrors.DetectedError, sess automation.Session) (FixResult, error)
}
