package fixer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pthora/eldwatch/internal/domain/automation"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// LogReview is a read-only walk of the driver's log page: dashboard →
// drivers list → search driver → open logs, screenshotting each step.
// It never changes anything; useful for verifying the session and the
// page structure against a live tenant before enabling real repairs.
type LogReview struct {
	kind detecterrors.Kind
	log  zerolog.Logger
}

func NewLogReview(kind detecterrors.Kind, log zerolog.Logger) *LogReview {
	return &LogReview{kind: kind, log: log.With().Str("strategy", "log_review").Logger()}
}

func (r *LogReview) Name() string { return "log_review" }

func (r *LogReview) NeedsSession() bool { return true }

func (r *LogReview) CanHandle(e *detecterrors.DetectedError) bool {
	return e.Kind == r.kind
}

func (r *LogReview) Execute(ctx context.Context, e *detecterrors.DetectedError, sess automation.Session) (FixResult, error) {
	start := time.Now()
	shots := []string{}
	snap := func(step string) {
		if url, err := sess.Screenshot(ctx, fmt.Sprintf("review_%s_%s", step, e.ID)); err == nil && url != "" {
			shots = append(shots, url)
		}
	}

	if err := sess.Navigate(ctx, sess.BaseURL()); err != nil {
		return FixResult{Message: fmt.Sprintf("open dashboard: %v", err),
			DurationMS: time.Since(start).Milliseconds()}, err
	}
	snap("dashboard")

	if err := sess.Click(ctx, automation.Target{Text: "Drivers", Selector: "a[href*='driver']"}); err != nil {
		snap("no_drivers_menu")
		return FixResult{Message: fmt.Sprintf("drivers menu: %v", err),
			DurationMS: time.Since(start).Milliseconds()}, err
	}
	pause(ctx, 2*time.Second)
	snap("drivers_list")

	query := e.DriverName
	if query == "" {
		query = e.DriverID
	}
	if err := sess.Fill(ctx, "input[type='search'], input[placeholder*='earch']", query); err != nil {
		r.log.Warn().Err(err).Msg("driver search box not found, scanning full list")
	}
	pause(ctx, 1500*time.Millisecond)
	snap("search_results")

	if err := sess.Click(ctx, automation.Target{Text: query, Selector: "table tbody tr"}); err != nil {
		snap("driver_not_found")
		return FixResult{Message: fmt.Sprintf("driver row: %v", err),
			DurationMS: time.Since(start).Milliseconds()}, err
	}
	pause(ctx, 2*time.Second)

	if err := sess.Click(ctx, automation.Target{Text: "Logs", Selector: "a[href*='log']"}); err != nil {
		r.log.Warn().Err(err).Msg("logs button not found, staying on driver page")
	}
	pause(ctx, 2*time.Second)
	snap("logs_page")

	last := ""
	if len(shots) > 0 {
		last = shots[len(shots)-1]
	}
	return FixResult{
		Success:       true,
		Message:       fmt.Sprintf("log review walk completed for driver %s", query),
		DurationMS:    time.Since(start).Milliseconds(),
		ScreenshotURL: last,
		Metadata:      map[string]any{"screenshots": shots, "read_only": true},
	}, nil
}
