package fixer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pthora/eldwatch/internal/domain/automation"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// ExcessiveEvents removes duplicate login/logout rows from a driver's
// log, keeping the first occurrence. The same flow serves both warning
// kinds, only the row selector differs.
type ExcessiveEvents struct {
	kind     detecterrors.Kind
	rowSel   string
	eventTag string
	log      zerolog.Logger
}

func NewExcessiveLogin(log zerolog.Logger) *ExcessiveEvents {
	return &ExcessiveEvents{
		kind:     detecterrors.KindExcessiveLogIn,
		rowSel:   "tr[data-event-type='login'], .event-login",
		eventTag: "login",
		log:      log.With().Str("strategy", "excessive_login").Logger(),
	}
}

func NewExcessiveLogout(log zerolog.Logger) *ExcessiveEvents {
	return &ExcessiveEvents{
		kind:     detecterrors.KindExcessiveLogOut,
		rowSel:   "tr[data-event-type='logout'], .event-logout",
		eventTag: "logout",
		log:      log.With().Str("strategy", "excessive_logout").Logger(),
	}
}

func (x *ExcessiveEvents) Name() string { return "excessive_" + x.eventTag }

func (x *ExcessiveEvents) NeedsSession() bool { return true }

func (x *ExcessiveEvents) CanHandle(e *detecterrors.DetectedError) bool {
	return e.Kind == x.kind
}

func (x *ExcessiveEvents) Execute(ctx context.Context, e *detecterrors.DetectedError, sess automation.Session) (FixResult, error) {
	start := time.Now()

	logURL := fmt.Sprintf("%s/logs/%s", strings.TrimRight(sess.BaseURL(), "/"), logRef(e))
	if err := sess.Navigate(ctx, logURL); err != nil {
		url, _ := sess.Screenshot(ctx, fmt.Sprintf("excessive_%s_nav_%s", x.eventTag, e.ID))
		return FixResult{
			Message:       fmt.Sprintf("open log: %v", err),
			DurationMS:    time.Since(start).Milliseconds(),
			ScreenshotURL: url,
		}, err
	}

	count, err := sess.Count(ctx, x.rowSel)
	if err != nil {
		return FixResult{
			Message:    fmt.Sprintf("count %s rows: %v", x.eventTag, err),
			DurationMS: time.Since(start).Milliseconds(),
		}, err
	}
	if count <= 1 {
		// sudah bersih, mungkin dibereskan manual
		return FixResult{
			Success:    true,
			Message:    fmt.Sprintf("no excessive %s events found (count=%d)", x.eventTag, count),
			DurationMS: time.Since(start).Milliseconds(),
			Metadata:   map[string]any{"deleted": 0, "found": count},
		}, nil
	}

	deleted := 0
	// keep row 1, delete the rest
	for i := 2; i <= count; i++ {
		del := automation.Target{
			Text:     "Delete",
			Selector: fmt.Sprintf("%s:nth-child(%d) button.delete", firstSelector(x.rowSel), i),
		}
		if err := sess.Click(ctx, del); err != nil {
			x.log.Warn().Err(err).Int("row", i).Msg("delete click failed")
			continue
		}
		// confirm dialog
		if err := sess.Click(ctx, automation.Target{Text: "Confirm"}); err != nil {
			_ = sess.Click(ctx, automation.Target{Text: "Yes"})
		}
		deleted++
		pause(ctx, 500*time.Millisecond)
	}

	url, _ := sess.Screenshot(ctx, fmt.Sprintf("excessive_%s_done_%s", x.eventTag, e.ID))
	if deleted == 0 {
		err := fmt.Errorf("found %d duplicate %s events, deleted none", count-1, x.eventTag)
		return FixResult{
			Message:       err.Error(),
			DurationMS:    time.Since(start).Milliseconds(),
			ScreenshotURL: url,
			Metadata:      map[string]any{"deleted": 0, "found": count},
		}, err
	}
	return FixResult{
		Success:       true,
		Message:       fmt.Sprintf("deleted %d excessive %s events", deleted, x.eventTag),
		DurationMS:    time.Since(start).Milliseconds(),
		ScreenshotURL: url,
		Metadata:      map[string]any{"deleted": deleted, "found": count},
	}, nil
}

// firstSelector drops the comma alternatives so nth-child applies to a
// single selector.
func firstSelector(sel string) string {
	if i := strings.Index(sel, ","); i >= 0 {
		return strings.TrimSpace(sel[:i])
	}
	return sel
}
