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

// toolkitCheckboxes: kind → checkbox group di panel TOOL KIT. Satu error
// kind bisa butuh beberapa checkbox sekaligus (power-up dan shutdown
// saling terkait di recorder).
var toolkitCheckboxes = map[detecterrors.Kind][]string{
	detecterrors.KindMissingIntermediate: {
		"FIX INTERMEDIATE",
		"FIX INTERMEDIATE TIME OFFSET",
		"FIX INTERMEDIATE AFTER MAIN",
	},
	detecterrors.KindNoPowerUpError: {
		"FIX NO POWER UP",
		"FIX MISSING POWER UP / SHUT DOWN",
		"FIX NO SHUT DOWN",
	},
	detecterrors.KindNoShutdownError: {
		"FIX NO SHUT DOWN",
		"FIX MISSING POWER UP / SHUT DOWN",
		"FIX NO POWER UP",
	},
	detecterrors.KindTwoIdenticalStatuses: {
		"CLEAR TWIN EVENTS",
	},
	detecterrors.KindDrivingOriginWarning: {
		"FIX EVENT ORIGIN",
	},
}

// ToolkitKinds lists every kind the toolkit flow can repair.
func ToolkitKinds() []detecterrors.Kind {
	out := make([]detecterrors.Kind, 0, len(toolkitCheckboxes))
	for k := range toolkitCheckboxes {
		out = append(out, k)
	}
	return out
}

// ToolkitRepair runs the shared repair panel flow: open the driver's
// log, AI REPAIR → TOOL KIT → CLEAR → tick the kind's checkbox group →
// PROCEED. One strategy instance per kind so registry wiring stays
// explicit.
type ToolkitRepair struct {
	kind detecterrors.Kind
	log  zerolog.Logger
	wait func(ctx context.Context, d time.Duration) // injectable supaya test gak tidur beneran
}

func NewToolkitRepair(kind detecterrors.Kind, log zerolog.Logger) *ToolkitRepair {
	return &ToolkitRepair{
		kind: kind,
		log:  log.With().Str("strategy", "toolkit_repair").Logger(),
		wait: pause,
	}
}

func (t *ToolkitRepair) Name() string { return "toolkit_repair_" + string(t.kind) }

func (t *ToolkitRepair) NeedsSession() bool { return true }

func (t *ToolkitRepair) CanHandle(e *detecterrors.DetectedError) bool {
	return e.Kind == t.kind
}

func (t *ToolkitRepair) Execute(ctx context.Context, e *detecterrors.DetectedError, sess automation.Session) (FixResult, error) {
	start := time.Now()
	boxes := toolkitCheckboxes[t.kind]

	fail := func(step string, err error) (FixResult, error) {
		url, _ := sess.Screenshot(ctx, fmt.Sprintf("toolkit_%s_%s", step, e.ID))
		return FixResult{
			Success:       false,
			Message:       fmt.Sprintf("%s: %v", step, err),
			DurationMS:    time.Since(start).Milliseconds(),
			ScreenshotURL: url,
		}, err
	}

	logURL := fmt.Sprintf("%s/logs/%s", strings.TrimRight(sess.BaseURL(), "/"), logRef(e))
	if err := sess.Navigate(ctx, logURL); err != nil {
		return fail("open_log", err)
	}

	if err := sess.Click(ctx, automation.Target{Text: "AI REPAIR", Selector: ".ant-btn"}); err != nil {
		return fail("ai_repair_button", err)
	}
	t.wait(ctx, 2*time.Second)

	if err := sess.Click(ctx, automation.Target{Text: "TOOL KIT", Selector: ".ant-btn"}); err != nil {
		return fail("toolkit_button", err)
	}
	t.wait(ctx, 2*time.Second)

	// CLEAR dulu supaya default selections gak ikut ke-proceed
	if err := sess.Click(ctx, automation.Target{Text: "CLEAR"}); err != nil {
		t.log.Warn().Err(err).Msg("clear button not found, proceeding with current state")
	}
	t.wait(ctx, 500*time.Millisecond)

	selected := 0
	for _, label := range boxes {
		ok, err := sess.SetChecked(ctx, label)
		if err != nil {
			t.log.Warn().Err(err).Str("checkbox", label).Msg("checkbox select failed")
			continue
		}
		if ok {
			selected++
		} else {
			t.log.Warn().Str("checkbox", label).Msg("checkbox not found")
		}
		t.wait(ctx, 300*time.Millisecond)
	}
	if selected == 0 {
		return fail("select_checkboxes", fmt.Errorf("none of %d checkboxes found", len(boxes)))
	}

	if err := sess.Click(ctx, automation.Target{Text: "PROCEED", Selector: ".ant-btn"}); err != nil {
		return fail("proceed_button", err)
	}
	// repair jalan async di UI
	t.wait(ctx, 5*time.Second)

	url, _ := sess.Screenshot(ctx, fmt.Sprintf("toolkit_done_%s_%s", t.kind, e.ID))
	return FixResult{
		Success:       true,
		Message:       fmt.Sprintf("toolkit repair applied: %s", strings.Join(boxes, ", ")),
		DurationMS:    time.Since(start).Milliseconds(),
		ScreenshotURL: url,
		Metadata: map[string]any{
			"checkboxes": boxes,
			"selected":   selected,
			"kind":       string(t.kind),
		},
	}, nil
}

// logRef picks the identifier the log page is addressed by.
func logRef(e *detecterrors.DetectedError) string {
	if e.LogID != "" {
		return e.LogID
	}
	return e.DriverID
}

// pause sleeps unless the context ends first. UI butuh waktu render
// antar step, tidak ada event yang bisa ditunggu.
func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
