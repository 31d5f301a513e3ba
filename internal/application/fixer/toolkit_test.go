package fixer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthora/eldwatch/internal/domain/automation"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// fakeSession records interactions and lets tests script failures.
type fakeSession struct {
	baseURL    string
	navigated  []string
	clicked    []string
	checked    []string
	filled     map[string]string
	counts     map[string]int
	clickFails map[string]error // keyed by Target.Text
	checkedOK  map[string]bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		baseURL:    "https://ui.example.com",
		filled:     map[string]string{},
		counts:     map[string]int{},
		clickFails: map[string]error{},
		checkedOK:  map[string]bool{},
	}
}

func (f *fakeSession) BaseURL() string { return f.baseURL }

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeSession) Click(_ context.Context, t automation.Target) error {
	f.clicked = append(f.clicked, t.Text)
	if err, ok := f.clickFails[t.Text]; ok {
		return err
	}
	return nil
}

func (f *fakeSession) SetChecked(_ context.Context, label string) (bool, error) {
	ok, known := f.checkedOK[label]
	if !known {
		ok = true
	}
	if ok {
		f.checked = append(f.checked, label)
	}
	return ok, nil
}

func (f *fakeSession) Count(_ context.Context, selector string) (int, error) {
	return f.counts[selector], nil
}

func (f *fakeSession) Fill(_ context.Context, selector, value string) error {
	f.filled[selector] = value
	return nil
}

func (f *fakeSession) Text(context.Context, string) (string, error) { return "", nil }

func (f *fakeSession) WaitForWindow(context.Context, time.Duration, automation.WindowPredicate) (*automation.Window, error) {
	return nil, automation.ErrWindowTimeout
}

func (f *fakeSession) Screenshot(_ context.Context, name string) (string, error) {
	return "https://artifacts.example.com/" + name + ".png", nil
}

func (f *fakeSession) Release() {}

func newToolkit(kind detecterrors.Kind) *ToolkitRepair {
	s := NewToolkitRepair(kind, zerolog.Nop())
	s.wait = func(context.Context, time.Duration) {}
	return s
}

func testError(kind detecterrors.Kind) *detecterrors.DetectedError {
	return &detecterrors.DetectedError{
		ID:       "err-1",
		LogID:    "log-9",
		DriverID: "drv-7",
		Kind:     kind,
	}
}

func TestToolkitRepairHappyPath(t *testing.T) {
	sess := newFakeSession()
	s := newToolkit(detecterrors.KindTwoIdenticalStatuses)

	res, err := s.Execute(context.Background(), testError(detecterrors.KindTwoIdenticalStatuses), sess)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"AI REPAIR", "TOOL KIT", "CLEAR", "PROCEED"}, sess.clicked)
	assert.Equal(t, []string{"CLEAR TWIN EVENTS"}, sess.checked)
	assert.Equal(t, []string{"https://ui.example.com/logs/log-9"}, sess.navigated)
	assert.NotEmpty(t, res.ScreenshotURL)
	assert.GreaterOrEqual(t, res.DurationMS, int64(0))
}

func TestToolkitRepairFailsWhenPanelMissing(t *testing.T) {
	sess := newFakeSession()
	sess.clickFails["AI REPAIR"] = errors.New("button not found")
	s := newToolkit(detecterrors.KindNoPowerUpError)

	res, err := s.Execute(context.Background(), testError(detecterrors.KindNoPowerUpError), sess)
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "ai_repair_button")
	assert.NotEmpty(t, res.ScreenshotURL) // diagnostics on failure
	assert.Empty(t, sess.checked)
}

func TestToolkitRepairFailsWhenNoCheckboxFound(t *testing.T) {
	sess := newFakeSession()
	sess.checkedOK["CLEAR TWIN EVENTS"] = false
	s := newToolkit(detecterrors.KindTwoIdenticalStatuses)

	res, err := s.Execute(context.Background(), testError(detecterrors.KindTwoIdenticalStatuses), sess)
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "select_checkboxes")
}

func TestToolkitRepairToleratesMissingClearButton(t *testing.T) {
	sess := newFakeSession()
	sess.clickFails["CLEAR"] = errors.New("not found")
	s := newToolkit(detecterrors.KindDrivingOriginWarning)

	res, err := s.Execute(context.Background(), testError(detecterrors.KindDrivingOriginWarning), sess)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"FIX EVENT ORIGIN"}, sess.checked)
}

func TestToolkitRepairAddressesDriverWhenLogMissing(t *testing.T) {
	sess := newFakeSession()
	s := newToolkit(detecterrors.KindDrivingOriginWarning)

	e := testError(detecterrors.KindDrivingOriginWarning)
	e.LogID = ""
	_, err := s.Execute(context.Background(), e, sess)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://ui.example.com/logs/drv-7"}, sess.navigated)
}

func TestExcessiveLoginDeletesDuplicates(t *testing.T) {
	sess := newFakeSession()
	sess.counts["tr[data-event-type='login'], .event-login"] = 3
	s := NewExcessiveLogin(zerolog.Nop())

	res, err := s.Execute(context.Background(), testError(detecterrors.KindExcessiveLogIn), sess)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Metadata["deleted"])
}

func TestExcessiveLoginNothingToDelete(t *testing.T) {
	sess := newFakeSession()
	sess.counts["tr[data-event-type='login'], .event-login"] = 1
	s := NewExcessiveLogin(zerolog.Nop())

	res, err := s.Execute(context.Background(), testError(detecterrors.KindExcessiveLogIn), sess)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.Metadata["deleted"])
	assert.Empty(t, sess.clicked)
}
