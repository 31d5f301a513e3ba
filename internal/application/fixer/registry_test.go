package fixer

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthora/eldwatch/internal/domain/automation"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

type stubStrategy struct {
	name    string
	session bool
	result  FixResult
	err     error
}

func (s *stubStrategy) Name() string                                { return s.name }
func (s *stubStrategy) NeedsSession() bool                          { return s.session }
func (s *stubStrategy) CanHandle(*detecterrors.DetectedError) bool  { return true }
func (s *stubStrategy) Execute(context.Context, *detecterrors.DetectedError, automation.Session) (FixResult, error) {
	return s.result, s.err
}

func TestResolveRegisteredKind(t *testing.T) {
	a := &stubStrategy{name: "a"}
	b := &stubStrategy{name: "b"}
	reg := NewBuilder().
		Register(detecterrors.KindNoPowerUpError, a).
		Register(detecterrors.KindNoPowerUpError, b).
		Build(zerolog.Nop())

	got := reg.Resolve(detecterrors.KindNoPowerUpError)
	require.Len(t, got, 2)
	// registration order is execution preference
	assert.Equal(t, "a", got[0].Name())
	assert.Equal(t, "b", got[1].Name())
}

func TestResolveUnregisteredKindGetsFallback(t *testing.T) {
	reg := NewBuilder().Build(zerolog.Nop())

	got := reg.Resolve(detecterrors.KindSequentialIDBreak)
	require.Len(t, got, 1)
	assert.True(t, reg.IsFallback(got[0]))
	assert.Equal(t, "info_only", got[0].Name())
}

func TestRegisteredStrategyIsNotFallback(t *testing.T) {
	a := &stubStrategy{name: "a"}
	reg := NewBuilder().Register(detecterrors.KindNoShutdownError, a).Build(zerolog.Nop())

	got := reg.Resolve(detecterrors.KindNoShutdownError)
	assert.False(t, reg.IsFallback(got[0]))
}

func TestInfoOnlyNeverClaimsSuccess(t *testing.T) {
	s := NewInfoOnly()
	res, err := s.Execute(context.Background(), &detecterrors.DetectedError{
		Kind: detecterrors.KindSequentialIDBreak,
	}, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, s.NeedsSession())
}

func TestDefaultBuilderCoversRepairableKinds(t *testing.T) {
	reg := DefaultBuilder(nil, nil, zerolog.Nop()).Build(zerolog.Nop())

	for _, kind := range []detecterrors.Kind{
		detecterrors.KindMissingIntermediate,
		detecterrors.KindNoPowerUpError,
		detecterrors.KindNoShutdownError,
		detecterrors.KindTwoIdenticalStatuses,
		detecterrors.KindDrivingOriginWarning,
		detecterrors.KindExcessiveLogIn,
		detecterrors.KindExcessiveLogOut,
	} {
		got := reg.Resolve(kind)
		require.NotEmpty(t, got, "kind %s", kind)
		assert.False(t, reg.IsFallback(got[0]), "kind %s should not fall back", kind)
		assert.True(t, got[0].NeedsSession(), "kind %s drives the browser", kind)
	}
}

func TestRegisterFirstLayersLogReview(t *testing.T) {
	kind := detecterrors.KindNoPowerUpError
	reg := DefaultBuilder(nil, nil, zerolog.Nop()).
		RegisterFirst(kind, NewLogReview(kind, zerolog.Nop())).
		Build(zerolog.Nop())

	got := reg.Resolve(kind)
	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, "log_review", got[0].Name())
	assert.True(t, got[0].CanHandle(&detecterrors.DetectedError{Kind: kind}))
	assert.False(t, got[0].CanHandle(&detecterrors.DetectedError{Kind: detecterrors.KindOdometerError}))
}

type stubAdvisor struct{ advice string }

func (s *stubAdvisor) Advise(context.Context, *detecterrors.DetectedError) (string, error) {
	return s.advice, nil
}

func TestDefaultBuilderRoutesUnknownToAdvisor(t *testing.T) {
	reg := DefaultBuilder(&stubAdvisor{advice: "check the log"}, nil, zerolog.Nop()).Build(zerolog.Nop())

	got := reg.Resolve(detecterrors.KindUnknown)
	require.NotEmpty(t, got)
	assert.False(t, reg.IsFallback(got[0]), "unknown kinds must reach the advisor, not the fallback")
	assert.Equal(t, "advice", got[0].Name())
	assert.False(t, got[0].NeedsSession())
}

func TestDefaultBuilderWithoutAdvisorFallsBackForUnknown(t *testing.T) {
	reg := DefaultBuilder(nil, nil, zerolog.Nop()).Build(zerolog.Nop())

	got := reg.Resolve(detecterrors.KindUnknown)
	require.Len(t, got, 1)
	assert.True(t, reg.IsFallback(got[0]))
}

func TestToolkitStrategiesHandleOnlyTheirKind(t *testing.T) {
	s := NewToolkitRepair(detecterrors.KindNoPowerUpError, zerolog.Nop())
	assert.True(t, s.CanHandle(&detecterrors.DetectedError{Kind: detecterrors.KindNoPowerUpError}))
	assert.False(t, s.CanHandle(&detecterrors.DetectedError{Kind: detecterrors.KindNoShutdownError}))
}

func TestToolkitCheckboxGroups(t *testing.T) {
	assert.ElementsMatch(t, []string{
		"FIX INTERMEDIATE", "FIX INTERMEDIATE TIME OFFSET", "FIX INTERMEDIATE AFTER MAIN",
	}, toolkitCheckboxes[detecterrors.KindMissingIntermediate])
	assert.Equal(t, []string{"CLEAR TWIN EVENTS"},
		toolkitCheckboxes[detecterrors.KindTwoIdenticalStatuses])
	assert.Len(t, toolkitCheckboxes, 5)
}
