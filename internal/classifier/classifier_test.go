package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

func TestClassifyKnownMessages(t *testing.T) {
	cases := []struct {
		message  string
		kind     detecterrors.Kind
		severity detecterrors.Severity
		strategy StrategyType
	}{
		{"NO SHUT DOWN ERROR", detecterrors.KindNoShutdownError, detecterrors.SeverityLow, StrategyToolkitRepair},
		{"NO POWER UP ERROR", detecterrors.KindNoPowerUpError, detecterrors.SeverityLow, StrategyToolkitRepair},
		{"TWO IDENTICAL STATUSES ERROR", detecterrors.KindTwoIdenticalStatuses, detecterrors.SeverityMedium, StrategyToolkitRepair},
		{"SEQUENTIAL ID BREAK WARNING", detecterrors.KindSequentialIDBreak, detecterrors.SeverityCritical, StrategyInfoOnly},
		{"EXCESSIVE LOG IN WARNING", detecterrors.KindExcessiveLogIn, detecterrors.SeverityLow, StrategyCustom},
		{"NO DATA IN ODOMETER OR ENGINE HOURS ERROR", detecterrors.KindNoOdometerData, detecterrors.SeverityCritical, StrategyCustom},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			c := Classify(tc.message)
			assert.Equal(t, tc.kind, c.Kind)
			assert.Equal(t, tc.severity, c.Severity)
			assert.Equal(t, tc.strategy, c.Strategy)
		})
	}
}

func TestClassifyNormalizesWhitespaceAndCase(t *testing.T) {
	c := Classify("  no shut down error  ")
	assert.Equal(t, detecterrors.KindNoShutdownError, c.Kind)
	assert.Equal(t, detecterrors.SeverityLow, c.Severity)
}

func TestClassifyPrefixRules(t *testing.T) {
	c := Classify("THE SPEED WAS MUCH HIGHER THAN THE SPEED LIMIT IN TX (82 > 70)")
	assert.Equal(t, detecterrors.KindSpeedMuchHigher, c.Kind)
	assert.Equal(t, detecterrors.SeverityHigh, c.Severity)

	// the weaker prefix must not shadow the stronger one
	c = Classify("THE SPEED WAS HIGHER THAN THE SPEED LIMIT (64 > 60)")
	assert.Equal(t, detecterrors.KindSpeedHigher, c.Kind)
}

func TestClassifyUnmatchedReturnsUnknown(t *testing.T) {
	for _, msg := range []string{"", "   ", "SOMETHING NEVER SEEN BEFORE", "NO SHUT DOWN"} {
		c := Classify(msg)
		assert.Equal(t, detecterrors.KindUnknown, c.Kind, "message %q", msg)
		assert.Equal(t, detecterrors.SeverityMedium, c.Severity)
		assert.Equal(t, StrategyManualReview, c.Strategy)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	first := Classify("DRIVING ORIGIN WARNING")
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Classify("DRIVING ORIGIN WARNING"))
	}
}

func TestObsoleteKindsAreNotClassified(t *testing.T) {
	for _, msg := range []string{"DIAGNOSTIC EVENT", "EVENT HAS MANUAL LOCATION", "UNIDENTIFIED DRIVER EVENT"} {
		c := Classify(msg)
		assert.Equal(t, detecterrors.KindUnknown, c.Kind, "obsolete kind %q must fall through", msg)
	}
}

func TestKindsByStrategy(t *testing.T) {
	repair := KindsByStrategy(StrategyToolkitRepair)
	require.Len(t, repair, 5)
	assert.Contains(t, repair, detecterrors.KindNoShutdownError)
	assert.Contains(t, repair, detecterrors.KindDrivingOriginWarning)

	info := KindsByStrategy(StrategyInfoOnly)
	require.Len(t, info, 3)
}
