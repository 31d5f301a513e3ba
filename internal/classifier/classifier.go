package classifier

import (
	"strings"

	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// StrategyType says how a classified error can be handled.
type StrategyType string

const (
	// StrategyInfoOnly: surface the error, no fix exists.
	StrategyInfoOnly StrategyType = "info_only"
	// StrategyToolkitRepair: fixable through the Fortex AI REPAIR panel.
	StrategyToolkitRepair StrategyType = "ai_repair"
	// StrategyCustom: needs our own UI interaction sequence.
	StrategyCustom StrategyType = "custom"
	// StrategyManualReview: unrecognized, flag for a human.
	StrategyManualReview StrategyType = "manual_review"
)

// Classification is the structured result of classify.
type Classification struct {
	Kind     detecterrors.Kind
	Name     string
	Category detecterrors.Category
	Severity detecterrors.Severity
	Strategy StrategyType
}

type matchFunc func(normalized string) bool

type rule struct {
	name     string
	kind     detecterrors.Kind
	match    matchFunc
	category detecterrors.Category
	severity detecterrors.Severity
	strategy StrategyType
}

func exact(want string) matchFunc {
	return func(msg string) bool { return msg == want }
}

func prefix(want string) matchFunc {
	return func(msg string) bool { return strings.HasPrefix(msg, want) }
}

// rules is evaluated in order, first match wins. Exact-match rules come
// before the prefix rules so the speed prefixes cannot shadow anything.
// Obsolete Fortex kinds (diagnosticEvent, eventHasManualLocation,
// unidentifiedDriverEvent) are intentionally absent.
var rules = []rule{
	// info only - tampilkan sebagai error tapi tidak ada fix
	{"SEQUENTIAL ID BREAK WARNING", detecterrors.KindSequentialIDBreak,
		exact("SEQUENTIAL ID BREAK WARNING"),
		detecterrors.CategoryDataIntegrity, detecterrors.SeverityCritical, StrategyInfoOnly},
	{"ENGINE HOURS HAVE CHANGED AFTER SHUT DOWN WARNING", detecterrors.KindEngineHoursAfterShutdown,
		exact("ENGINE HOURS HAVE CHANGED AFTER SHUT DOWN WARNING"),
		detecterrors.CategoryDataIntegrity, detecterrors.SeverityHigh, StrategyInfoOnly},
	{"EVENT IS NOT DOWNLOADED", detecterrors.KindEventNotDownloaded,
		exact("EVENT IS NOT DOWNLOADED"),
		detecterrors.CategoryAuthentication, detecterrors.SeverityLow, StrategyInfoOnly},

	// fixable via the AI REPAIR toolkit
	{"NO POWER UP ERROR", detecterrors.KindNoPowerUpError,
		exact("NO POWER UP ERROR"),
		detecterrors.CategoryDiagnostic, detecterrors.SeverityLow, StrategyToolkitRepair},
	{"TWO IDENTICAL STATUSES ERROR", detecterrors.KindTwoIdenticalStatuses,
		exact("TWO IDENTICAL STATUSES ERROR"),
		detecterrors.CategoryStatusEvent, detecterrors.SeverityMedium, StrategyToolkitRepair},
	{"DRIVING ORIGIN WARNING", detecterrors.KindDrivingOriginWarning,
		exact("DRIVING ORIGIN WARNING"),
		detecterrors.CategoryLocationMovement, detecterrors.SeverityMedium, StrategyToolkitRepair},
	{"MISSING INTERMEDIATE ERROR", detecterrors.KindMissingIntermediate,
		exact("MISSING INTERMEDIATE ERROR"),
		detecterrors.CategoryStatusEvent, detecterrors.SeverityMedium, StrategyToolkitRepair},
	{"NO SHUT DOWN ERROR", detecterrors.KindNoShutdownError,
		exact("NO SHUT DOWN ERROR"),
		detecterrors.CategoryDiagnostic, detecterrors.SeverityLow, StrategyToolkitRepair},

	// custom UI sequences
	{"ODOMETER ERROR", detecterrors.KindOdometerError,
		exact("ODOMETER ERROR"),
		detecterrors.CategoryDataIntegrity, detecterrors.SeverityHigh, StrategyCustom},
	{"LOCATION CHANGED ERROR", detecterrors.KindLocationChanged,
		exact("LOCATION CHANGED ERROR"),
		detecterrors.CategoryLocationMovement, detecterrors.SeverityHigh, StrategyCustom},
	{"INCORRECT INTERMEDIATE PLACEMENT ERROR", detecterrors.KindIncorrectIntermediate,
		exact("INCORRECT INTERMEDIATE PLACEMENT ERROR"),
		detecterrors.CategoryStatusEvent, detecterrors.SeverityMedium, StrategyCustom},
	{"ENGINE HOURS WARNING", detecterrors.KindEngineHoursWarning,
		exact("ENGINE HOURS WARNING"),
		detecterrors.CategoryDataIntegrity, detecterrors.SeverityMedium, StrategyCustom},
	{"EXCESSIVE LOG IN WARNING", detecterrors.KindExcessiveLogIn,
		exact("EXCESSIVE LOG IN WARNING"),
		detecterrors.CategoryAuthentication, detecterrors.SeverityLow, StrategyCustom},
	{"EXCESSIVE LOG OUT WARNING", detecterrors.KindExcessiveLogOut,
		exact("EXCESSIVE LOG OUT WARNING"),
		detecterrors.CategoryAuthentication, detecterrors.SeverityLow, StrategyCustom},
	{"NO DATA IN ODOMETER OR ENGINE HOURS ERROR", detecterrors.KindNoOdometerData,
		exact("NO DATA IN ODOMETER OR ENGINE HOURS ERROR"),
		detecterrors.CategoryDataIntegrity, detecterrors.SeverityCritical, StrategyCustom},
	{"LOCATION ERROR", detecterrors.KindLocationError,
		exact("LOCATION ERROR"),
		detecterrors.CategoryLocationMovement, detecterrors.SeverityHigh, StrategyCustom},
	{"LOCATION DID NOT CHANGE WARNING", detecterrors.KindLocationDidNotChange,
		exact("LOCATION DID NOT CHANGE WARNING"),
		detecterrors.CategoryLocationMovement, detecterrors.SeverityMedium, StrategyCustom},
	{"INCORRECT STATUS PLACEMENT ERROR", detecterrors.KindIncorrectStatusPlacement,
		exact("INCORRECT STATUS PLACEMENT ERROR"),
		detecterrors.CategoryStatusEvent, detecterrors.SeverityHigh, StrategyCustom},

	// speed warnings carry the limit in the message, so prefix matching;
	// these must stay after every exact rule
	{"THE SPEED WAS MUCH HIGHER THAN THE SPEED LIMIT IN", detecterrors.KindSpeedMuchHigher,
		prefix("THE SPEED WAS MUCH HIGHER THAN THE SPEED LIMIT IN"),
		detecterrors.CategorySpeed, detecterrors.SeverityHigh, StrategyCustom},
	{"THE SPEED WAS HIGHER THAN THE SPEED", detecterrors.KindSpeedHigher,
		prefix("THE SPEED WAS HIGHER THAN THE SPEED"),
		detecterrors.CategorySpeed, detecterrors.SeverityMedium, StrategyCustom},
}

// unknown is returned for empty or unmatched messages. Classification
// never fails; low-confidence input is flagged for manual review.
var unknown = Classification{
	Kind:     detecterrors.KindUnknown,
	Name:     "UNRECOGNIZED ERROR",
	Category: detecterrors.CategoryUnknown,
	Severity: detecterrors.SeverityMedium,
	Strategy: StrategyManualReview,
}

// Classify maps a raw error message to its classification. Pure function:
// identical input selalu menghasilkan output identik.
func Classify(message string) Classification {
	normalized := strings.ToUpper(strings.TrimSpace(message))
	if normalized == "" {
		return unknown
	}
	for _, r := range rules {
		if r.match(normalized) {
			return Classification{
				Kind:     r.kind,
				Name:     r.name,
				Category: r.category,
				Severity: r.severity,
				Strategy: r.strategy,
			}
		}
	}
	return unknown
}

// Kinds returns every kind the rule table can produce, in rule order.
func Kinds() []detecterrors.Kind {
	out := make([]detecterrors.Kind, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.kind)
	}
	return out
}

// KindsByStrategy filters the rule table by strategy type.
func KindsByStrategy(st StrategyType) []detecterrors.Kind {
	var out []detecterrors.Kind
	for _, r := range rules {
		if r.strategy == st {
			out = append(out, r.kind)
		}
	}
	return out
}
