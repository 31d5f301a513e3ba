package detecterrors

import (
	"time"
)

// ID tipe untuk DetectedError
type ID string

// Kind is the closed set of error kinds the classifier can produce.
// Dispatch tables are keyed on Kind so a missing entry is visible at
// registry build time, not at runtime.
type Kind string

const (
	KindSequentialIDBreak        Kind = "sequentialIdBreak"
	KindEngineHoursAfterShutdown Kind = "engineHoursAfterShutdown"
	KindEventNotDownloaded       Kind = "eventIsNotDownloaded"
	KindNoPowerUpError           Kind = "noPowerUpError"
	KindTwoIdenticalStatuses     Kind = "twoIdenticalStatusesError"
	KindDrivingOriginWarning     Kind = "drivingOriginWarning"
	KindMissingIntermediate      Kind = "missingIntermediateError"
	KindNoShutdownError          Kind = "noShutdownError"
	KindOdometerError            Kind = "odometerError"
	KindLocationChanged          Kind = "locationChangedError"
	KindIncorrectIntermediate    Kind = "incorrectIntermediatePlacementError"
	KindEngineHoursWarning       Kind = "engineHoursWarning"
	KindExcessiveLogIn           Kind = "excessiveLogInWarning"
	KindExcessiveLogOut          Kind = "excessiveLogOutWarning"
	KindNoOdometerData           Kind = "noDataInOdometerOrEngineHours"
	KindLocationError            Kind = "locationError"
	KindLocationDidNotChange     Kind = "locationDidNotChangeWarning"
	KindIncorrectStatusPlacement Kind = "incorrectStatusPlacementError"
	KindSpeedMuchHigher          Kind = "speedMuchHigherThanLimit"
	KindSpeedHigher              Kind = "speedHigherThanLimit"
	KindUnknown                  Kind = "unknown"
)

// Severity enum
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// rank dipakai untuk ordering saat seleksi kandidat
var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

func (s Severity) Rank() int { return severityRank[s] }

// Category enum
type Category string

const (
	CategoryDataIntegrity    Category = "data_integrity"
	CategoryLocationMovement Category = "location_movement"
	CategoryStatusEvent      Category = "status_event"
	CategoryDiagnostic       Category = "diagnostic"
	CategorySpeed            Category = "speed"
	CategoryAuthentication   Category = "authentication"
	CategoryUnknown          Category = "unknown"
)

// Status enum for the error lifecycle
type Status string

const (
	StatusPending Status = "pending"
	StatusFixing  Status = "fixing"
	StatusFixed   Status = "fixed"
	StatusFailed  Status = "failed"
	StatusIgnored Status = "ignored"
)

// Aggregate Root: DetectedError
type DetectedError struct {
	ID           ID             `json:"id"`
	LogID        string         `json:"log_id,omitempty"`
	EventID      string         `json:"event_id,omitempty"`
	DriverID     string         `json:"driver_id"`
	DriverName   string         `json:"driver_name,omitempty"`
	CompanyID    string         `json:"company_id"`
	CompanyName  string         `json:"company_name,omitempty"`
	Kind         Kind           `json:"kind"`
	Name         string         `json:"name"`
	Message      string         `json:"message"`
	Severity     Severity       `json:"severity"`
	Category     Category       `json:"category"`
	Status       Status         `json:"status"`
	Advice       string         `json:"advice,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	DiscoveredAt time.Time      `json:"discovered_at"`
	FixedAt      *time.Time     `json:"fixed_at,omitempty"`
}
