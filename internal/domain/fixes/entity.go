package fixes

import (
	"time"

	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// ID tipe untuk FixAttempt
type ID string

// Status enum for a fix attempt. Terminal: success, failed, rejected.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusExecuting       Status = "executing"
	StatusSuccess         Status = "success"
	StatusFailed          Status = "failed"
	StatusRejected        Status = "rejected"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusRejected
}

// FixAttempt is one execution (or pending execution) of a correction
// strategy against a DetectedError.
type FixAttempt struct {
	ID               ID                `json:"id"`
	ErrorID          detecterrors.ID   `json:"error_id"`
	Strategy         string            `json:"strategy"`
	Status           Status            `json:"status"`
	RequiresApproval bool              `json:"requires_approval"`
	ApprovedBy       string            `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time        `json:"approved_at,omitempty"`
	ResultMessage    string            `json:"result_message,omitempty"`
	ScreenshotURL    string            `json:"screenshot_url,omitempty"`
	DurationMS       int64             `json:"duration_ms"`
	Retries          int               `json:"retries"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// FixRule is the per-kind policy read by the orchestrator's selection
// logic. Administrative changes happen outside this subsystem.
type FixRule struct {
	Kind       detecterrors.Kind `json:"kind"`
	Enabled    bool              `json:"enabled"`
	AutoFix    bool              `json:"auto_fix"`
	Priority   int               `json:"priority"` // 0-100, higher runs first
	MaxRetries int               `json:"max_retries"`
}

// DefaultRule berlaku kalau belum ada rule tersimpan untuk kind tsb.
func DefaultRule(kind detecterrors.Kind) *FixRule {
	return &FixRule{Kind: kind, Enabled: true, AutoFix: false, Priority: 50, MaxRetries: 3}
}
