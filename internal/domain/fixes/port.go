package fixes

import (
	"context"

	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// Repository port for fix attempts
type Repository interface {
	Save(ctx context.Context, f *FixAttempt) error
	Get(ctx context.Context, id ID) (*FixAttempt, error)
	ListByError(ctx context.Context, errorID detecterrors.ID, limit int) ([]*FixAttempt, error)
	// LatestOpen returns the newest non-terminal attempt for an error,
	// or nil when every attempt has settled.
	LatestOpen(ctx context.Context, errorID detecterrors.ID) (*FixAttempt, error)
	UpdateStatus(ctx context.Context, id ID, status Status) error
	Approve(ctx context.Context, id ID, approver string) error
}

// RuleRepository port for fix rules (read-only input to selection)
type RuleRepository interface {
	Get(ctx context.Context, kind detecterrors.Kind) (*FixRule, error)
	List(ctx context.Context) ([]*FixRule, error)
}
