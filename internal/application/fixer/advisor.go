package fixer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pthora/eldwatch/internal/domain/automation"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// Advisor produces a human-readable correction recommendation for an
// error that cannot be repaired automatically.
type Advisor interface {
	Advise(ctx context.Context, e *detecterrors.DetectedError) (string, error)
}

// AdviceStrategy is session-less: it asks the advisor for a
// recommendation and stores it on the error for the manual reviewer.
// Because it never touches the browser it can run in parallel with a
// session-bound fix.
type AdviceStrategy struct {
	advisor Advisor
	repo    detecterrors.Repository
	log     zerolog.Logger
}

func NewAdviceStrategy(advisor Advisor, repo detecterrors.Repository, log zerolog.Logger) *AdviceStrategy {
	return &AdviceStrategy{
		advisor: advisor,
		repo:    repo,
		log:     log.With().Str("strategy", "advice").Logger(),
	}
}

func (a *AdviceStrategy) Name() string { return "advice" }

func (a *AdviceStrategy) NeedsSession() bool { return false }

func (a *AdviceStrategy) CanHandle(e *detecterrors.DetectedError) bool {
	return a.advisor != nil
}

func (a *AdviceStrategy) Execute(ctx context.Context, e *detecterrors.DetectedError, _ automation.Session) (FixResult, error) {
	start := time.Now()

	advice, err := a.advisor.Advise(ctx, e)
	if err != nil {
		return FixResult{
			Message:    "advisor failed: " + err.Error(),
			DurationMS: time.Since(start).Milliseconds(),
		}, err
	}
	if err := a.repo.UpdateAdvice(ctx, e.ID, advice); err != nil {
		return FixResult{
			Message:    "could not store advice: " + err.Error(),
			DurationMS: time.Since(start).Milliseconds(),
		}, err
	}

	a.log.Info().Str("error_id", string(e.ID)).Msg("advice recorded for manual review")
	return FixResult{
		Success:    true,
		Message:    "recommendation recorded, manual review required",
		DurationMS: time.Since(start).Milliseconds(),
		Metadata:   map[string]any{"advice": advice, "manual_review": true},
	}, nil
}
