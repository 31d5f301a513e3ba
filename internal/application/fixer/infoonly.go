package fixer

import (
	"context"

	"github.com/pthora/eldwatch/internal/domain/automation"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
)

// InfoOnly is the registry fallback: it acknowledges the error without
// doing anything. Success is always false, an untouched error must
// never look fixed. The dispatcher marks these ignored instead of
// recording an attempt.
type InfoOnly struct{}

func NewInfoOnly() *InfoOnly { return &InfoOnly{} }

func (InfoOnly) Name() string { return "info_only" }

func (InfoOnly) NeedsSession() bool { return false }

func (InfoOnly) CanHandle(*detecterrors.DetectedError) bool { return true }

func (InfoOnly) Execute(_ context.Context, e *detecterrors.DetectedError, _ automation.Session) (FixResult, error) {
	return FixResult{
		Success:  false,
		Message:  "no automated correction available for " + string(e.Kind),
		Metadata: map[string]any{"info_only": true},
	}, nil
}
