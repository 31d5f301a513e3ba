package agent

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/pthora/eldwatch/internal/application/fixer"
	"github.com/pthora/eldwatch/internal/application/progress"
	"github.com/pthora/eldwatch/internal/domain/agentstate"
	"github.com/pthora/eldwatch/internal/domain/automation"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
	"github.com/pthora/eldwatch/internal/domain/events"
	"github.com/pthora/eldwatch/internal/domain/fixes"
)

const pendingBatch = 50

// dispatch selects pending errors, applies rule and approval gates and
// runs the attempts under the concurrency bound. It returns after every
// attempt it launched has settled (gather semantics).
func (s *Service) dispatch(ctx context.Context, cfg *agentstate.Configuration) {
	s.pruneFinishedRuns()

	pending, err := s.Errors.ListPending(ctx, pendingBatch)
	if err != nil {
		s.Log.Error().Err(err).Msg("could not list pending errors")
		return
	}
	if len(pending) == 0 {
		return
	}

	type item struct {
		err  *detecterrors.DetectedError
		rule *fixes.FixRule
	}
	items := make([]item, 0, len(pending))
	for _, e := range pending {
		rule := s.ruleFor(ctx, e.Kind)
		if !rule.Enabled {
			continue
		}
		items = append(items, item{err: e, rule: rule})
	}
	// higher priority first; stable keeps discovery order within a tier
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].rule.Priority > items[j].rule.Priority
	})

	workers := cfg.MaxConcurrentFixes
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))

	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		attempt, strategy, ok := s.prepareAttempt(ctx, cfg, it.err, it.rule)
		if !ok {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		s.inflight.Add(1)
		go func(e *detecterrors.DetectedError, rule *fixes.FixRule, st fixer.Strategy, att *fixes.FixAttempt) {
			defer s.inflight.Done()
			defer sem.Release(1)
			s.executeAttempt(ctx, cfg, e, rule, st, att)
		}(it.err, it.rule, strategy, attempt)
	}

	// gather: wait for this cycle's attempts before the next poll
	if err := sem.Acquire(ctx, int64(workers)); err == nil {
		sem.Release(int64(workers))
	}
}

// pruneFinishedRuns drops terminal progress entries from earlier cycles
// so the tracker stays bounded.
func (s *Service) pruneFinishedRuns() {
	if s.Tracker == nil {
		return
	}
	for _, r := range s.Tracker.List() {
		if r.Phase.Terminal() && time.Since(r.UpdatedAt) > time.Hour {
			s.Tracker.Remove(r.RunID)
		}
	}
}

func (s *Service) ruleFor(ctx context.Context, kind detecterrors.Kind) *fixes.FixRule {
	if s.Rules == nil {
		return fixes.DefaultRule(kind)
	}
	rule, err := s.Rules.Get(ctx, kind)
	if err != nil || rule == nil {
		return fixes.DefaultRule(kind)
	}
	return rule
}

// prepareAttempt resolves the strategy and the approval gate for one
// error. ok=false means nothing to execute this cycle: fallback kinds
// are marked ignored, held attempts keep waiting for approval.
func (s *Service) prepareAttempt(ctx context.Context, cfg *agentstate.Configuration, e *detecterrors.DetectedError, rule *fixes.FixRule) (*fixes.FixAttempt, fixer.Strategy, bool) {
	strategy := s.resolveStrategy(e)
	if strategy == nil || s.Registry.IsFallback(strategy) {
		// nothing can fix this kind: record the decision, no attempt row
		if err := s.Errors.UpdateStatus(ctx, e.ID, detecterrors.StatusIgnored); err != nil {
			s.Log.Warn().Err(err).Str("error_id", string(e.ID)).Msg("could not mark error ignored")
		}
		s.Log.Info().Str("kind", string(e.Kind)).Str("error_id", string(e.ID)).
			Msg("no strategy registered, error ignored")
		return nil, nil, false
	}

	open, err := s.Fixes.LatestOpen(ctx, e.ID)
	if err != nil {
		s.Log.Warn().Err(err).Str("error_id", string(e.ID)).Msg("could not check open attempts")
		return nil, nil, false
	}
	if open != nil {
		switch open.Status {
		case fixes.StatusPendingApproval:
			return nil, nil, false // still held
		case fixes.StatusApproved:
			return open, strategy, true
		default:
			return nil, nil, false // executing elsewhere
		}
	}

	needsApproval := cfg.RequireApproval && !rule.AutoFix
	attempt := &fixes.FixAttempt{
		ID:               fixes.ID(uuid.New().String()),
		ErrorID:          e.ID,
		Strategy:         strategy.Name(),
		Status:           fixes.StatusApproved,
		RequiresApproval: needsApproval,
		CreatedAt:        s.now(),
	}
	if needsApproval {
		attempt.Status = fixes.StatusPendingApproval
	}
	if err := s.Fixes.Save(ctx, attempt); err != nil {
		s.Log.Error().Err(err).Str("error_id", string(e.ID)).Msg("could not create fix attempt")
		return nil, nil, false
	}
	if needsApproval {
		s.Log.Info().Str("attempt_id", string(attempt.ID)).Str("kind", string(e.Kind)).
			Msg("attempt held for approval")
		return nil, nil, false
	}
	return attempt, strategy, true
}

func (s *Service) resolveStrategy(e *detecterrors.DetectedError) fixer.Strategy {
	for _, st := range s.Registry.Resolve(e.Kind) {
		if st.CanHandle(e) {
			return st
		}
	}
	return nil
}

// executeAttempt runs one strategy with retries inside a detached
// deadline. Detached: cancelling the poll loop must not kill an attempt
// halfway through a UI mutation; teardown waits via the inflight group.
func (s *Service) executeAttempt(loopCtx context.Context, cfg *agentstate.Configuration, e *detecterrors.DetectedError, rule *fixes.FixRule, strategy fixer.Strategy, attempt *fixes.FixAttempt) {
	timeout := s.AttemptTimeout
	if timeout == 0 {
		timeout = 3 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(loopCtx), timeout)
	defer cancel()

	runID := string(attempt.ID)
	if s.Tracker != nil {
		s.Tracker.Begin(runID, string(e.ID), strategy.Name())
	}
	s.broadcast(events.TypeFixStarted, map[string]any{
		"attempt_id": runID,
		"error_id":   string(e.ID),
		"strategy":   strategy.Name(),
		"dry_run":    cfg.DryRun,
	})

	now := s.now()
	attempt.Status = fixes.StatusExecuting
	attempt.StartedAt = &now
	if err := s.Fixes.Save(ctx, attempt); err != nil {
		s.Log.Error().Err(err).Msg("could not mark attempt executing")
	}
	if err := s.Errors.UpdateStatus(ctx, e.ID, detecterrors.StatusFixing); err != nil {
		s.Log.Warn().Err(err).Msg("could not mark error fixing")
	}
	s.advance(runID, progress.PhaseFixing, 10, "strategy starting")

	res, err := s.runStrategy(ctx, cfg, e, rule, strategy, attempt, runID)

	completed := s.now()
	attempt.CompletedAt = &completed
	attempt.ResultMessage = res.Message
	attempt.ScreenshotURL = res.ScreenshotURL
	attempt.DurationMS = res.DurationMS
	if res.Success {
		attempt.Status = fixes.StatusSuccess
	} else {
		attempt.Status = fixes.StatusFailed
		if err != nil && res.Message == "" {
			attempt.ResultMessage = err.Error()
		}
	}
	if err := s.Fixes.Save(ctx, attempt); err != nil {
		s.Log.Error().Err(err).Msg("could not persist attempt result")
	}

	errStatus := detecterrors.StatusFailed
	if res.Success {
		errStatus = detecterrors.StatusFixed
	}
	if err := s.Errors.UpdateStatus(ctx, e.ID, errStatus); err != nil {
		s.Log.Error().Err(err).Msg("could not persist error status")
	}

	if s.Tracker != nil {
		s.Tracker.Complete(runID, res.Success, res.Message)
	}
	s.broadcast(events.TypeFixCompleted, map[string]any{
		"attempt_id": runID,
		"error_id":   string(e.ID),
		"success":    res.Success,
		"message":    res.Message,
		"retries":    attempt.Retries,
	})
	s.Log.Info().Bool("success", res.Success).Str("strategy", strategy.Name()).
		Str("error_id", string(e.ID)).Int64("duration_ms", res.DurationMS).
		Msg("fix attempt finished")
}

// runStrategy applies dry-run, retry and the exactly-once session
// acquire around one strategy execution.
func (s *Service) runStrategy(ctx context.Context, cfg *agentstate.Configuration, e *detecterrors.DetectedError, rule *fixes.FixRule, strategy fixer.Strategy, attempt *fixes.FixAttempt, runID string) (fixer.FixResult, error) {
	if cfg.DryRun {
		// never touches the session
		s.advance(runID, progress.PhaseVerifying, 90, "dry-run simulated")
		return fixer.FixResult{
			Success:  true,
			Message:  "dry-run: " + strategy.Name() + " would run",
			Metadata: map[string]any{"dry_run": true},
		}, nil
	}

	maxRetries := rule.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := s.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	var lastRes fixer.FixResult
	var lastErr error
	for try := 0; try <= maxRetries; try++ {
		if ctx.Err() != nil {
			return lastRes, ctx.Err()
		}
		attempt.Retries = try

		var sess automation.Session
		acquired := true
		if strategy.NeedsSession() {
			var err error
			sess, err = s.Browser.Acquire(ctx)
			if err != nil {
				if errors.Is(err, automation.ErrSessionInvalid) {
					s.fatal("automation session lost: " + err.Error())
					return fixer.FixResult{Message: err.Error()}, err
				}
				// same backoff as an execution failure, no hot retry
				lastRes = fixer.FixResult{Message: "session acquire: " + err.Error()}
				lastErr = err
				acquired = false
			}
		}

		if acquired {
			lastRes, lastErr = s.executeOnce(ctx, e, strategy, sess)
			if lastErr == nil && lastRes.Success {
				s.advance(runID, progress.PhaseVerifying, 90, "strategy succeeded")
				return lastRes, nil
			}
		}
		s.advance(runID, progress.PhaseFixing, 10+80*(try+1)/(maxRetries+1), "retrying")
		if try < maxRetries {
			sleepDetached(ctx, time.Duration(try+1)*backoff)
		}
	}
	return lastRes, lastErr
}

// executeOnce guarantees Release on every exit path, panic included.
func (s *Service) executeOnce(ctx context.Context, e *detecterrors.DetectedError, strategy fixer.Strategy, sess automation.Session) (res fixer.FixResult, err error) {
	if sess != nil {
		defer sess.Release()
	}
	return strategy.Execute(ctx, e, sess)
}

func (s *Service) advance(runID string, phase progress.Phase, percent int, step string) {
	if s.Tracker != nil {
		s.Tracker.Advance(runID, phase, percent, step)
	}
}

func sleepDetached(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
