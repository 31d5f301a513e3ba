package agent

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pthora/eldwatch/internal/application/fixer"
	"github.com/pthora/eldwatch/internal/application/progress"
	"github.com/pthora/eldwatch/internal/classifier"
	"github.com/pthora/eldwatch/internal/domain/agentstate"
	"github.com/pthora/eldwatch/internal/domain/automation"
	"github.com/pthora/eldwatch/internal/domain/detecterrors"
	"github.com/pthora/eldwatch/internal/domain/events"
	"github.com/pthora/eldwatch/internal/domain/fixes"
	"github.com/pthora/eldwatch/internal/domain/monitoring"
)

// degradedAfter: berapa kali poll boleh gagal berturut-turut sebelum
// health turun ke degraded.
const degradedAfter = 3

// Service is the background orchestrator: polls the platform, records
// classified errors and drives correction attempts. One instance per
// process; all commands are safe for concurrent use.
type Service struct {
	Config   agentstate.Repository
	Errors   detecterrors.Repository
	Fixes    fixes.Repository
	Rules    fixes.RuleRepository
	Platform monitoring.Client
	Registry *fixer.Registry
	Browser  automation.Manager
	Tracker  *progress.Tracker
	Notifier events.Notifier
	Clock    Clock
	Log      zerolog.Logger

	// CompanyIDs scopes the poll; SelectedDrivers optionally narrows the
	// collected errors to specific drivers.
	CompanyIDs      []string
	SelectedDrivers []string
	AttemptTimeout  time.Duration
	RetryBackoff    time.Duration // antar percobaan ulang, default 2s

	mu             sync.Mutex
	state          agentstate.State
	stopReason     string
	loopCancel     context.CancelFunc
	loopDone       chan struct{}
	browserStarted bool

	inflight     sync.WaitGroup
	pollFailures atomic.Int32
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

// State returns the in-memory lifecycle state.
func (s *Service) State() agentstate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Service) stateLocked() agentstate.State {
	if s.state == "" {
		return agentstate.StateStopped
	}
	return s.state
}

func (s *Service) setState(st agentstate.State) {
	s.mu.Lock()
	prev := s.stateLocked()
	s.state = st
	s.mu.Unlock()
	s.announce(prev, st)
}

// casState transitions only from the expected state, so concurrent
// commands cannot double-fire a lifecycle step.
func (s *Service) casState(from, to agentstate.State, verb string) error {
	s.mu.Lock()
	if st := s.stateLocked(); st != from {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s from %s", agentstate.ErrInvalidTransition, verb, st)
	}
	s.state = to
	s.mu.Unlock()
	s.announce(from, to)
	return nil
}

func (s *Service) announce(prev, st agentstate.State) {
	if prev == st {
		return
	}
	s.Log.Info().Str("from", string(prev)).Str("to", string(st)).Msg("agent state changed")
	if err := s.Config.UpdateState(context.Background(), st); err != nil {
		s.Log.Warn().Err(err).Msg("could not persist agent state")
	}
	s.broadcast(events.TypeAgentStatusChanged, map[string]any{
		"state": string(st), "previous": string(prev),
	})
}

func (s *Service) broadcast(typ string, data map[string]any) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Broadcast(events.Event{Type: typ, Data: data})
}

// Start: stopped → starting → running. The warm-up (config load,
// platform health check, browser login) runs in starting; any failure
// falls back to stopped with the reason recorded. Start while running
// is a no-op; start while paused resumes without re-initializing the
// session.
func (s *Service) Start(ctx context.Context) error {
	switch s.State() {
	case agentstate.StateRunning:
		return nil
	case agentstate.StatePaused:
		return s.Resume(ctx)
	}
	if err := s.casState(agentstate.StateStopped, agentstate.StateStarting, "start"); err != nil {
		return err
	}
	s.mu.Lock()
	s.stopReason = ""
	s.mu.Unlock()

	cfg, err := s.Config.Load(ctx)
	if err != nil {
		return s.failStart("load configuration: " + err.Error())
	}
	if err := s.Platform.HealthCheck(ctx); err != nil {
		return s.failStart("platform unreachable: " + err.Error())
	}
	if !cfg.DryRun {
		if err := s.Browser.Start(ctx); err != nil {
			return s.failStart("browser session: " + err.Error())
		}
		s.mu.Lock()
		s.browserStarted = true
		s.mu.Unlock()
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.loopCancel = cancel
	s.loopDone = make(chan struct{})
	done := s.loopDone
	s.mu.Unlock()
	s.setState(agentstate.StateRunning)

	go s.run(loopCtx, done)
	return nil
}

func (s *Service) failStart(reason string) error {
	s.Log.Error().Str("reason", reason).Msg("agent start failed")
	s.mu.Lock()
	s.stopReason = reason
	s.mu.Unlock()
	s.setState(agentstate.StateStopped)
	return fmt.Errorf("agent start: %s", reason)
}

// Pause keeps the loop alive but skips cycles. running → paused.
func (s *Service) Pause(ctx context.Context) error {
	return s.casState(agentstate.StateRunning, agentstate.StatePaused, "pause")
}

// Resume: paused → running.
func (s *Service) Resume(ctx context.Context) error {
	return s.casState(agentstate.StatePaused, agentstate.StateRunning, "resume")
}

// Stop: running|paused → stopping, drain in-flight attempts, → stopped.
// Blocks until the loop has fully exited or ctx runs out. Idempotent:
// stop while already stopped is a no-op.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	st := s.stateLocked()
	if st == agentstate.StateStopped {
		s.mu.Unlock()
		return nil
	}
	if st != agentstate.StateRunning && st != agentstate.StatePaused {
		s.mu.Unlock()
		return fmt.Errorf("%w: stop from %s", agentstate.ErrInvalidTransition, st)
	}
	if s.stopReason == "" {
		s.stopReason = "stop requested"
	}
	s.state = agentstate.StateStopping
	cancel := s.loopCancel
	done := s.loopDone
	s.mu.Unlock()

	s.announce(st, agentstate.StateStopping)
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fatal is called from inside an attempt when the session is beyond
// re-login. It triggers the same teardown path as Stop without waiting,
// karena pemanggilnya sendiri masih in-flight.
func (s *Service) fatal(reason string) {
	s.mu.Lock()
	st := s.stateLocked()
	if st != agentstate.StateRunning && st != agentstate.StatePaused {
		s.mu.Unlock()
		return
	}
	s.stopReason = reason
	s.state = agentstate.StateStopping
	cancel := s.loopCancel
	s.mu.Unlock()

	s.Log.Error().Str("reason", reason).Msg("fatal agent error, stopping")
	s.announce(st, agentstate.StateStopping)
	cancel()
}

// Status is the command-surface snapshot.
func (s *Service) Status(ctx context.Context) (*agentstate.Status, error) {
	cfg, err := s.Config.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	st := s.stateLocked()
	reason := s.stopReason
	s.mu.Unlock()

	out := &agentstate.Status{Configuration: *cfg, StopReason: reason}
	out.State = st
	switch {
	case st != agentstate.StateRunning && st != agentstate.StatePaused:
		out.Health = agentstate.HealthStopped
	case s.pollFailures.Load() >= degradedAfter:
		out.Health = agentstate.HealthDegraded
	default:
		out.Health = agentstate.HealthHealthy
	}
	return out, nil
}

// run is the poll loop. Teardown (drain, browser close, final state)
// lives here so that every exit path, Stop command or fatal session
// loss, converges on the same sequence.
func (s *Service) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	cfg, err := s.Config.Load(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("loop cannot load configuration")
		cfg = &agentstate.Configuration{PollingInterval: time.Minute, MaxConcurrentFixes: 1}
	}

	ticker := time.NewTicker(cfg.PollingInterval)
	defer ticker.Stop()

	for {
		if s.State() == agentstate.StateRunning {
			s.cycle(ctx)
		}
		select {
		case <-ctx.Done():
			s.teardown()
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) teardown() {
	s.inflight.Wait()
	s.mu.Lock()
	started := s.browserStarted
	s.browserStarted = false
	s.mu.Unlock()
	if started {
		if err := s.Browser.Close(context.Background()); err != nil {
			s.Log.Warn().Err(err).Msg("browser close failed")
		}
	}
	s.setState(agentstate.StateStopped)
}

// cycle: poll → classify → persist → dispatch. Back-pressure is cycle
// scoped: dispatch returns only after every attempt it launched has
// settled, so cycles never pile up behind a slow fix.
func (s *Service) cycle(ctx context.Context) {
	cfg, err := s.Config.Load(ctx)
	if err != nil {
		s.Log.Error().Err(err).Msg("cycle skipped, configuration unavailable")
		return
	}

	raws, err := s.Platform.CollectErrors(ctx, s.CompanyIDs)
	if err != nil {
		n := s.pollFailures.Add(1)
		s.Log.Warn().Err(err).Int32("consecutive", n).Msg("poll failed")
		return
	}
	s.pollFailures.Store(0)

	discovered := 0
	for _, raw := range raws {
		if !s.driverSelected(raw.DriverID) {
			continue
		}
		if s.recordError(ctx, raw) {
			discovered++
		}
	}
	if discovered > 0 {
		s.Log.Info().Int("new", discovered).Int("collected", len(raws)).Msg("errors discovered")
	}

	now := s.now()
	cfg.LastRunAt = &now
	if err := s.Config.Update(ctx, cfg); err != nil {
		s.Log.Warn().Err(err).Msg("could not stamp last run")
	}

	s.dispatch(ctx, cfg)
}

func (s *Service) driverSelected(driverID string) bool {
	if len(s.SelectedDrivers) == 0 {
		return true
	}
	for _, id := range s.SelectedDrivers {
		if id == driverID {
			return true
		}
	}
	return false
}

// recordError classifies and persists one raw error, skipping
// duplicates that are already pending or being fixed.
func (s *Service) recordError(ctx context.Context, raw monitoring.RawError) bool {
	cls := classifier.Classify(raw.Message)

	existing, err := s.Errors.FindOpen(ctx, raw.DriverID, cls.Kind, raw.Message)
	if err != nil {
		s.Log.Warn().Err(err).Msg("dedup lookup failed, recording anyway")
	}
	if existing != nil {
		return false
	}

	e := &detecterrors.DetectedError{
		ID:           detecterrors.ID(uuid.New().String()),
		LogID:        raw.LogID,
		EventID:      raw.EventID,
		DriverID:     raw.DriverID,
		DriverName:   raw.DriverName,
		CompanyID:    raw.CompanyID,
		CompanyName:  raw.CompanyName,
		Kind:         cls.Kind,
		Name:         cls.Name,
		Message:      raw.Message,
		Severity:     cls.Severity,
		Category:     cls.Category,
		Status:       detecterrors.StatusPending,
		Metadata:     raw.Metadata,
		DiscoveredAt: s.now(),
	}
	if err := s.Errors.Save(ctx, e); err != nil {
		s.Log.Error().Err(err).Str("driver_id", raw.DriverID).Msg("could not persist error")
		return false
	}

	s.broadcast(events.TypeErrorDiscovered, map[string]any{
		"error_id": string(e.ID),
		"kind":     string(e.Kind),
		"severity": string(e.Severity),
		"driver":   e.DriverName,
		"message":  e.Message,
	})
	return true
}

// Approve releases a held attempt; it executes on the next cycle.
func (s *Service) Approve(ctx context.Context, id fixes.ID, approver string) error {
	att, err := s.Fixes.Get(ctx, id)
	if err != nil {
		return err
	}
	if att.Status != fixes.StatusPendingApproval {
		return fmt.Errorf("attempt %s is %s, not pending approval", id, att.Status)
	}
	return s.Fixes.Approve(ctx, id, approver)
}

// Reject finalizes a held attempt and parks the error for a human.
func (s *Service) Reject(ctx context.Context, id fixes.ID) error {
	att, err := s.Fixes.Get(ctx, id)
	if err != nil {
		return err
	}
	if att.Status != fixes.StatusPendingApproval {
		return fmt.Errorf("attempt %s is %s, not pending approval", id, att.Status)
	}
	if err := s.Fixes.UpdateStatus(ctx, id, fixes.StatusRejected); err != nil {
		return err
	}
	return s.Errors.UpdateStatus(ctx, att.ErrorID, detecterrors.StatusIgnored)
}

// RetryError re-queues a failed error. Settled attempts stay terminal;
// the next cycle opens a fresh one.
func (s *Service) RetryError(ctx context.Context, id detecterrors.ID) error {
	e, err := s.Errors.Get(ctx, id)
	if err != nil {
		return err
	}
	if e.Status != detecterrors.StatusFailed && e.Status != detecterrors.StatusIgnored {
		return fmt.Errorf("error %s is %s, only failed or ignored errors can be retried", id, e.Status)
	}
	return s.Errors.UpdateStatus(ctx, id, detecterrors.StatusPending)
}
