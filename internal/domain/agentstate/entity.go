package agentstate

import (
	"errors"
	"time"
)

// State enum: lifecycle of the orchestrator.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateStopping State = "stopping"
)

// Health is what getStatus reports alongside the state.
type Health string

const (
	HealthHealthy  Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthStopped  Health = "stopped"
)

// ErrInvalidTransition is returned for commands that have no defined
// transition from the current state (e.g. pause while stopped).
var ErrInvalidTransition = errors.New("agent: invalid state transition")

// Configuration is the singleton runtime configuration of the agent.
// Exactly one row exists; only the orchestrator mutates it.
type Configuration struct {
	State              State         `json:"state"`
	PollingInterval    time.Duration `json:"polling_interval"`
	MaxConcurrentFixes int           `json:"max_concurrent_fixes"`
	RequireApproval    bool          `json:"require_approval"`
	DryRun             bool          `json:"dry_run"`
	LastRunAt          *time.Time    `json:"last_run_at,omitempty"`
}

// Status is the command-surface snapshot: configuration plus health and
// the reason for the last stop, if any.
type Status struct {
	Configuration
	Health     Health `json:"health"`
	StopReason string `json:"stop_reason,omitempty"`
}
