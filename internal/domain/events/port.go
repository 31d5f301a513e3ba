package events

// Outward notification types consumed by the dashboard. Fire-and-forget,
// no delivery guarantee.
const (
	TypeErrorDiscovered    = "error_discovered"
	TypeFixStarted         = "fix_started"
	TypeFixCompleted       = "fix_completed"
	TypeAgentStatusChanged = "agent_status_changed"
)

// Event is one notification envelope.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Notifier port. Implementations must never block the caller on slow
// consumers.
type Notifier interface {
	Broadcast(e Event)
}
