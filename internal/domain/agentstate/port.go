package agentstate

import "context"

// Repository port. Load creates the default row on first use so the
// singleton invariant holds for the process lifetime.
type Repository interface {
	Load(ctx context.Context) (*Configuration, error)
	Update(ctx context.Context, c *Configuration) error
	UpdateState(ctx context.Context, s State) error
}
