package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/pthora/eldwatch/internal/domain/agentstate"
)

// AgentRepository persists the singleton agent configuration. The table
// holds exactly one row with id=1, seeded from the config file defaults
// on first use.
type AgentRepository struct {
	db       *sql.DB
	defaults domain.Configuration
}

func NewAgentRepository(db *sql.DB, defaults domain.Configuration) *AgentRepository {
	return &AgentRepository{db: db, defaults: defaults}
}

// seedArgs normalizes the defaults into insert order. The row always
// starts stopped; the operator starts the agent explicitly.
func (r *AgentRepository) seedArgs() []any {
	d := r.defaults
	if d.PollingInterval <= 0 {
		d.PollingInterval = time.Minute
	}
	if d.MaxConcurrentFixes <= 0 {
		d.MaxConcurrentFixes = 1
	}
	return []any{d.PollingInterval.Milliseconds(), d.MaxConcurrentFixes, d.RequireApproval, d.DryRun}
}

// Load creates the default row on first use.
func (r *AgentRepository) Load(ctx context.Context) (*domain.Configuration, error) {
	const seed = `
INSERT IGNORE INTO agent_config
(id, state, polling_interval_ms, max_concurrent_fixes, require_approval, dry_run)
VALUES (1, 'stopped', ?, ?, ?, ?);
`
	if _, err := r.db.ExecContext(ctx, seed, r.seedArgs()...); err != nil {
		return nil, err
	}

	const q = `
SELECT state, polling_interval_ms, max_concurrent_fixes, require_approval, dry_run, last_run_at
FROM agent_config
WHERE id=1;
`
	var c domain.Configuration
	var intervalMS int64
	var lastRun sql.NullTime
	if err := r.db.QueryRowContext(ctx, q).Scan(
		&c.State, &intervalMS, &c.MaxConcurrentFixes, &c.RequireApproval, &c.DryRun, &lastRun,
	); err != nil {
		return nil, err
	}
	c.PollingInterval = time.Duration(intervalMS) * time.Millisecond
	c.LastRunAt = timePtr(lastRun)
	return &c, nil
}

func (r *AgentRepository) Update(ctx context.Context, c *domain.Configuration) error {
	const q = `
UPDATE agent_config
SET state=?, polling_interval_ms=?, max_concurrent_fixes=?,
    require_approval=?, dry_run=?, last_run_at=?
WHERE id=1;
`
	_, err := r.db.ExecContext(ctx, q,
		c.State, c.PollingInterval.Milliseconds(), c.MaxConcurrentFixes,
		c.RequireApproval, c.DryRun, nullTime(c.LastRunAt),
	)
	return err
}

func (r *AgentRepository) UpdateState(ctx context.Context, s domain.State) error {
	const q = `UPDATE agent_config SET state=? WHERE id=1;`
	_, err := r.db.ExecContext(ctx, q, s)
	return err
}
