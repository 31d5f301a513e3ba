package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/pthora/eldwatch/internal/domain/detecterrors"
	domain "github.com/pthora/eldwatch/internal/domain/fixes"
)

type RuleRepository struct {
	db *sql.DB
}

func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) Get(ctx context.Context, kind detecterrors.Kind) (*domain.FixRule, error) {
	const q = `
SELECT kind, enabled, auto_fix, priority, max_retries
FROM fix_rules
WHERE kind=$1 LIMIT 1;`
	var rule domain.FixRule
	err := r.db.QueryRowContext(ctx, q, kind).Scan(
		&rule.Kind, &rule.Enabled, &rule.AutoFix, &rule.Priority, &rule.MaxRetries,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *RuleRepository) List(ctx context.Context) ([]*domain.FixRule, error) {
	const q = `
SELECT kind, enabled, auto_fix, priority, max_retries
FROM fix_rules
ORDER BY priority DESC, kind ASC;`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.FixRule
	for rows.Next() {
		var rule domain.FixRule
		if err := rows.Scan(&rule.Kind, &rule.Enabled, &rule.AutoFix, &rule.Priority, &rule.MaxRetries); err != nil {
			return nil, err
		}
		out = append(out, &rule)
	}
	return out, rows.Err()
}
