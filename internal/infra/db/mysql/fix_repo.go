package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pthora/eldwatch/internal/domain/detecterrors"
	domain "github.com/pthora/eldwatch/internal/domain/fixes"
)

type FixRepository struct {
	db *sql.DB
}

func NewFixRepository(db *sql.DB) *FixRepository {
	return &FixRepository{db: db}
}

const fixColumns = `id, error_id, strategy, status, requires_approval, approved_by, approved_at,
       result_message, screenshot_url, duration_ms, retries, started_at, completed_at, created_at`

// Save insert/update FixAttempt; attempts are re-saved as they move
// through execution so results land on the same row.
func (r *FixRepository) Save(ctx context.Context, f *domain.FixAttempt) error {
	const q = `
INSERT INTO fix_attempts
(id, error_id, strategy, status, requires_approval, approved_by, approved_at,
 result_message, screenshot_url, duration_ms, retries, started_at, completed_at, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status), approved_by=VALUES(approved_by), approved_at=VALUES(approved_at),
 result_message=VALUES(result_message), screenshot_url=VALUES(screenshot_url),
 duration_ms=VALUES(duration_ms), retries=VALUES(retries),
 started_at=VALUES(started_at), completed_at=VALUES(completed_at);
`
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		f.ID, f.ErrorID, f.Strategy, f.Status, f.RequiresApproval,
		f.ApprovedBy, nullTime(f.ApprovedAt),
		f.ResultMessage, f.ScreenshotURL, f.DurationMS, f.Retries,
		nullTime(f.StartedAt), nullTime(f.CompletedAt), created,
	)
	return err
}

func (r *FixRepository) Get(ctx context.Context, id domain.ID) (*domain.FixAttempt, error) {
	const q = `
SELECT ` + fixColumns + `
FROM fix_attempts
WHERE id=? LIMIT 1;
`
	return scanFix(r.db.QueryRowContext(ctx, q, id))
}

func (r *FixRepository) ListByError(ctx context.Context, errorID detecterrors.ID, limit int) ([]*domain.FixAttempt, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT ` + fixColumns + `
FROM fix_attempts
WHERE error_id=? ORDER BY created_at DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, errorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.FixAttempt
	for rows.Next() {
		f, err := scanFix(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LatestOpen returns the newest non-terminal attempt, or nil when every
// attempt has settled.
func (r *FixRepository) LatestOpen(ctx context.Context, errorID detecterrors.ID) (*domain.FixAttempt, error) {
	const q = `
SELECT ` + fixColumns + `
FROM fix_attempts
WHERE error_id=? AND status NOT IN ('success','failed','rejected')
ORDER BY created_at DESC LIMIT 1;
`
	f, err := scanFix(r.db.QueryRowContext(ctx, q, errorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

func (r *FixRepository) UpdateStatus(ctx context.Context, id domain.ID, status domain.Status) error {
	const q = `UPDATE fix_attempts SET status=? WHERE id=?;`
	_, err := r.db.ExecContext(ctx, q, status, id)
	return err
}

func (r *FixRepository) Approve(ctx context.Context, id domain.ID, approver string) error {
	const q = `
UPDATE fix_attempts
SET status='approved', approved_by=?, approved_at=NOW()
WHERE id=? AND status='pending_approval';
`
	_, err := r.db.ExecContext(ctx, q, approver, id)
	return err
}

func scanFix(row rowScanner) (*domain.FixAttempt, error) {
	var f domain.FixAttempt
	var approvedAt, startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&f.ID, &f.ErrorID, &f.Strategy, &f.Status, &f.RequiresApproval,
		&f.ApprovedBy, &approvedAt,
		&f.ResultMessage, &f.ScreenshotURL, &f.DurationMS, &f.Retries,
		&startedAt, &completedAt, &f.CreatedAt,
	); err != nil {
		return nil, err
	}
	f.ApprovedAt = timePtr(approvedAt)
	f.StartedAt = timePtr(startedAt)
	f.CompletedAt = timePtr(completedAt)
	return &f, nil
}
