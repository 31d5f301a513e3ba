package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/pthora/eldwatch/internal/domain/detecterrors"
)

type ErrorRepository struct {
	db *sql.DB
}

func NewErrorRepository(db *sql.DB) *ErrorRepository {
	return &ErrorRepository{db: db}
}

const errorColumns = `id, log_id, event_id, driver_id, driver_name, company_id, company_name,
       kind, name, message, severity, category, status, advice, metadata,
       discovered_at, fixed_at`

// Save insert/update DetectedError record
func (r *ErrorRepository) Save(ctx context.Context, e *domain.DetectedError) error {
	const q = `
INSERT INTO detected_errors
(id, log_id, event_id, driver_id, driver_name, company_id, company_name,
 kind, name, message, severity, category, status, advice, metadata,
 discovered_at, fixed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status), advice=VALUES(advice), metadata=VALUES(metadata),
 fixed_at=VALUES(fixed_at);
`
	discovered := e.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.LogID, e.EventID, e.DriverID, e.DriverName, e.CompanyID, e.CompanyName,
		e.Kind, e.Name, e.Message, e.Severity, e.Category, e.Status, e.Advice,
		metaJSON(e.Metadata), discovered, nullTime(e.FixedAt),
	)
	return err
}

func (r *ErrorRepository) Get(ctx context.Context, id domain.ID) (*domain.DetectedError, error) {
	const q = `
SELECT ` + errorColumns + `
FROM detected_errors
WHERE id=? LIMIT 1;
`
	return scanError(r.db.QueryRowContext(ctx, q, id))
}

// FindOpen looks for a pending/fixing record with the same driver, kind
// and message.
func (r *ErrorRepository) FindOpen(ctx context.Context, driverID string, kind domain.Kind, message string) (*domain.DetectedError, error) {
	const q = `
SELECT ` + errorColumns + `
FROM detected_errors
WHERE driver_id=? AND kind=? AND message=? AND status IN ('pending','fixing')
ORDER BY discovered_at DESC LIMIT 1;
`
	e, err := scanError(r.db.QueryRowContext(ctx, q, driverID, kind, message))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (r *ErrorRepository) ListPending(ctx context.Context, limit int) ([]*domain.DetectedError, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT ` + errorColumns + `
FROM detected_errors
WHERE status='pending' ORDER BY discovered_at ASC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectErrors(rows)
}

// List filters by status and/or severity; empty string means no filter.
func (r *ErrorRepository) List(ctx context.Context, status domain.Status, severity domain.Severity, limit int) ([]*domain.DetectedError, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + errorColumns + `
FROM detected_errors
WHERE (?='' OR status=?) AND (?='' OR severity=?)
ORDER BY discovered_at DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, status, status, severity, severity, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectErrors(rows)
}

// UpdateStatus stamps fixed_at when the error settles as fixed.
func (r *ErrorRepository) UpdateStatus(ctx context.Context, id domain.ID, status domain.Status) error {
	const q = `
UPDATE detected_errors
SET status=?, fixed_at=IF(?='fixed', NOW(), fixed_at)
WHERE id=?;
`
	_, err := r.db.ExecContext(ctx, q, status, status, id)
	return err
}

func (r *ErrorRepository) UpdateAdvice(ctx context.Context, id domain.ID, advice string) error {
	const q = `UPDATE detected_errors SET advice=? WHERE id=?;`
	_, err := r.db.ExecContext(ctx, q, advice, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanError(row rowScanner) (*domain.DetectedError, error) {
	var e domain.DetectedError
	var meta sql.NullString
	var fixedAt sql.NullTime
	if err := row.Scan(
		&e.ID, &e.LogID, &e.EventID, &e.DriverID, &e.DriverName, &e.CompanyID, &e.CompanyName,
		&e.Kind, &e.Name, &e.Message, &e.Severity, &e.Category, &e.Status, &e.Advice,
		&meta, &e.DiscoveredAt, &fixedAt,
	); err != nil {
		return nil, err
	}
	e.Metadata = metaFromJSON(meta)
	e.FixedAt = timePtr(fixedAt)
	return &e, nil
}

func collectErrors(rows *sql.Rows) ([]*domain.DetectedError, error) {
	var out []*domain.DetectedError
	for rows.Next() {
		e, err := scanError(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
