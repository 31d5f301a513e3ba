package detecterrors

import "context"

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, e *DetectedError) error
	Get(ctx context.Context, id ID) (*DetectedError, error)
	// FindOpen looks for an existing pending/fixing record with the same
	// driver, kind and message so polling does not duplicate errors.
	FindOpen(ctx context.Context, driverID string, kind Kind, message string) (*DetectedError, error)
	ListPending(ctx context.Context, limit int) ([]*DetectedError, error)
	List(ctx context.Context, status Status, severity Severity, limit int) ([]*DetectedError, error)
	UpdateStatus(ctx context.Context, id ID, status Status) error
	UpdateAdvice(ctx context.Context, id ID, advice string) error
}
