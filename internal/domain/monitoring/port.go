package monitoring

import "context"

// Client port (interface untuk Fortex API). The server caches responses
// for several minutes, so callers must not poll faster than the
// configured interval.
type Client interface {
	HealthCheck(ctx context.Context) error
	Overview(ctx context.Context) (*Overview, error)
	SmartAnalyze(ctx context.Context, companyID string) (*CompanyAnalysis, error)
	// CollectErrors fetches smart-analyze for each company and flattens
	// every logCheckError with its driver/company context. Per-company
	// failures are skipped, not fatal.
	CollectErrors(ctx context.Context, companyIDs []string) ([]RawError, error)
	SubmitAnalysis(ctx context.Context, driverID, dateFrom, dateTo string) (*AnalysisResult, error)
}
