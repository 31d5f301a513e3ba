package fortex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pthora/eldwatch/internal/domain/monitoring"
)

// Overview: GET /monitoring. Server cache 10 menit.
func (c *Client) Overview(ctx context.Context) (*monitoring.Overview, error) {
	var out monitoring.Overview
	if err := c.request(ctx, http.MethodGet, "/monitoring", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HealthCheck hits the overview endpoint; any successful response counts.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.Overview(ctx)
	return err
}

// SmartAnalyze: GET /monitoring/smart-analyze/:companyId. The endpoint
// answers either a bare array of driver logs or an object wrapping one;
// both are normalized into CompanyAnalysis.
func (c *Client) SmartAnalyze(ctx context.Context, companyID string) (*monitoring.CompanyAnalysis, error) {
	var raw json.RawMessage
	endpoint := "/monitoring/smart-analyze/" + companyID
	if err := c.request(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return nil, err
	}

	analysis := monitoring.CompanyAnalysis{CompanyID: companyID}

	var drivers []monitoring.DriverLog
	if err := json.Unmarshal(raw, &drivers); err == nil {
		analysis.Drivers = drivers
	} else {
		var wrapped struct {
			CompanyName string                  `json:"company_name"`
			Drivers     []monitoring.DriverLog `json:"drivers"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: smart-analyze %s: %v", ErrSchema, companyID, err)
		}
		analysis.CompanyName = wrapped.CompanyName
		analysis.Drivers = wrapped.Drivers
	}

	for _, d := range analysis.Drivers {
		analysis.TotalErrors += len(d.LogCheckErrors)
	}
	return &analysis, nil
}

// CollectErrors flattens logCheckErrors across companies. One company
// failing does not abort the sweep; the error is logged and skipped.
func (c *Client) CollectErrors(ctx context.Context, companyIDs []string) ([]monitoring.RawError, error) {
	var all []monitoring.RawError
	failed := 0
	for _, id := range companyIDs {
		if ctx.Err() != nil {
			return all, ctx.Err()
		}
		analysis, err := c.SmartAnalyze(ctx, id)
		if err != nil {
			failed++
			c.log.Warn().Err(err).Str("company_id", id).Msg("smart-analyze failed, skipping company")
			continue
		}
		for _, d := range analysis.Drivers {
			for _, e := range d.LogCheckErrors {
				all = append(all, flatten(analysis, d, e))
			}
		}
	}
	c.log.Info().Int("errors", len(all)).Int("companies", len(companyIDs)).Int("failed", failed).
		Msg("collected errors")
	if failed == len(companyIDs) && len(companyIDs) > 0 {
		return all, fmt.Errorf("%w: all %d companies failed", ErrTransient, failed)
	}
	return all, nil
}

func flatten(a *monitoring.CompanyAnalysis, d monitoring.DriverLog, e monitoring.LogCheckError) monitoring.RawError {
	msg := e.ErrorMessage
	if msg == "" {
		msg = e.Message // legacy field name
	}
	logID := e.ID
	if logID == "" {
		logID = e.LogID
	}
	eventID := e.ID
	if eventID == "" {
		eventID = e.EventID
	}
	return monitoring.RawError{
		CompanyID:   a.CompanyID,
		CompanyName: a.CompanyName,
		DriverID:    d.DriverID,
		DriverName:  d.DriverName,
		LogID:       logID,
		EventID:     eventID,
		Message:     msg,
		Type:        e.ErrorType,
		Metadata: map[string]any{
			"eventCode": e.EventCode,
			"errorTime": e.ErrorTime,
		},
	}
}

// SubmitAnalysis: POST /monitoring/smart-analyze for one driver and
// date range (format YYYY-MM-DD).
func (c *Client) SubmitAnalysis(ctx context.Context, driverID, dateFrom, dateTo string) (*monitoring.AnalysisResult, error) {
	payload := map[string]string{
		"driverId": driverID,
		"dateFrom": dateFrom,
		"dateTo":   dateTo,
	}
	var out monitoring.AnalysisResult
	if err := c.request(ctx, http.MethodPost, "/monitoring/smart-analyze", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
