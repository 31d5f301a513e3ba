package monitoring

// Models for the Fortex monitoring API. The API mixes camelCase and
// legacy snake_case fields, so decoding stays tolerant and the client
// normalizes into RawError before anything downstream sees the data.

// RawError is one logCheckError flattened with its driver/company context.
type RawError struct {
	CompanyID   string         `json:"company_id"`
	CompanyName string         `json:"company_name,omitempty"`
	DriverID    string         `json:"driver_id"`
	DriverName  string         `json:"driver_name,omitempty"`
	LogID       string         `json:"log_id,omitempty"`
	EventID     string         `json:"event_id,omitempty"`
	Message     string         `json:"error_message"`
	Type        string         `json:"error_type,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CompanySummary from the /monitoring overview.
type CompanySummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Violations  int    `json:"violations"`
	Uncertified int    `json:"uncertified"`
	DocProblems int    `json:"docProblems"`
	Total       int    `json:"total"`
	IsError     bool   `json:"isError"`
}

// Overview is the /monitoring response.
type Overview struct {
	TotalCompanies int              `json:"totalNumberOfCompany"`
	TotalErrors    int              `json:"totalNumberOfError"`
	Violations     int              `json:"violations"`
	DocProblems    int              `json:"docProblems"`
	Uncertified    int              `json:"uncertified"`
	Companies      []CompanySummary `json:"companies"`
}

// LogCheckError as it appears on the wire.
type LogCheckError struct {
	ID           string `json:"id"`
	EventCode    string `json:"eventCode"`
	ErrorTime    int64  `json:"errorTime"`
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
	// legacy field names still emitted by some endpoints
	Message string `json:"message"`
	LogID   string `json:"log_id"`
	EventID string `json:"event_id"`
}

// DriverLog is one driver entry from smart-analyze.
type DriverLog struct {
	DriverID       string          `json:"driverId"`
	DriverName     string          `json:"driver_name"`
	Timezone       string          `json:"timezone"`
	LogCheckErrors []LogCheckError `json:"logCheckErrors"`
}

// CompanyAnalysis is the smart-analyze response for one company.
type CompanyAnalysis struct {
	CompanyID   string      `json:"company_id"`
	CompanyName string      `json:"company_name"`
	Drivers     []DriverLog `json:"drivers"`
	TotalErrors int         `json:"total_errors"`
}

// AnalysisResult is the response to a submitted driver analysis.
type AnalysisResult struct {
	Errors          []LogCheckError `json:"errors"`
	Summary         string          `json:"summary"`
	Recommendations []string        `json:"recommendations"`
}
