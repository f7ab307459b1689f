package domain

// InspectionSummary is the subset of an inspection used for aggregation.
type InspectionSummary struct {
	Verdict      Verdict
	ProcessingMS float64
}

// Stats summarizes inspection history for the dashboard and stats endpoint.
type Stats struct {
	TotalProcessed  int64   `json:"total_processed"`
	Accepted        int64   `json:"accepted"`
	Rejected        int64   `json:"rejected"`
	DefectRate      float64 `json:"defect_rate"` // percent of inspections rejected
	AvgProcessingMS float64 `json:"avg_processing_time_ms"`
}
