package server

// SubmitResponse is the POST /execution/submit 202 body.
type SubmitResponse struct {
	SubmissionID        string `json:"submissionId"`
	Status              string `json:"status"`
	Message             string `json:"message"`
	QueuePosition       int    `json:"queuePosition"`
	EstimatedWaitTimeMs int64  `json:"estimatedWaitTimeMs"`
	StatusURL           string `json:"statusUrl"`
	ResultsURL          string `json:"resultsUrl"`
}

// HealthResponse is the GET /execution/health body.
type HealthResponse struct {
	Status             string `json:"status"`
	QueueSize          int    `json:"queueSize"`
	ActiveWorkers      int    `json:"activeWorkers"`
	AvgExecutionTimeMs int64  `json:"avgExecutionTimeMs"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
