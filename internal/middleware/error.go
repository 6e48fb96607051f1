package middleware

// ErrorResponse is the error envelope returned by middleware short-circuits.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}
