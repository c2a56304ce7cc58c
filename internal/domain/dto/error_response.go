package dto

import "time"

// ErrorResponse is the standardized JSON error envelope returned by the API.
//
// Fields:
//   - Message: human-readable description of what went wrong.
//   - ErrorDetails: optional underlying error text (omitted when empty).
//   - Timestamp: when the error response was produced.
type ErrorResponse struct {
	Message      string    `json:"message" example:"no data found"`
	ErrorDetails string    `json:"error,omitempty" example:"sql: no rows in result set"`
	Timestamp    time.Time `json:"timestamp"`
}

// Error implements the error interface so an ErrorResponse can be
// propagated like any other error.
func (e ErrorResponse) Error() string {
	if e.ErrorDetails != "" {
		return e.Message + ": " + e.ErrorDetails
	}
	return e.Message
}

// NewErrorResponse builds an ErrorResponse from a message and an optional
// inner error.
func NewErrorResponse(message string, err error) ErrorResponse {
	e := ErrorResponse{
		Message:   message,
		Timestamp: time.Now(),
	}
	if err != nil {
		e.ErrorDetails = err.Error()
	}
	return e
}
