package engine

import "github.com/formbridge/formbridge/pkg/health"

// Status represents the status of an operation
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusSuccess   Status = "success"
	StatusCreated   Status = "created"
	StatusDeleted   Status = "deleted"
	StatusError     Status = "error"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Status  Status `json:"status"`
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status Status         `json:"status"`
	Checks []health.Check `json:"checks,omitempty"`
}
