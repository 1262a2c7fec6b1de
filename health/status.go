package health

// Status values, from best to worst.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Status is the outcome of one check.
type Status struct {
	// Status is one of StatusHealthy, StatusDegraded or StatusUnhealthy.
	Status string `json:"status"`

	Message string `json:"message,omitempty"`

	// Details carries diagnostic context such as the underlying error.
	Details map[string]any `json:"details,omitempty"`
}

func (s Status) IsHealthy() bool {
	return s.Status == StatusHealthy
}

func (s Status) IsDegraded() bool {
	return s.Status == StatusDegraded
}

func (s Status) IsUnhealthy() bool {
	return s.Status == StatusUnhealthy
}

// Healthy returns a healthy status.
func Healthy(message string) Status {
	return Status{Status: StatusHealthy, Message: message}
}

// Degraded returns a degraded status.
func Degraded(message string, details map[string]any) Status {
	return Status{Status: StatusDegraded, Message: message, Details: details}
}

// Unhealthy returns an unhealthy status.
func Unhealthy(message string, details map[string]any) Status {
	return Status{Status: StatusUnhealthy, Message: message, Details: details}
}
