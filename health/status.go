// Package health records the outcome of each startup step.
package health

import (
	"regexp"
	"time"
)

// Status values
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

var (
	urlRegex  = regexp.MustCompile(`https?://[^\s"]+`)
	pathRegex = regexp.MustCompile(`(?:[A-Za-z]:\\|/)[A-Za-z0-9/\\_.-]+\.(?:cfg|ini|db)\b`)
)

// Status is the outcome of one step
type Status struct {
	Step      string    `json:"step"`
	Healthy   bool      `json:"healthy"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Steps     []Status  `json:"steps,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == StateHealthy
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == StateDegraded
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == StateUnhealthy
}

func newStatus(step, state, message string) Status {
	return Status{
		Step:      step,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a healthy status
func NewHealthy(step, message string) Status {
	return newStatus(step, StateHealthy, message)
}

// NewUnhealthy creates an unhealthy status
func NewUnhealthy(step, message string) Status {
	return newStatus(step, StateUnhealthy, message)
}

// NewDegraded creates a degraded status
func NewDegraded(step, message string) Status {
	return newStatus(step, StateDegraded, message)
}

// FromError returns a degraded status carrying the sanitized error text, or a
// healthy one when err is nil.
func FromError(step string, err error, okMessage string) Status {
	if err == nil {
		return NewHealthy(step, okMessage)
	}
	return NewDegraded(step, sanitize(err.Error()))
}

// sanitize strips URLs and settings/database file paths from a message.
func sanitize(msg string) string {
	msg = urlRegex.ReplaceAllString(msg, "[URL]")
	return pathRegex.ReplaceAllString(msg, "[PATH]")
}

// Aggregate combines step statuses: any unhealthy step makes the whole
// unhealthy, otherwise any degraded step makes it degraded.
func Aggregate(name string, steps []Status) Status {
	if len(steps) == 0 {
		return NewHealthy(name, "No steps recorded")
	}

	hasUnhealthy, hasDegraded := false, false
	for _, s := range steps {
		switch {
		case s.IsUnhealthy():
			hasUnhealthy = true
		case s.IsDegraded():
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case hasUnhealthy:
		status = NewUnhealthy(name, "One or more steps are unhealthy")
	case hasDegraded:
		status = NewDegraded(name, "One or more steps are degraded")
	default:
		status = NewHealthy(name, "All steps are healthy")
	}
	status.Steps = append([]Status(nil), steps...)
	return status
}
