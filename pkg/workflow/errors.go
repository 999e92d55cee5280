// Package workflow contains the durable run driver that takes a task event
// through sandbox provisioning, the agent network, and result persistence.
package workflow

import (
	"strings"
)

// InvalidCredentialsError is a fatal run failure caused by a rejected API key.
type InvalidCredentialsError struct {
	Err error
}

func (e *InvalidCredentialsError) Error() string {
	return "Invalid NVIDIA API key."
}

func (e *InvalidCredentialsError) Unwrap() error {
	return e.Err
}

// RateLimitError is a fatal run failure caused by provider rate limiting.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return "NVIDIA API rate limit exceeded. Try again later."
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// RunFailedError wraps any other fatal run failure.
type RunFailedError struct {
	Err error
}

func (e *RunFailedError) Error() string {
	return "Zixxy failed: " + e.Err.Error()
}

func (e *RunFailedError) Unwrap() error {
	return e.Err
}

// failureMessage renders a classified run error the way it is shown to the
// user: always under the failure prefix, which RunFailedError already
// carries.
func failureMessage(classified error) string {
	const prefix = "Zixxy failed: "
	msg := classified.Error()
	if strings.HasPrefix(msg, prefix) {
		return msg
	}
	return prefix + msg
}

// classifyRunError maps a run failure to its user-facing error. 401 and 429
// get specific messages; everything else keeps the original message under a
// generic prefix.
func classifyRunError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "401"):
		return &InvalidCredentialsError{Err: err}
	case strings.Contains(msg, "429"):
		return &RateLimitError{Err: err}
	default:
		return &RunFailedError{Err: err}
	}
}
