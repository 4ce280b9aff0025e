package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeConfig     = "CONFIG_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeExecution  = "EXECUTION_ERROR"
)

// PlanError is the structured error type for all gridplan operations.
type PlanError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Step    string `json:"step,omitempty"`
	Network string `json:"network,omitempty"`
	Cause   error  `json:"-"`
}

func (e *PlanError) Error() string {
	switch {
	case e.Step != "":
		return fmt.Sprintf("[%s] step %s: %s", e.Code, e.Step, e.Message)
	case e.Network != "":
		return fmt.Sprintf("[%s] network %s: %s", e.Code, e.Network, e.Message)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

func (e *PlanError) Unwrap() error {
	return e.Cause
}

// NewError creates a new PlanError.
func NewError(code, message string) *PlanError {
	return &PlanError{Code: code, Message: message}
}

// NewErrorf creates a new PlanError with a formatted message.
func NewErrorf(code, format string, args ...any) *PlanError {
	return &PlanError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStep attaches a step name to the error.
func (e *PlanError) WithStep(step string) *PlanError {
	e.Step = step
	return e
}

// WithNetwork attaches a network name to the error.
func (e *PlanError) WithNetwork(name string) *PlanError {
	e.Network = name
	return e
}

// WithCause attaches an underlying cause.
func (e *PlanError) WithCause(err error) *PlanError {
	e.Cause = err
	return e
}
