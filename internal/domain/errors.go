package domain

import "fmt"

// ErrorKind is the closed set of error classifications a workflow execution
// can produce. Every fatal or action-level failure in prana carries one of
// these kinds; nothing outside this set is ever constructed.
type ErrorKind string

const (
	ErrCompileError               ErrorKind = "compile_error"
	ErrActionNotFound             ErrorKind = "action_not_found"
	ErrInvalidOutputPort          ErrorKind = "invalid_output_port"
	ErrActionError                ErrorKind = "action_error"
	ErrActionException            ErrorKind = "action_exception"
	ErrTemplateError              ErrorKind = "template_error"
	ErrTemplateLimit              ErrorKind = "template_limit"
	ErrTimeout                    ErrorKind = "timeout"
	ErrInvalidExecutionStatus     ErrorKind = "invalid_execution_status"
	ErrInvalidSuspendedExecution  ErrorKind = "invalid_suspended_execution"
)

// Error is prana's uniform error type. It carries a closed-set Kind, a
// human message, optional structured Details, and an optionally wrapped
// cause, mirroring the teacher's DomainError (Code + Message + wrapped Err)
// but substituted with the spec's own error-kind vocabulary (see §7).
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	Err     error
}

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewErrorWithDetails(kind ErrorKind, message string, details map[string]any, err error) *Error {
	return &Error{Kind: kind, Message: message, Details: details, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, domain.ErrKind(domain.ErrActionNotFound)) style
// matching by kind, since ErrorKind values aren't themselves errors.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// ErrKind builds a zero-value *Error usable as an errors.Is target to
// check only the Kind, e.g. errors.Is(err, domain.ErrKind(domain.ErrTimeout)).
func ErrKind(kind ErrorKind) *Error {
	return &Error{Kind: kind}
}

// ActionResultError is the {code, message, details} payload shape produced
// by a handler's Err result and by synthesized on-error completions, per
// §7: "action_error payloads use the shape {code, message, details?}."
type ActionResultError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
