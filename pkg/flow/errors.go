package flow

import "fmt"

// Code is a machine-readable error code reported through the flow's error
// channel.
type Code string

// Error codes. None of them are fatal: the flow keeps running in a degraded
// state after reporting.
const (
	CodeMissingHandleContext   Code = "MISSING_HANDLE_CONTEXT"
	CodeUnknownNodeType        Code = "UNKNOWN_NODE_TYPE"
	CodeInvalidSelectionTarget Code = "INVALID_SELECTION_TARGET"
	CodeCyclicParent           Code = "CYCLIC_PARENT"
	CodeMissingParent          Code = "MISSING_PARENT"
	CodeNodeNotFound           Code = "NODE_NOT_FOUND"
	CodeEdgeNotFound           Code = "EDGE_NOT_FOUND"
	CodeInvalidEdgeSource      Code = "INVALID_EDGE_SOURCE"
	CodeConnectionRule         Code = "CONNECTION_RULE"
)

// Error is a structured, recoverable error.
type Error struct {
	Code    Code
	Message string
	ID      string // node or edge id the error is about, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches errors by code, so errors.Is(err, &Error{Code: c}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Errorf builds an Error for the given id.
func Errorf(code Code, id, format string, args ...any) *Error {
	return &Error{Code: code, ID: id, Message: fmt.Sprintf(format, args...)}
}

// ErrorHandler receives recoverable errors.
type ErrorHandler func(code Code, message string)

// Report forwards errs to h. A nil handler drops them.
func Report(h ErrorHandler, errs ...*Error) {
	if h == nil {
		return
	}
	for _, err := range errs {
		if err != nil {
			h(err.Code, err.Message)
		}
	}
}
