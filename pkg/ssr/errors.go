package ssr

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a render failure. It is a string so that it can be
// carried over the runner wire protocol and rebuilt on the other side.
type ErrorKind string

const (
	KindCompile       ErrorKind = "compile"
	KindInstantiate   ErrorKind = "instantiate"
	KindEvaluation    ErrorKind = "evaluation"
	KindMissingExport ErrorKind = "missing_export"
	KindInvocation    ErrorKind = "invocation"
	KindNotCallable   ErrorKind = "not_callable"
	KindClosed        ErrorKind = "closed"
)

var (
	ErrorCompile       = errors.New("no runnable script")
	ErrorInstantiate   = errors.New("module failed to instantiate")
	ErrorEvaluation    = errors.New("module threw during evaluation")
	ErrorMissingExport = errors.New("missing export")
	ErrorInvocation    = errors.New("render function threw")
	ErrorNotCallable   = errors.New("not callable")
	ErrorClosed        = errors.New("engine is closed")
)

var kindErrors = map[ErrorKind]error{
	KindCompile:       ErrorCompile,
	KindInstantiate:   ErrorInstantiate,
	KindEvaluation:    ErrorEvaluation,
	KindMissingExport: ErrorMissingExport,
	KindInvocation:    ErrorInvocation,
	KindNotCallable:   ErrorNotCallable,
	KindClosed:        ErrorClosed,
}

// RenderError is returned for every recoverable render failure.
// Message holds the guest exception message for evaluation and invocation
// failures and a diagnostic for the others.
type RenderError struct {
	Kind    ErrorKind
	Message string
}

// NewError builds a RenderError of the given kind.
func NewError(kind ErrorKind, msg string) *RenderError {
	return &RenderError{Kind: kind, Message: msg}
}

func newErrorf(kind ErrorKind, format string, args ...any) *RenderError {
	return NewError(kind, fmt.Sprintf(format, args...))
}

func (e *RenderError) Error() string {
	sentinel, ok := kindErrors[e.Kind]
	if !ok {
		return e.Message
	}
	if e.Message == "" {
		return sentinel.Error()
	}
	return fmt.Sprintf("%s: %s", sentinel, e.Message)
}

// Is lets errors.Is match a RenderError against the sentinel of its kind.
func (e *RenderError) Is(target error) bool {
	sentinel, ok := kindErrors[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the kind of err if it is (or wraps) a RenderError.
func KindOf(err error) (ErrorKind, bool) {
	var re *RenderError
	if errors.As(err, &re) {
		return re.Kind, true
	}
	return "", false
}
