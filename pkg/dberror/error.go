package dberror

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory tells callers how to react: fix the request, retry, or escalate.
type ErrorCategory int

const (
	ErrCategoryUser        ErrorCategory = iota // bad input or API misuse
	ErrCategoryTransient                        // retry may succeed (full buffer pool)
	ErrCategorySystem                           // I/O, missing files, configuration
	ErrCategoryData                             // undecodable pages, out-of-range plaintexts
	ErrCategoryConcurrency                      // deadlock victims, lock timeouts
)

var categoryNames = [...]string{"USER", "TRANSIENT", "SYSTEM", "DATA", "CONCURRENCY"}

func (c ErrorCategory) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "UNKNOWN"
	}
	return categoryNames[c]
}

// DBError is the engine's structured error. Instances of one kind share a
// Code and match that kind's sentinel under errors.Is.
type DBError struct {
	Code     string
	Category ErrorCategory
	Message  string

	Detail string // instance specifics, e.g. "page 7, file has 3 pages"
	Hint   string

	Operation string // e.g. "ReadPage", "EncryptTable"
	Component string // e.g. "HeapFile", "Transformer"

	Cause error
	Stack []uintptr
}

// New creates an error of an ad hoc kind.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// Wrap turns err into a system DBError with the given code. An err that
// already holds a DBError only gets its missing location filled in.
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	var existing *DBError
	if errors.As(err, &existing) {
		if existing.Operation == "" {
			existing.Operation = operation
		}
		if existing.Component == "" {
			existing.Component = component
		}
		return existing
	}

	return &DBError{
		Code:      code,
		Category:  ErrCategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// captureStack skips runtime.Callers, itself and the constructor.
func captureStack() []uintptr {
	pcs := make([]uintptr, 32)
	return pcs[:runtime.Callers(3, pcs)]
}

// Error renders "[CODE] message: detail (operation: op, component: c) hint: h caused by: cause".
func (e *DBError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.Detail)
	}
	switch {
	case e.Operation != "" && e.Component != "":
		fmt.Fprintf(&b, " (operation: %s, component: %s)", e.Operation, e.Component)
	case e.Operation != "":
		fmt.Fprintf(&b, " (operation: %s)", e.Operation)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " hint: %s", e.Hint)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " caused by: %v", e.Cause)
	}
	return b.String()
}

func (e *DBError) Unwrap() error {
	return e.Cause
}

// Is matches by Code so errors.Is(err, ErrOutOfRange) holds for every
// OutOfRange instance.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	return ok && t.Code != "" && t.Code == e.Code
}

func (e *DBError) WithDetail(format string, args ...any) *DBError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

func (e *DBError) WithHint(hint string) *DBError {
	e.Hint = hint
	return e
}

// In records where the error happened.
func (e *DBError) In(operation, component string) *DBError {
	e.Operation = operation
	e.Component = component
	return e
}

// FormatStack renders the captured call stack, one frame per entry.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Stack trace:\n")
	frames := runtime.CallersFrames(e.Stack)
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "  %s\n    %s:%d\n", f.Function, f.File, f.Line)
		if !more {
			return b.String()
		}
	}
}
