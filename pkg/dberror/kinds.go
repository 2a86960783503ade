package dberror

import (
	"errors"
	"fmt"
)

// Sentinels for each error kind. Compare with errors.Is; never return these
// directly, use the constructors below so each instance gets its own stack.
var (
	ErrOutOfRange           = &DBError{Code: "OUT_OF_RANGE", Category: ErrCategoryUser}
	ErrIllegalState         = &DBError{Code: "ILLEGAL_STATE", Category: ErrCategoryUser}
	ErrInvalidTuple         = &DBError{Code: "INVALID_TUPLE", Category: ErrCategoryUser}
	ErrLockConflict         = &DBError{Code: "LOCK_CONFLICT", Category: ErrCategoryConcurrency}
	ErrTransactionAbort     = &DBError{Code: "TRANSACTION_ABORT", Category: ErrCategoryConcurrency}
	ErrUnsupportedFieldType = &DBError{Code: "UNSUPPORTED_FIELD_TYPE", Category: ErrCategoryUser}
	ErrValueOutOfRange      = &DBError{Code: "VALUE_OUT_OF_RANGE", Category: ErrCategoryData}
	ErrStorageIO            = &DBError{Code: "STORAGE_IO", Category: ErrCategorySystem}
	ErrBufferFull           = &DBError{Code: "BUFFER_FULL", Category: ErrCategoryTransient}
	ErrSchemaMismatch       = &DBError{Code: "SCHEMA_MISMATCH", Category: ErrCategoryUser}
	ErrNotFound             = &DBError{Code: "NOT_FOUND", Category: ErrCategoryUser}
)

func newKind(kind *DBError, format string, args ...any) *DBError {
	return &DBError{
		Code:     kind.Code,
		Category: kind.Category,
		Message:  fmt.Sprintf(format, args...),
		Stack:    captureStack(),
	}
}

func OutOfRange(format string, args ...any) *DBError {
	return newKind(ErrOutOfRange, format, args...)
}

func IllegalState(format string, args ...any) *DBError {
	return newKind(ErrIllegalState, format, args...)
}

func InvalidTuple(format string, args ...any) *DBError {
	return newKind(ErrInvalidTuple, format, args...)
}

func LockConflict(format string, args ...any) *DBError {
	return newKind(ErrLockConflict, format, args...)
}

func TransactionAbort(format string, args ...any) *DBError {
	return newKind(ErrTransactionAbort, format, args...)
}

func UnsupportedFieldType(format string, args ...any) *DBError {
	return newKind(ErrUnsupportedFieldType, format, args...)
}

func ValueOutOfRange(format string, args ...any) *DBError {
	return newKind(ErrValueOutOfRange, format, args...)
}

func BufferFull(format string, args ...any) *DBError {
	return newKind(ErrBufferFull, format, args...)
}

func SchemaMismatch(format string, args ...any) *DBError {
	return newKind(ErrSchemaMismatch, format, args...)
}

func NotFound(format string, args ...any) *DBError {
	return newKind(ErrNotFound, format, args...)
}

// StorageIO wraps an underlying I/O failure.
func StorageIO(cause error, format string, args ...any) *DBError {
	e := newKind(ErrStorageIO, format, args...)
	e.Cause = cause
	return e
}

// IsRetryable reports whether err asks the caller to rerun the enclosing
// transaction from scratch.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionAbort) || errors.Is(err, ErrLockConflict)
}

// CodeOf returns the code of the outermost DBError in err's chain, or "".
func CodeOf(err error) string {
	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Code
	}
	return ""
}
