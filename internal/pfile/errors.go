package pfile

import (
	"errors"
	"fmt"

	"pfreg/internal/para"
)

var (
	// ErrNameTooLong indicates a name or status longer than the fixed maximum
	ErrNameTooLong = para.ErrNameTooLong

	// ErrInvalidID indicates an unknown or stale file id
	ErrInvalidID = errors.New("invalid file id")

	// ErrAlreadyOpen indicates an open of a record that is already open
	ErrAlreadyOpen = errors.New("file already open")

	// ErrNotOpen indicates an operation that needs an open record
	ErrNotOpen = errors.New("file not open")

	// ErrNullHandle indicates the storage layer produced no usable handle
	ErrNullHandle = errors.New("open produced no file handle")

	// ErrCloseFailed indicates flushing or releasing a handle failed
	ErrCloseFailed = errors.New("file close failed")

	// ErrEraseFailed indicates deleting the physical file failed
	ErrEraseFailed = errors.New("file erase failed")

	// ErrFlushFailed indicates forcing buffers to storage failed
	ErrFlushFailed = errors.New("file flush failed")

	// ErrModeMismatch indicates a name re-registered with a different sharing mode
	ErrModeMismatch = errors.New("name registered with a different sharing mode")

	// ErrBadStatus indicates an open mode string that is not a valid fopen mode
	ErrBadStatus = errors.New("invalid open mode")

	// ErrCorruptTable indicates the file table cannot be trusted (e.g. a repeated id)
	ErrCorruptTable = errors.New("corrupt file table")

	// ErrWriteFailed indicates a raw write failed
	ErrWriteFailed = errors.New("file write failed")

	// ErrReadFailed indicates a raw read failed
	ErrReadFailed = errors.New("file read failed")

	// ErrSeekFailed indicates a raw seek failed
	ErrSeekFailed = errors.New("file seek failed")

	// ErrSaveFailed indicates the checkpoint could not be written
	ErrSaveFailed = errors.New("checkpoint save failed")

	// ErrRecoverFailed indicates the checkpoint could not be read back
	ErrRecoverFailed = errors.New("checkpoint recover failed")
)

// Code is a stable, string-valued error classification.
type Code string

// Error codes, one per sentinel error.
const (
	CodeNameTooLong   Code = "NAME_TOO_LONG"
	CodeInvalidID     Code = "INVALID_ID"
	CodeAlreadyOpen   Code = "ALREADY_OPEN"
	CodeNotOpen       Code = "NOT_OPEN"
	CodeNullHandle    Code = "NULL_HANDLE"
	CodeCloseFailed   Code = "CLOSE_FAILED"
	CodeEraseFailed   Code = "ERASE_FAILED"
	CodeFlushFailed   Code = "FLUSH_FAILED"
	CodeModeMismatch  Code = "MODE_MISMATCH"
	CodeBadStatus     Code = "BAD_STATUS"
	CodeCorruptTable  Code = "CORRUPT_TABLE"
	CodeWriteFailed   Code = "WRITE_FAILED"
	CodeReadFailed    Code = "READ_FAILED"
	CodeSeekFailed    Code = "SEEK_FAILED"
	CodeSaveFailed    Code = "SAVE_FAILED"
	CodeRecoverFailed Code = "RECOVER_FAILED"
	CodeUnknown       Code = "UNKNOWN"
	CodeOK            Code = "OK"
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrNameTooLong, CodeNameTooLong},
	{ErrInvalidID, CodeInvalidID},
	{ErrAlreadyOpen, CodeAlreadyOpen},
	{ErrNotOpen, CodeNotOpen},
	{ErrNullHandle, CodeNullHandle},
	{ErrCloseFailed, CodeCloseFailed},
	{ErrEraseFailed, CodeEraseFailed},
	{ErrFlushFailed, CodeFlushFailed},
	{ErrModeMismatch, CodeModeMismatch},
	{ErrBadStatus, CodeBadStatus},
	{ErrCorruptTable, CodeCorruptTable},
	{ErrWriteFailed, CodeWriteFailed},
	{ErrReadFailed, CodeReadFailed},
	{ErrSeekFailed, CodeSeekFailed},
	{ErrSaveFailed, CodeSaveFailed},
	{ErrRecoverFailed, CodeRecoverFailed},
}

// CodeOf classifies err. A nil error is CodeOK.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}

// Error wraps a registry failure with the operation and the record it concerns.
type Error struct {
	Op   string // Operation that failed (e.g., "open", "erase")
	ID   ID     // Record id, or NoID when the failure precedes id assignment
	Name string // Logical name, when known
	Err  error  // Underlying error; matches one of the Err* kinds with errors.Is
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	switch {
	case e.Name == "" && e.ID == NoID:
		return fmt.Sprintf("pfile: %s failed: %v", e.Op, e.Err)
	case e.Name == "":
		return fmt.Sprintf("pfile: %s of id %d failed: %v", e.Op, e.ID, e.Err)
	case e.ID == NoID:
		return fmt.Sprintf("pfile: %s of %q failed: %v", e.Op, e.Name, e.Err)
	default:
		return fmt.Sprintf("pfile: %s of %q (id %d) failed: %v", e.Op, e.Name, e.ID, e.Err)
	}
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds an *Error. kind is one of the Err* sentinels; cause, if
// non-nil, is the storage error that triggered it.
func newError(op string, id ID, name string, kind error, cause error) *Error {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %w", kind, cause)
	}
	e := &Error{Op: op, ID: id, Name: name, Err: err}
	errLogger.Debug("%v", e)
	return e
}

// Operation names used in errors and log lines
const (
	OpAdd     = "add"
	OpRemove  = "remove"
	OpOpen    = "open"
	OpClose   = "close"
	OpErase   = "erase"
	OpFlush   = "flush"
	OpWrite   = "write"
	OpRead    = "read"
	OpSeek    = "seek"
	OpPos     = "get_pos"
	OpSave    = "save"
	OpRecover = "recover"
)
