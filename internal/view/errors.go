package view

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"pfreg/internal/logging"
	"pfreg/internal/pfile"
)

var (
	errLogger = logging.GetLogger().WithPrefix("error")

	// ErrRecordGone indicates the record behind a node was removed
	ErrRecordGone = errors.New("record no longer registered")

	// ErrReadOnly indicates attempt to modify the read-only view
	ErrReadOnly = errors.New("view is read-only")
)

// Error wraps view errors with the operation and the affected path.
type Error struct {
	Op   string // Operation that failed (e.g., "lookup", "open")
	Path string // Affected path or record
	Err  error  // Underlying error
}

// Error implements the error interface, providing a formatted error message
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("operation %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("operation %s on %s failed: %v", e.Op, e.Path, e.Err)
}

// Unwrap implements error unwrapping for the errors.Is/As functions
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new Error with the given operation, path, and underlying error
func NewError(op string, path string, err error) *Error {
	vErr := &Error{
		Op:   op,
		Path: path,
		Err:  err,
	}
	errLogger.Debug("Created new view error: %v", vErr)
	return vErr
}

// ToFuseError converts an error into the errno FUSE expects.
func ToFuseError(err error) error {
	if err == nil {
		return nil
	}

	errLogger.Trace("Converting error to FUSE error: %v", err)
	switch {
	case errors.Is(err, ErrRecordGone), errors.Is(err, pfile.ErrInvalidID):
		return syscall.ENOENT
	case errors.Is(err, ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, pfile.ErrNameTooLong):
		return syscall.ENAMETOOLONG
	case errors.Is(err, pfile.ErrNotOpen):
		return syscall.EBADF
	case errors.Is(err, os.ErrNotExist):
		return syscall.ENOENT
	case errors.Is(err, os.ErrPermission):
		return syscall.EACCES
	default:
		errLogger.Debug("Unknown error type, returning EIO: %v", err)
		return syscall.EIO
	}
}

// Common operation names for consistent logging and error reporting
const (
	OpLookup   = "lookup"   // Looking up a name
	OpOpen     = "open"     // Opening a file
	OpRead     = "read"     // Reading from a file
	OpGetattr  = "getattr"  // Getting file attributes
	OpGetxattr = "getxattr" // Reading record metadata
)
