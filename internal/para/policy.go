package para

import (
	"errors"
	"fmt"
	"strconv"
)

// MaxNameLen is the longest logical name, status, or resolved path accepted, in bytes.
const MaxNameLen = 32

// ErrNameTooLong is returned when a name or its per-task variant exceeds MaxNameLen.
var ErrNameTooLong = errors.New("name too long")

// Sharing says how many physical copies back a logical file.
type Sharing int

const (
	// Shared files have one physical copy written by the root task.
	Shared Sharing = iota
	// Private files have one physical copy per task.
	Private
)

func (s Sharing) String() string {
	switch s {
	case Shared:
		return "shared"
	case Private:
		return "private"
	default:
		return "Sharing(" + strconv.Itoa(int(s)) + ")"
	}
}

// Responsible reports whether the calling task performs physical I/O for a
// file with the given sharing mode.
func Responsible(ctx Context, sharing Sharing) bool {
	if sharing == Private {
		return true
	}
	return ctx.Rank() == ctx.RootRank()
}

// Resolve maps a logical name to the on-disk path for the calling task.
// Private names get a ".<rank>" suffix, shared names are returned unchanged.
func Resolve(ctx Context, name string, sharing Sharing) (string, error) {
	if len(name) > MaxNameLen {
		return "", fmt.Errorf("%w: %q is %d bytes, max %d", ErrNameTooLong, name, len(name), MaxNameLen)
	}
	if sharing != Private {
		return name, nil
	}
	path := name + "." + strconv.Itoa(ctx.Rank())
	if len(path) > MaxNameLen {
		return "", fmt.Errorf("%w: %q is %d bytes, max %d", ErrNameTooLong, path, len(path), MaxNameLen)
	}
	return path, nil
}
