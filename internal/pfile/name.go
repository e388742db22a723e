package pfile

import (
	"fmt"
	"os"
	"strings"

	"pfreg/internal/para"
)

// Name is a bounded-length string: a logical file name or an open mode.
// The zero value is the empty string.
type Name struct {
	buf [para.MaxNameLen]byte
	n   uint8
}

// NewName validates s against para.MaxNameLen. Longer input is rejected, never truncated.
func NewName(s string) (Name, error) {
	var nm Name
	if len(s) > len(nm.buf) {
		return Name{}, fmt.Errorf("%w: %q is %d bytes, max %d", ErrNameTooLong, s, len(s), len(nm.buf))
	}
	nm.n = uint8(copy(nm.buf[:], s))
	return nm, nil
}

func (nm Name) String() string {
	return string(nm.buf[:nm.n])
}

// Len returns the number of bytes stored.
func (nm Name) Len() int {
	return int(nm.n)
}

// IsEmpty reports whether nm holds the empty string.
func (nm Name) IsEmpty() bool {
	return nm.n == 0
}

// mode is a parsed fopen-style status string.
type mode struct {
	flag   int
	append bool
}

// parseStatus maps an fopen mode ("r", "w+b", "ab+", "wx", ...) to os.OpenFile flags.
func parseStatus(status string) (mode, error) {
	if status == "" {
		return mode{}, fmt.Errorf("%w: empty", ErrBadStatus)
	}

	var m mode
	switch status[0] {
	case 'r':
		m.flag = os.O_RDONLY
	case 'w':
		m.flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case 'a':
		m.flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		m.append = true
	default:
		return mode{}, fmt.Errorf("%w: %q", ErrBadStatus, status)
	}

	rest := status[1:]
	if strings.Count(rest, "+") > 1 || strings.Count(rest, "b") > 1 || strings.Count(rest, "x") > 1 {
		return mode{}, fmt.Errorf("%w: %q", ErrBadStatus, status)
	}
	for _, c := range rest {
		switch c {
		case '+':
			m.flag &^= os.O_RDONLY | os.O_WRONLY
			m.flag |= os.O_RDWR
		case 'b':
			// binary and text are the same on every supported platform
		case 'x':
			if status[0] != 'w' {
				return mode{}, fmt.Errorf("%w: %q", ErrBadStatus, status)
			}
			m.flag |= os.O_EXCL
		default:
			return mode{}, fmt.Errorf("%w: %q", ErrBadStatus, status)
		}
	}
	return m, nil
}
