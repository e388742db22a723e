package pfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WriteValues writes a fixed-size value or slice of fixed-size values (for
// example []float64 from a tensor buffer) at pos in native byte order.
// The byte count is element size times element count.
func (r *Raw) WriteValues(id ID, pos int64, data any) (int, error) {
	size := binary.Size(data)
	if size < 0 {
		return 0, newError(OpWrite, id, "", ErrWriteFailed, fmt.Errorf("%T is not a fixed-size type", data))
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if err := binary.Write(buf, binary.NativeEndian, data); err != nil {
		return 0, newError(OpWrite, id, "", ErrWriteFailed, err)
	}
	return r.Write(id, pos, buf.Bytes())
}

// ReadValues fills out, a pointer to a fixed-size value or a slice of
// fixed-size values, from pos in native byte order.
func (r *Raw) ReadValues(id ID, pos int64, out any) (int, error) {
	size := binary.Size(out)
	if size < 0 {
		return 0, newError(OpRead, id, "", ErrReadFailed, fmt.Errorf("%T is not a fixed-size type", out))
	}
	p := make([]byte, size)
	n, err := r.Read(id, pos, p)
	if err != nil {
		return n, err
	}
	if err := binary.Read(bytes.NewReader(p), binary.NativeEndian, out); err != nil {
		return n, newError(OpRead, id, "", ErrReadFailed, err)
	}
	return n, nil
}
