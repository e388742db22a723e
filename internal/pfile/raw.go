package pfile

import (
	"errors"
	"io"
	"os"
	"sync"

	"pfreg/internal/para"

	"github.com/go-git/go-billy/v5"
)

// syncer is implemented by handles that can force their buffers to storage
// (osfs files do, memfs files do not).
type syncer interface {
	Sync() error
}

// Raw is the unchecked layer over the file table. It never consults the
// participation policy: callers must already know the calling task is
// responsible for the records they touch. Misuse (an unknown id, I/O on a
// closed record) fails fast with ErrInvalidID or ErrNotOpen.
type Raw struct {
	fs    billy.Filesystem
	table *table
	mu    sync.Mutex
}

func newRaw(fs billy.Filesystem) *Raw {
	return &Raw{fs: fs, table: newTable()}
}

// Add registers name with an already-resolved path. Adding a name that is
// already registered with the same sharing mode returns the existing id.
func (r *Raw) Add(name, path string, sharing para.Sharing) (ID, error) {
	nm, err := NewName(name)
	if err != nil {
		return NoID, newError(OpAdd, NoID, name, ErrNameTooLong, nil)
	}
	if len(path) > para.MaxNameLen {
		return NoID, newError(OpAdd, NoID, name, ErrNameTooLong, nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.table.lookup(name); ok {
		rec, _ := r.table.get(id)
		if rec.sharing != sharing {
			return NoID, newError(OpAdd, id, name, ErrModeMismatch, nil)
		}
		tableLogger.Trace("Name %q already registered as id %d", name, id)
		return id, nil
	}

	id := r.table.insert(&record{name: nm, path: path, sharing: sharing})
	tableLogger.Debug("Registered %q as id %d (path %q, %s)", name, id, path, sharing)
	return id, nil
}

// Remove drops the record from the table and leaves the file on disk.
// An open handle is released first.
func (r *Raw) Remove(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.table.get(id)
	if !ok {
		return newError(OpRemove, id, "", ErrInvalidID, nil)
	}
	if rec.open {
		tableLogger.Warn("Removing open file %q (id %d); releasing handle", rec.name.String(), id)
		if err := r.closeLocked(rec); err != nil {
			tableLogger.Warn("Release of %q failed: %v", rec.name.String(), err)
		}
	}
	r.table.drop(id)
	tableLogger.Debug("Removed id %d (%q)", id, rec.name.String())
	return nil
}

// Lookup returns the id registered for name.
func (r *Raw) Lookup(name string) (ID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.lookup(name)
}

// IsOpen reports whether id names an open record.
func (r *Raw) IsOpen(id ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.table.get(id)
	return ok && rec.open
}

// Open opens the record's physical path with an fopen-style status. An empty
// status reuses the one from the previous open.
func (r *Raw) Open(id ID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.table.get(id)
	if !ok {
		return newError(OpOpen, id, "", ErrInvalidID, nil)
	}
	return r.openLocked(rec, status)
}

func (r *Raw) openLocked(rec *record, status string) error {
	name := rec.name.String()
	if rec.open {
		return newError(OpOpen, rec.id, name, ErrAlreadyOpen, nil)
	}
	if status == "" {
		status = rec.status.String()
	}
	st, err := NewName(status)
	if err != nil {
		return newError(OpOpen, rec.id, name, ErrNameTooLong, nil)
	}
	m, err := parseStatus(status)
	if err != nil {
		return newError(OpOpen, rec.id, name, err, nil)
	}

	fileLogger.Debug("Opening %q (id %d) at %q with mode %q", name, rec.id, rec.path, status)
	handle, err := r.fs.OpenFile(rec.path, m.flag, 0644)
	if err != nil || handle == nil {
		return newError(OpOpen, rec.id, name, ErrNullHandle, err)
	}

	var pos int64
	if m.append {
		pos, err = handle.Seek(0, io.SeekEnd)
		if err != nil {
			_ = handle.Close()
			return newError(OpOpen, rec.id, name, ErrSeekFailed, err)
		}
	}

	rec.status = st
	rec.append = m.append
	rec.handle = handle
	rec.pos = pos
	rec.open = true
	return nil
}

// setStatus records an open mode without opening. Tasks that are not
// responsible for a file use it to keep their metadata in step.
func (r *Raw) setStatus(id ID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.table.get(id)
	if !ok {
		return newError(OpOpen, id, "", ErrInvalidID, nil)
	}
	if status == "" {
		return nil
	}
	st, err := NewName(status)
	if err != nil {
		return newError(OpOpen, id, rec.name.String(), ErrNameTooLong, nil)
	}
	if _, err := parseStatus(status); err != nil {
		return newError(OpOpen, id, rec.name.String(), err, nil)
	}
	rec.status = st
	return nil
}

// Close flushes and releases the record's handle. The record is closed
// afterwards even when the release reports an error.
func (r *Raw) Close(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.table.get(id)
	if !ok {
		return newError(OpClose, id, "", ErrInvalidID, nil)
	}
	if !rec.open {
		return newError(OpClose, id, rec.name.String(), ErrNotOpen, nil)
	}
	return r.closeLocked(rec)
}

func (r *Raw) closeLocked(rec *record) error {
	fileLogger.Debug("Closing %q (id %d)", rec.name.String(), rec.id)
	handle := rec.handle
	rec.handle = nil
	rec.open = false
	rec.pos = 0

	var syncErr error
	if s, ok := handle.(syncer); ok {
		syncErr = s.Sync()
	}
	closeErr := handle.Close()
	if err := errors.Join(syncErr, closeErr); err != nil {
		return newError(OpClose, rec.id, rec.name.String(), ErrCloseFailed, err)
	}
	return nil
}

// CloseAll closes every open record. It keeps going past failures and
// returns the first one.
func (r *Raw) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for _, id := range r.table.ids() {
		rec, _ := r.table.get(id)
		if !rec.open {
			continue
		}
		if err := r.closeLocked(rec); err != nil {
			tableLogger.Warn("Close of %q (id %d) failed, continuing: %v", rec.name.String(), id, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Erase closes the record if open, deletes its physical file and drops it
// from the table. The record is dropped even when deletion fails.
func (r *Raw) Erase(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eraseLocked(id)
}

func (r *Raw) eraseLocked(id ID) error {
	rec, ok := r.table.get(id)
	if !ok {
		return newError(OpErase, id, "", ErrInvalidID, nil)
	}
	name := rec.name.String()

	var closeErr error
	if rec.open {
		closeErr = r.closeLocked(rec)
	}

	fileLogger.Debug("Erasing %q (id %d) at %q", name, id, rec.path)
	removeErr := r.fs.Remove(rec.path)
	r.table.drop(id)

	if closeErr != nil {
		return closeErr
	}
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return newError(OpErase, id, name, ErrEraseFailed, removeErr)
	}
	return nil
}

// EraseAll erases every record, best-effort, returning the first failure.
func (r *Raw) EraseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for _, id := range r.table.ids() {
		if err := r.eraseLocked(id); err != nil {
			tableLogger.Warn("Erase of id %d failed, continuing: %v", id, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Flush forces the record's buffers to storage.
func (r *Raw) Flush(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.openRecord(OpFlush, id)
	if err != nil {
		return err
	}
	if s, ok := rec.handle.(syncer); ok {
		if err := s.Sync(); err != nil {
			return newError(OpFlush, id, rec.name.String(), ErrFlushFailed, err)
		}
	}
	return nil
}

// Write writes p at byte offset pos, seeking only when pos differs from the
// stored position. On append-mode records the data lands at end of file.
func (r *Raw) Write(id ID, pos int64, p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.openRecord(OpWrite, id)
	if err != nil {
		return 0, err
	}
	if err := r.seekLocked(rec, pos); err != nil {
		return 0, err
	}

	n, err := rec.handle.Write(p)
	rec.pos += int64(n)
	if rec.append {
		if end, serr := rec.handle.Seek(0, io.SeekCurrent); serr == nil {
			rec.pos = end
		}
	}
	if err != nil {
		return n, newError(OpWrite, id, rec.name.String(), ErrWriteFailed, err)
	}
	if n < len(p) {
		return n, newError(OpWrite, id, rec.name.String(), ErrWriteFailed, io.ErrShortWrite)
	}
	return n, nil
}

// Read fills p from byte offset pos. A read that ends early reports io.EOF
// (nothing read) or io.ErrUnexpectedEOF (partial), matched with errors.Is.
func (r *Raw) Read(id ID, pos int64, p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.openRecord(OpRead, id)
	if err != nil {
		return 0, err
	}
	if err := r.seekLocked(rec, pos); err != nil {
		return 0, err
	}

	n, err := io.ReadFull(rec.handle, p)
	rec.pos += int64(n)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, &Error{Op: OpRead, ID: id, Name: rec.name.String(), Err: err}
	default:
		return n, newError(OpRead, id, rec.name.String(), ErrReadFailed, err)
	}
}

// Seek moves the record to byte offset pos.
func (r *Raw) Seek(id ID, pos int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.openRecord(OpSeek, id)
	if err != nil {
		return err
	}
	return r.seekLocked(rec, pos)
}

func (r *Raw) seekLocked(rec *record, pos int64) error {
	if pos == rec.pos {
		return nil
	}
	got, err := rec.handle.Seek(pos, io.SeekStart)
	if err != nil {
		return newError(OpSeek, rec.id, rec.name.String(), ErrSeekFailed, err)
	}
	rec.pos = got
	return nil
}

// Pos returns the stored position of an open record without asking storage.
func (r *Raw) Pos(id ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.openRecord(OpPos, id)
	if err != nil {
		return 0, err
	}
	return rec.pos, nil
}

func (r *Raw) openRecord(op string, id ID) (*record, error) {
	rec, ok := r.table.get(id)
	if !ok {
		return nil, newError(op, id, "", ErrInvalidID, nil)
	}
	if !rec.open {
		return nil, newError(op, id, rec.name.String(), ErrNotOpen, nil)
	}
	return rec, nil
}

// Records returns a snapshot of every record, ascending by id.
func (r *Raw) Records() []RecordInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.infos()
}

// Record returns a snapshot of one record.
func (r *Raw) Record(id ID) (RecordInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.table.get(id)
	if !ok {
		return RecordInfo{}, false
	}
	return rec.info(), true
}

// Len returns the number of registered records.
func (r *Raw) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.len()
}

// Names returns the id → name mapping.
func (r *Raw) Names() map[ID]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.names()
}
