package pfile

import (
	"errors"

	"pfreg/internal/logging"
	"pfreg/internal/para"
	"pfreg/internal/state"

	"github.com/go-git/go-billy/v5"
)

var (
	regLogger   = logging.GetLogger().WithPrefix("registry")
	tableLogger = logging.GetLogger().WithPrefix("table")
	fileLogger  = logging.GetLogger().WithPrefix("file")
	errLogger   = logging.GetLogger().WithPrefix("error")
)

// Registry is one task's view of the logical file set. Its methods take the
// parallel context explicitly, so several registries (one per simulated task)
// can live in one process.
//
// Methods taking an ID consult the participation policy: when the calling
// task is not responsible for the record, physical operations succeed as
// no-ops. Methods prefixed with S take a logical name instead of an id.
// Raw exposes the unchecked layer.
type Registry struct {
	raw   *Raw
	store *state.Store
}

// Option configures a Registry.
type Option func(*Registry)

// WithCheckpoint sets the store used by Save and Recover.
func WithCheckpoint(store *state.Store) Option {
	return func(r *Registry) {
		r.store = store
	}
}

// New creates an empty registry doing physical I/O on fs.
func New(fs billy.Filesystem, opts ...Option) *Registry {
	r := &Registry{raw: newRaw(fs)}
	for _, opt := range opts {
		opt(r)
	}
	regLogger.Debug("Created registry on %q", fs.Root())
	return r
}

// Raw returns the unchecked layer sharing this registry's table.
func (r *Registry) Raw() *Raw {
	return r.raw
}

// Shutdown force-closes every open record. The registry stays usable.
func (r *Registry) Shutdown() error {
	if err := r.raw.CloseAll(); err != nil {
		regLogger.Warn("Shutdown left errors: %v", err)
		return err
	}
	return nil
}

// MakeName returns the on-disk path name resolves to for the calling task.
func (r *Registry) MakeName(ctx para.Context, name string, sharing para.Sharing) (string, error) {
	path, err := para.Resolve(ctx, name, sharing)
	if err != nil {
		return "", newError(OpAdd, NoID, name, ErrNameTooLong, nil)
	}
	return path, nil
}

// Add registers name on the calling task. Every task must make the same
// sequence of Add calls; ids then agree across tasks. Re-adding a name with
// the same sharing mode returns its existing id.
func (r *Registry) Add(ctx para.Context, name string, sharing para.Sharing) (ID, error) {
	path, err := r.MakeName(ctx, name, sharing)
	if err != nil {
		return NoID, err
	}
	return r.raw.Add(name, path, sharing)
}

// Lookup returns the id of a registered name without registering it.
func (r *Registry) Lookup(name string) (ID, bool) {
	return r.raw.Lookup(name)
}

// ID returns the id of name, registering it as a shared file if needed.
func (r *Registry) ID(ctx para.Context, name string) (ID, error) {
	if id, ok := r.raw.Lookup(name); ok {
		return id, nil
	}
	return r.Add(ctx, name, para.Shared)
}

// responsible reports whether ctx does physical I/O for id.
func (r *Registry) responsible(ctx para.Context, op string, id ID) (bool, error) {
	rec, ok := r.raw.Record(id)
	if !ok {
		return false, newError(op, id, "", ErrInvalidID, nil)
	}
	return para.Responsible(ctx, rec.Sharing), nil
}

// Remove drops id from the table on the calling task; the file is untouched.
func (r *Registry) Remove(ctx para.Context, id ID) error {
	return r.raw.Remove(id)
}

// IsOpen reports whether id is open on the calling task.
func (r *Registry) IsOpen(ctx para.Context, id ID) bool {
	ok, err := r.responsible(ctx, OpOpen, id)
	if err != nil || !ok {
		return false
	}
	return r.raw.IsOpen(id)
}

// Open opens id with an fopen-style status if the calling task is
// responsible. Other tasks only record the status.
func (r *Registry) Open(ctx para.Context, id ID, status string) error {
	ok, err := r.responsible(ctx, OpOpen, id)
	if err != nil {
		return err
	}
	if !ok {
		regLogger.Trace("%v is not responsible for id %d; open is a no-op", ctx, id)
		return r.raw.setStatus(id, status)
	}
	return r.raw.Open(id, status)
}

// AddOpen registers name and opens it. When the open fails a registration
// made by this call is rolled back.
func (r *Registry) AddOpen(ctx para.Context, name string, sharing para.Sharing, status string) (ID, error) {
	_, existed := r.raw.Lookup(name)
	id, err := r.Add(ctx, name, sharing)
	if err != nil {
		return NoID, err
	}
	if err := r.Open(ctx, id, status); err != nil {
		if !existed {
			if rmErr := r.raw.Remove(id); rmErr != nil {
				regLogger.Error("Rollback of %q (id %d) failed: %v", name, id, rmErr)
			}
		}
		return NoID, err
	}
	return id, nil
}

// Close closes id if the calling task is responsible.
func (r *Registry) Close(ctx para.Context, id ID) error {
	ok, err := r.responsible(ctx, OpClose, id)
	if err != nil || !ok {
		return err
	}
	return r.raw.Close(id)
}

// CloseAll closes every record this task has open, best-effort.
func (r *Registry) CloseAll(ctx para.Context) error {
	return r.raw.CloseAll()
}

// Erase drops id from the table on every task; the responsible task also
// closes and deletes the physical file.
func (r *Registry) Erase(ctx para.Context, id ID) error {
	ok, err := r.responsible(ctx, OpErase, id)
	if err != nil {
		return err
	}
	if !ok {
		return r.raw.Remove(id)
	}
	return r.raw.Erase(id)
}

// EraseAll erases every record, best-effort, returning the first failure.
func (r *Registry) EraseAll(ctx para.Context) error {
	var first error
	for _, rec := range r.raw.Records() {
		if err := r.Erase(ctx, rec.ID); err != nil {
			regLogger.Warn("Erase of %q failed, continuing: %v", rec.Name, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Flush forces id's buffers to storage if the calling task is responsible.
func (r *Registry) Flush(ctx para.Context, id ID) error {
	ok, err := r.responsible(ctx, OpFlush, id)
	if err != nil || !ok {
		return err
	}
	return r.raw.Flush(id)
}

// lookupName resolves a logical name for the S-prefixed entry points.
func (r *Registry) lookupName(op, name string) (ID, error) {
	id, ok := r.raw.Lookup(name)
	if !ok {
		return NoID, newError(op, NoID, name, ErrInvalidID, nil)
	}
	return id, nil
}

// SRemove is Remove by logical name.
func (r *Registry) SRemove(ctx para.Context, name string) error {
	id, err := r.lookupName(OpRemove, name)
	if err != nil {
		return err
	}
	return r.Remove(ctx, id)
}

// IsSOpen is IsOpen by logical name.
func (r *Registry) IsSOpen(ctx para.Context, name string) bool {
	id, ok := r.raw.Lookup(name)
	return ok && r.IsOpen(ctx, id)
}

// SOpen is Open by logical name; an unregistered name is added as shared.
func (r *Registry) SOpen(ctx para.Context, name, status string) error {
	id, err := r.ID(ctx, name)
	if err != nil {
		return err
	}
	return r.Open(ctx, id, status)
}

// SAddOpen is AddOpen for a shared file.
func (r *Registry) SAddOpen(ctx para.Context, name, status string) (ID, error) {
	return r.AddOpen(ctx, name, para.Shared, status)
}

// SClose is Close by logical name.
func (r *Registry) SClose(ctx para.Context, name string) error {
	id, err := r.lookupName(OpClose, name)
	if err != nil {
		return err
	}
	return r.Close(ctx, id)
}

// SErase is Erase by logical name.
func (r *Registry) SErase(ctx para.Context, name string) error {
	id, err := r.lookupName(OpErase, name)
	if err != nil {
		return err
	}
	return r.Erase(ctx, id)
}

// SFlush is Flush by logical name.
func (r *Registry) SFlush(ctx para.Context, name string) error {
	id, err := r.lookupName(OpFlush, name)
	if err != nil {
		return err
	}
	return r.Flush(ctx, id)
}

// Records returns a snapshot of every record, ascending by id.
func (r *Registry) Records() []RecordInfo {
	return r.raw.Records()
}

// Len returns the number of registered records.
func (r *Registry) Len() int {
	return r.raw.Len()
}

// IsFatal reports whether err means the table itself can no longer be trusted.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCorruptTable)
}
