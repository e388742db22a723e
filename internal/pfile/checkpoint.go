package pfile

import (
	"errors"

	"pfreg/internal/para"
	"pfreg/internal/state"
)

// ErrNoStore is returned by Save and Recover on a registry built without WithCheckpoint.
var ErrNoStore = errors.New("registry has no checkpoint store")

// Snapshot returns the logical content of the table: id, name, status and
// sharing of every record in ascending id order. Handles and positions are
// left out.
func (r *Raw) Snapshot() *state.Checkpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := &state.Checkpoint{Entries: make([]state.Entry, 0, r.table.len())}
	for _, id := range r.table.ids() {
		rec, _ := r.table.get(id)
		cp.Entries = append(cp.Entries, state.Entry{
			ID:      int(id),
			Name:    rec.name.String(),
			Status:  rec.status.String(),
			Private: rec.sharing == para.Private,
		})
	}
	return cp
}

// Restore replaces the table with the records of cp, in cp's order and at
// cp's exact ids. Paths are resolved for ctx, so a private record restored on
// a different rank gets that rank's suffix. Open records are closed first.
// A repeated id or name leaves the current table untouched and reports
// ErrCorruptTable.
func (r *Raw) Restore(ctx para.Context, cp *state.Checkpoint) error {
	fresh := newTable()
	for i, e := range cp.Entries {
		sharing := para.Shared
		if e.Private {
			sharing = para.Private
		}
		nm, err := NewName(e.Name)
		if err != nil {
			return newError(OpRecover, ID(e.ID), e.Name, ErrCorruptTable, err)
		}
		st, err := NewName(e.Status)
		if err != nil {
			return newError(OpRecover, ID(e.ID), e.Name, ErrCorruptTable, err)
		}
		path, err := para.Resolve(ctx, e.Name, sharing)
		if err != nil {
			// the rank suffix no longer fits
			return newError(OpRecover, ID(e.ID), e.Name, ErrNameTooLong, nil)
		}
		rec := &record{id: ID(e.ID), name: nm, path: path, status: st, sharing: sharing}
		if err := fresh.place(rec); err != nil {
			tableLogger.Error("Checkpoint entry %d is unusable: %v", i, err)
			return newError(OpRecover, ID(e.ID), e.Name, err, nil)
		}
	}

	if err := r.CloseAll(); err != nil {
		tableLogger.Warn("Closing records before restore: %v", err)
	}

	r.mu.Lock()
	r.table = fresh
	r.mu.Unlock()
	tableLogger.Debug("Restored %d records", fresh.len())
	return nil
}

// Save writes the table's logical content to the checkpoint store. Only the
// task responsible for shared files writes; other tasks return nil.
func (r *Registry) Save(ctx para.Context) error {
	if r.store == nil {
		return newError(OpSave, NoID, "", ErrSaveFailed, ErrNoStore)
	}
	if !para.Responsible(ctx, para.Shared) {
		regLogger.Trace("%v skips checkpoint save", ctx)
		return nil
	}

	cp := r.raw.Snapshot()
	if err := r.store.Save(cp); err != nil {
		if errors.Is(err, state.ErrCorrupt) {
			return newError(OpSave, NoID, "", ErrCorruptTable, err)
		}
		return newError(OpSave, NoID, "", ErrSaveFailed, err)
	}
	regLogger.Info("Saved %d records to %s", len(cp.Entries), r.store.Path())
	return nil
}

// Recover rebuilds the table from the checkpoint store on the calling task.
// Every recovered record starts closed.
func (r *Registry) Recover(ctx para.Context) error {
	if r.store == nil {
		return newError(OpRecover, NoID, "", ErrRecoverFailed, ErrNoStore)
	}

	cp, err := r.store.Load()
	if err != nil {
		if errors.Is(err, state.ErrCorrupt) {
			regLogger.Error("Checkpoint %s is corrupt: %v", r.store.Path(), err)
			return newError(OpRecover, NoID, "", ErrCorruptTable, err)
		}
		return newError(OpRecover, NoID, "", ErrRecoverFailed, err)
	}

	if err := r.raw.Restore(ctx, cp); err != nil {
		return err
	}
	regLogger.Info("%v recovered %d records from %s", ctx, len(cp.Entries), r.store.Path())
	return nil
}
