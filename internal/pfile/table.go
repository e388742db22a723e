package pfile

import (
	"fmt"

	"pfreg/internal/para"
	"pfreg/internal/state"

	"github.com/go-git/go-billy/v5"
)

// ID is the dense integer a registry hands out for a logical file.
type ID int

// NoID is never a valid record id.
const NoID ID = -1

// record is one registered logical file.
type record struct {
	id      ID
	name    Name
	path    string // resolved on-disk path, fixed at registration
	status  Name   // last open mode, kept while closed
	sharing para.Sharing
	open    bool
	append  bool
	handle  billy.File // non-nil exactly when open
	pos     int64      // valid only while open
}

// RecordInfo is a read-only copy of a record's metadata.
type RecordInfo struct {
	ID      ID
	Name    string
	Path    string
	Status  string
	Sharing para.Sharing
	Open    bool
	Pos     int64
}

func (ri RecordInfo) String() string {
	st := "closed"
	if ri.Open {
		st = fmt.Sprintf("open@%d", ri.Pos)
	}
	return fmt.Sprintf("%d:%s(%s,%s)", ri.ID, ri.Name, ri.Sharing, st)
}

func (rec *record) info() RecordInfo {
	ri := RecordInfo{
		ID:      rec.id,
		Name:    rec.name.String(),
		Path:    rec.path,
		Status:  rec.status.String(),
		Sharing: rec.sharing,
		Open:    rec.open,
	}
	if rec.open {
		ri.Pos = rec.pos
	}
	return ri
}

// table stores records by id. A nil slot is a removed id, reused lowest-first.
type table struct {
	slots  []*record
	byName map[string]ID
	live   int
}

func newTable() *table {
	return &table{byName: make(map[string]ID)}
}

// insert stores rec in the lowest free slot and returns its id.
func (t *table) insert(rec *record) ID {
	id := ID(len(t.slots))
	for i, slot := range t.slots {
		if slot == nil {
			id = ID(i)
			break
		}
	}
	rec.id = id
	if int(id) == len(t.slots) {
		t.slots = append(t.slots, rec)
	} else {
		t.slots[id] = rec
	}
	t.byName[rec.name.String()] = id
	t.live++
	return id
}

// place stores rec at rec.id exactly, growing the table with holes as needed.
// A taken id or name means the source of the ids was corrupt.
func (t *table) place(rec *record) error {
	if rec.id < 0 || rec.id >= state.MaxRecords {
		return fmt.Errorf("%w: id %d out of range", ErrCorruptTable, rec.id)
	}
	for int(rec.id) >= len(t.slots) {
		t.slots = append(t.slots, nil)
	}
	if t.slots[rec.id] != nil {
		return fmt.Errorf("%w: id %d repeated", ErrCorruptTable, rec.id)
	}
	if _, taken := t.byName[rec.name.String()]; taken {
		return fmt.Errorf("%w: name %q repeated", ErrCorruptTable, rec.name.String())
	}
	t.slots[rec.id] = rec
	t.byName[rec.name.String()] = rec.id
	t.live++
	return nil
}

func (t *table) get(id ID) (*record, bool) {
	if id < 0 || int(id) >= len(t.slots) || t.slots[id] == nil {
		return nil, false
	}
	return t.slots[id], true
}

func (t *table) lookup(name string) (ID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// drop removes the record; trailing holes are trimmed.
func (t *table) drop(id ID) {
	rec, ok := t.get(id)
	if !ok {
		return
	}
	delete(t.byName, rec.name.String())
	t.slots[id] = nil
	t.live--
	for len(t.slots) > 0 && t.slots[len(t.slots)-1] == nil {
		t.slots = t.slots[:len(t.slots)-1]
	}
}

// ids returns live ids in ascending order.
func (t *table) ids() []ID {
	ids := make([]ID, 0, t.live)
	for i, slot := range t.slots {
		if slot != nil {
			ids = append(ids, ID(i))
		}
	}
	return ids
}

func (t *table) len() int {
	return t.live
}

// names returns the id → name mapping, used to compare tables across tasks.
func (t *table) names() map[ID]string {
	out := make(map[ID]string, t.live)
	for _, id := range t.ids() {
		out[id] = t.slots[id].name.String()
	}
	return out
}

// infos returns RecordInfo for every live record, ascending by id.
func (t *table) infos() []RecordInfo {
	infos := make([]RecordInfo, 0, t.live)
	for _, id := range t.ids() {
		infos = append(infos, t.slots[id].info())
	}
	return infos
}
