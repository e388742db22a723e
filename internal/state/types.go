// Package state provides persistent checkpoint storage for the file registry.
package state

import (
	"errors"
	"fmt"
)

// CurrentVersion is written into every checkpoint.
const CurrentVersion = 1

// MaxRecords bounds record ids. A checkpoint naming a larger id is corrupt.
const MaxRecords = 1 << 20

// ErrCorrupt indicates a checkpoint that cannot describe a valid file table.
var ErrCorrupt = errors.New("corrupt checkpoint")

// Checkpoint is the logical content of a file table. Open handles and positions
// are never part of it.
type Checkpoint struct {
	// Entries in save order; recovery replays them in this order.
	Entries []Entry `json:"entries"`

	// Version for future compatibility
	Version int `json:"version"`
}

// Entry is one saved record.
type Entry struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Private bool   `json:"private,omitempty"`
}

// Validate rejects checkpoints with out-of-range or repeated ids and repeated names.
func (c *Checkpoint) Validate() error {
	ids := make(map[int]bool, len(c.Entries))
	names := make(map[string]bool, len(c.Entries))
	for i, e := range c.Entries {
		if e.ID < 0 {
			return fmt.Errorf("%w: entry %d has negative id %d", ErrCorrupt, i, e.ID)
		}
		if e.ID >= MaxRecords {
			return fmt.Errorf("%w: entry %d has id %d beyond %d", ErrCorrupt, i, e.ID, MaxRecords-1)
		}
		if ids[e.ID] {
			return fmt.Errorf("%w: id %d repeated at entry %d", ErrCorrupt, e.ID, i)
		}
		if names[e.Name] {
			return fmt.Errorf("%w: name %q repeated at entry %d", ErrCorrupt, e.Name, i)
		}
		ids[e.ID] = true
		names[e.Name] = true
	}
	return nil
}
