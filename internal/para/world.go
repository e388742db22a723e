// Package para describes the parallel execution context a registry runs in:
// which task is calling, how many tasks cooperate, and which of them is
// responsible for shared files. It also holds the participation policy and
// the per-task name resolution built on that context.
package para

import (
	"errors"
	"fmt"
)

// ErrInvalidWorld is returned when rank, size and root do not describe a valid context.
var ErrInvalidWorld = errors.New("invalid parallel context")

// Context is the view of a parallel execution context the registry consumes.
type Context interface {
	// Rank is the calling task's index in [0, Size).
	Rank() int
	// Size is the number of cooperating tasks.
	Size() int
	// RootRank is the task responsible for shared files.
	RootRank() int
}

// World is a plain Context value. The zero value is not valid; use NewWorld or Serial.
type World struct {
	rank int
	size int
	root int
}

// NewWorld builds a context for task rank out of size tasks, with root as the
// responsible task.
func NewWorld(rank, size, root int) (World, error) {
	if size < 1 {
		return World{}, fmt.Errorf("%w: size %d", ErrInvalidWorld, size)
	}
	if rank < 0 || rank >= size {
		return World{}, fmt.Errorf("%w: rank %d outside [0,%d)", ErrInvalidWorld, rank, size)
	}
	if root < 0 || root >= size {
		return World{}, fmt.Errorf("%w: root %d outside [0,%d)", ErrInvalidWorld, root, size)
	}
	return World{rank: rank, size: size, root: root}, nil
}

// Serial is the single-task context: rank 0 of 1, responsible for everything.
func Serial() World {
	return World{rank: 0, size: 1, root: 0}
}

// Tasks returns one context per rank of a size-task world rooted at root.
func Tasks(size, root int) ([]World, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: size %d", ErrInvalidWorld, size)
	}
	worlds := make([]World, 0, size)
	for rank := 0; rank < size; rank++ {
		w, err := NewWorld(rank, size, root)
		if err != nil {
			return nil, err
		}
		worlds = append(worlds, w)
	}
	return worlds, nil
}

// Rank implements Context.
func (w World) Rank() int { return w.rank }

// Size implements Context.
func (w World) Size() int { return w.size }

// RootRank implements Context.
func (w World) RootRank() int { return w.root }

// IsRoot reports whether the calling task is the responsible task.
func (w World) IsRoot() bool { return w.rank == w.root }

func (w World) String() string {
	return fmt.Sprintf("task %d/%d (root %d)", w.rank, w.size, w.root)
}
