// Package pfile is a parallel file registry: every task of a distributed
// computation refers to logical files through small dense integer ids, and
// only the task responsible for a file touches its storage.
//
// A file is either shared (one physical copy, written by the root task of the
// parallel context) or private (one copy per task, named "<name>.<rank>").
// Every task keeps its own Registry and makes the same sequence of
// registration calls, so ids agree across tasks without communication.
//
// # Layers
//
// The Registry methods check participation: on a task that is not
// responsible for a record, Open, Close and Flush succeed without touching
// storage, and Erase only drops the record from the local table. Methods
// named S… take the logical name instead of an id.
//
// Raw, reached through Registry.Raw, skips the participation check. Write,
// Read, Seek and Pos live only there; they are for callers that already know
// they are responsible for the record.
//
//	ctx, _ := para.NewWorld(rank, size, 0)
//	reg := pfile.New(osfs.New(dir))
//	log, err := reg.SAddOpen(ctx, "log", "w")
//	if para.Responsible(ctx, para.Shared) {
//		_, err = reg.Raw().Write(log, 0, []byte("step 1\n"))
//	}
//	err = reg.CloseAll(ctx)
//
// # Checkpoints
//
// Save writes (id, name, status, sharing) of every record through a
// state.Store; Recover rebuilds the same ids, possibly under a different
// task count, with every record closed.
package pfile
