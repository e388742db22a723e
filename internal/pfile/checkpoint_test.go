package pfile

import (
	"fmt"
	"testing"

	"pfreg/internal/para"
	"pfreg/internal/state"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveRecoverRoundTrip(t *testing.T) {
	fs := memfs.New()
	store, err := state.NewStore(fs, "ckpt/pfile.json", 1)
	require.NoError(t, err)

	saveWorlds := tasks(t, 4, 0)
	var saved []RecordInfo
	for _, w := range saveWorlds {
		reg := New(fs, WithCheckpoint(store))
		_, err := reg.AddOpen(w, "log", para.Shared, "w")
		require.NoError(t, err)
		_, err = reg.AddOpen(w, "scratch", para.Private, "w+b")
		require.NoError(t, err)
		_, err = reg.Add(w, "gone", para.Shared)
		require.NoError(t, err)
		_, err = reg.Add(w, "restart", para.Shared)
		require.NoError(t, err)
		require.NoError(t, reg.SRemove(w, "gone"))

		require.NoError(t, reg.Save(w))
		if w.Rank() == 0 {
			saved = reg.Records()
		}
		require.NoError(t, reg.Shutdown())
	}

	cp, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []state.Entry{
		{ID: 0, Name: "log", Status: "w"},
		{ID: 1, Name: "scratch", Status: "w+b", Private: true},
		{ID: 3, Name: "restart"},
	}, cp.Entries)

	for _, w := range tasks(t, 2, 1) {
		reg := New(fs, WithCheckpoint(store))
		require.NoError(t, reg.Recover(w))

		got := reg.Records()
		require.Len(t, got, len(saved))
		for i := range got {
			assert.Equal(t, saved[i].ID, got[i].ID)
			assert.Equal(t, saved[i].Name, got[i].Name)
			assert.Equal(t, saved[i].Status, got[i].Status)
			assert.Equal(t, saved[i].Sharing, got[i].Sharing)
			assert.False(t, got[i].Open)
		}

		scratch, ok := reg.Raw().Record(1)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("scratch.%d", w.Rank()), scratch.Path)

		id, err := reg.Add(w, "next", para.Shared)
		require.NoError(t, err)
		assert.Equal(t, ID(2), id)

		require.NoError(t, reg.SOpen(w, "scratch", ""))
		assert.True(t, reg.IsSOpen(w, "scratch"))
		require.NoError(t, reg.CloseAll(w))
	}
}

func TestSaveOnlyOnRoot(t *testing.T) {
	fs := memfs.New()
	store, err := state.NewStore(fs, "pfile.json", 0)
	require.NoError(t, err)

	worlds := tasks(t, 2, 0)
	peer := New(fs, WithCheckpoint(store))
	_, err = peer.Add(worlds[1], "log", para.Shared)
	require.NoError(t, err)
	require.NoError(t, peer.Save(worlds[1]))

	_, err = store.Load()
	require.ErrorIs(t, err, state.ErrNoCheckpoint)
}

func TestRecoverClosesOpenRecords(t *testing.T) {
	fs := newFaultFS()
	store, err := state.NewStore(fs, "ckpt/pfile.json", 0)
	require.NoError(t, err)
	ctx := para.Serial()

	reg := New(fs, WithCheckpoint(store))
	_, err = reg.SAddOpen(ctx, "a", "w")
	require.NoError(t, err)
	require.NoError(t, reg.Save(ctx))

	_, err = reg.SAddOpen(ctx, "b", "w")
	require.NoError(t, err)

	require.NoError(t, reg.Recover(ctx))
	assert.Equal(t, 1, reg.Len())
	assert.False(t, reg.IsSOpen(ctx, "a"))
	_, ok := reg.Lookup("b")
	assert.False(t, ok)
}

func TestRecoverRejectsCorruptCheckpoint(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "pfile.json",
		[]byte(`{"entries":[{"id":0,"name":"a","status":"w"},{"id":0,"name":"b","status":"w"}],"version":1}`), 0600))
	store, err := state.NewStore(fs, "pfile.json", 0)
	require.NoError(t, err)

	reg := New(fs, WithCheckpoint(store))
	ctx := para.Serial()
	_, err = reg.Add(ctx, "existing", para.Shared)
	require.NoError(t, err)

	err = reg.Recover(ctx)
	require.ErrorIs(t, err, ErrCorruptTable)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, reg.Len())
}

func TestRestoreRejectsUnusableEntries(t *testing.T) {
	reg := New(memfs.New())
	ctx := para.Serial()
	_, err := reg.Add(ctx, "existing", para.Shared)
	require.NoError(t, err)

	cp := &state.Checkpoint{Entries: []state.Entry{
		{ID: 0, Name: "fine", Status: "w"},
		{ID: 1, Name: "fine", Status: "w"},
	}}
	require.ErrorIs(t, reg.Raw().Restore(ctx, cp), ErrCorruptTable)

	cp = &state.Checkpoint{Entries: []state.Entry{
		{ID: 0, Name: "0123456789012345678901234567890123456789", Status: "w"},
	}}
	require.ErrorIs(t, reg.Raw().Restore(ctx, cp), ErrCorruptTable)

	names := reg.Raw().Names()
	assert.Equal(t, map[ID]string{0: "existing"}, names)
}

func TestSaveRecoverWithoutStore(t *testing.T) {
	reg := New(memfs.New())
	ctx := para.Serial()

	require.ErrorIs(t, reg.Save(ctx), ErrSaveFailed)
	require.ErrorIs(t, reg.Save(ctx), ErrNoStore)
	require.ErrorIs(t, reg.Recover(ctx), ErrRecoverFailed)
}

func TestRecoverWithoutCheckpoint(t *testing.T) {
	fs := memfs.New()
	store, err := state.NewStore(fs, "pfile.json", 0)
	require.NoError(t, err)
	reg := New(fs, WithCheckpoint(store))

	err = reg.Recover(para.Serial())
	require.ErrorIs(t, err, ErrRecoverFailed)
	require.ErrorIs(t, err, state.ErrNoCheckpoint)
}

func TestRecoverRejectsOutOfRangeID(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "pfile.json",
		[]byte(`{"entries":[{"id":4000000000,"name":"a","status":"w"}],"version":1}`), 0600))
	store, err := state.NewStore(fs, "pfile.json", 0)
	require.NoError(t, err)

	reg := New(fs, WithCheckpoint(store))
	ctx := para.Serial()
	_, err = reg.Add(ctx, "existing", para.Shared)
	require.NoError(t, err)

	err = reg.Recover(ctx)
	require.ErrorIs(t, err, ErrCorruptTable)
	assert.True(t, IsFatal(err))
	assert.Equal(t, map[ID]string{0: "existing"}, reg.Raw().Names())

	cp := &state.Checkpoint{Entries: []state.Entry{
		{ID: state.MaxRecords, Name: "far", Status: "w"},
	}}
	require.ErrorIs(t, reg.Raw().Restore(ctx, cp), ErrCorruptTable)
	assert.Equal(t, map[ID]string{0: "existing"}, reg.Raw().Names())
}

func TestRecoverPrivateNameTooLongForRank(t *testing.T) {
	fs := memfs.New()
	store, err := state.NewStore(fs, "pfile.json", 0)
	require.NoError(t, err)

	// 30 bytes: the ".0" suffix fits, ".10" does not
	name := "012345678901234567890123456789"
	root := para.Serial()
	saver := New(fs, WithCheckpoint(store))
	_, err = saver.Add(root, name, para.Private)
	require.NoError(t, err)
	require.NoError(t, saver.Save(root))

	w, err := para.NewWorld(10, 11, 0)
	require.NoError(t, err)
	reg := New(fs, WithCheckpoint(store))
	err = reg.Recover(w)
	require.ErrorIs(t, err, ErrNameTooLong)
	assert.False(t, IsFatal(err))
	assert.Equal(t, CodeNameTooLong, CodeOf(err))
	assert.Equal(t, 0, reg.Len())
}
