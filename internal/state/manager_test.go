package state

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCheckpoint() *Checkpoint {
	return &Checkpoint{
		Entries: []Entry{
			{ID: 0, Name: "log", Status: "w"},
			{ID: 2, Name: "restart", Status: "r+b"},
			{ID: 1, Name: "scratch", Status: "a", Private: true},
		},
	}
}

func TestLoadWithoutCheckpoint(t *testing.T) {
	store, err := NewStore(memfs.New(), "ckpt/pfile.json", DefaultBackupCount)
	require.NoError(t, err)

	_, err = store.Load()
	require.ErrorIs(t, err, ErrNoCheckpoint)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "nested path", path: "ckpt/pfile.json"},
		{name: "top level path", path: "pfile.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewStore(memfs.New(), tt.path, DefaultBackupCount)
			require.NoError(t, err)

			require.NoError(t, store.Save(sampleCheckpoint()))

			got, err := store.Load()
			require.NoError(t, err)
			assert.Equal(t, CurrentVersion, got.Version)
			assert.Equal(t, sampleCheckpoint().Entries, got.Entries)
		})
	}
}

func TestSaveOnDisk(t *testing.T) {
	fs := osfs.New(t.TempDir())
	store, err := NewStore(fs, "state/pfile.json", 2)
	require.NoError(t, err)

	require.NoError(t, store.Save(sampleCheckpoint()))

	reopened, err := NewStore(fs, "state/pfile.json", 2)
	require.NoError(t, err)
	got, err := reopened.Load()
	require.NoError(t, err)
	assert.Len(t, got.Entries, 3)
	assert.Equal(t, "restart", got.Entries[1].Name)
}

func TestBackupsArePruned(t *testing.T) {
	store, err := NewStore(memfs.New(), "ckpt/pfile.json", 2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		cp := &Checkpoint{Entries: []Entry{{ID: i, Name: "f", Status: "w"}}}
		require.NoError(t, store.Save(cp))
	}

	backups, err := store.Backups()
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestSaveRejectsRepeatedIDs(t *testing.T) {
	store, err := NewStore(memfs.New(), "pfile.json", 0)
	require.NoError(t, err)

	cp := &Checkpoint{Entries: []Entry{
		{ID: 0, Name: "a", Status: "w"},
		{ID: 0, Name: "b", Status: "w"},
	}}
	require.ErrorIs(t, store.Save(cp), ErrCorrupt)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "not json", content: "{{{"},
		{name: "repeated id", content: `{"entries":[{"id":1,"name":"a","status":"w"},{"id":1,"name":"b","status":"w"}],"version":1}`},
		{name: "future version", content: `{"entries":[],"version":99}`},
		{name: "id out of range", content: `{"entries":[{"id":4000000000,"name":"a","status":"w"}],"version":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := memfs.New()
			require.NoError(t, util.WriteFile(fs, "pfile.json", []byte(tt.content), 0600))
			store, err := NewStore(fs, "pfile.json", 0)
			require.NoError(t, err)

			_, err = store.Load()
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}
