package pfile

import (
	"errors"
	"os"
	"testing"

	"pfreg/internal/para"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// faultFS wraps a filesystem and fails Close or Remove for chosen paths.
type faultFS struct {
	billy.Filesystem
	failClose  map[string]bool
	failRemove map[string]bool
	failSync   map[string]bool
}

func newFaultFS() *faultFS {
	return &faultFS{
		Filesystem: memfs.New(),
		failClose:  map[string]bool{},
		failRemove: map[string]bool{},
		failSync:   map[string]bool{},
	}
}

func (f *faultFS) OpenFile(name string, flag int, perm os.FileMode) (billy.File, error) {
	file, err := f.Filesystem.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultFile{File: file, fs: f, name: name}, nil
}

func (f *faultFS) Remove(name string) error {
	if f.failRemove[name] {
		return errInjected
	}
	return f.Filesystem.Remove(name)
}

type faultFile struct {
	billy.File
	fs   *faultFS
	name string
}

func (f *faultFile) Close() error {
	err := f.File.Close()
	if f.fs.failClose[f.name] {
		return errInjected
	}
	return err
}

func (f *faultFile) Sync() error {
	if f.fs.failSync[f.name] {
		return errInjected
	}
	return nil
}

func exists(t *testing.T, fs billy.Filesystem, path string) bool {
	t.Helper()
	_, err := fs.Stat(path)
	if err == nil {
		return true
	}
	require.True(t, errors.Is(err, os.ErrNotExist) || os.IsNotExist(err), "stat %q: %v", path, err)
	return false
}

func tasks(t *testing.T, size, root int) []para.World {
	t.Helper()
	worlds, err := para.Tasks(size, root)
	require.NoError(t, err)
	return worlds
}
