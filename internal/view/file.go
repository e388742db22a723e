package view

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"pfreg/internal/logging"
	"pfreg/internal/pfile"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/go-git/go-billy/v5"
)

var (
	fileLogger = logging.GetLogger().WithPrefix("file")
)

// Extended attributes exposing a record's registry metadata.
const (
	XattrID      = "user.pfreg.id"
	XattrPath    = "user.pfreg.path"
	XattrStatus  = "user.pfreg.status"
	XattrSharing = "user.pfreg.sharing"
)

// File is one logical file of the registry. It refers to its record by id
// and re-reads the record on every call, so removals show up as ENOENT.
type File struct {
	fs *FS
	id pfile.ID
}

func (f *File) record(op string) (pfile.RecordInfo, error) {
	rec, ok := f.fs.reg.Raw().Record(f.id)
	if !ok {
		return pfile.RecordInfo{}, NewError(op, strconv.Itoa(int(f.id)), ErrRecordGone)
	}
	return rec, nil
}

// Attr implements the Node interface, returning the file's attributes.
// A registered file that has not been created yet shows as empty.
func (f *File) Attr(_ context.Context, a *fuse.Attr) error {
	rec, err := f.record(OpGetattr)
	if err != nil {
		return ToFuseError(err)
	}

	fileLogger.Trace("Getting attributes for %q (path: %q)", rec.Name, rec.Path)

	a.Mode = 0444
	a.Uid = f.fs.uid
	a.Gid = f.fs.gid
	a.BlockSize = 4096

	info, err := f.fs.storage.Stat(rec.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fileLogger.Debug("Physical file %q not created yet", rec.Path)
			now := time.Now()
			a.Mtime, a.Atime, a.Ctime = now, now, now
			return nil
		}
		fileLogger.Error("Failed to stat file: %v", err)
		return ToFuseError(NewError(OpGetattr, rec.Path, err))
	}

	size := max(info.Size(), 0)
	a.Size = uint64(size)
	a.Mtime = info.ModTime()
	a.Atime = info.ModTime()
	a.Ctime = info.ModTime()
	a.Blocks = uint64((size + 511) / 512)

	fileLogger.Trace("File attributes: size=%d, mtime=%v", a.Size, a.Mtime)
	return nil
}

// Open implements the NodeOpener interface, opening the resolved physical file.
func (f *File) Open(_ context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fusefs.Handle, error) {
	rec, err := f.record(OpOpen)
	if err != nil {
		return nil, ToFuseError(err)
	}

	fileLogger.Debug("Opening %q with flags %v", rec.Name, req.Flags)

	if !req.Flags.IsReadOnly() {
		fileLogger.Warn("Attempted write access to read-only file: %q", rec.Name)
		return nil, ToFuseError(NewError(OpOpen, rec.Name, ErrReadOnly))
	}

	file, err := f.fs.storage.Open(rec.Path)
	if err != nil {
		fileLogger.Error("Failed to open file: %v", err)
		return nil, ToFuseError(NewError(OpOpen, rec.Path, err))
	}

	resp.Flags |= fuse.OpenDirectIO

	fileLogger.Debug("Successfully opened %q", rec.Path)
	return &FileHandle{
		file: file,
		path: rec.Path,
	}, nil
}

func (f *File) xattrs() (map[string]string, error) {
	rec, err := f.record(OpGetxattr)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		XattrID:      strconv.Itoa(int(rec.ID)),
		XattrPath:    rec.Path,
		XattrStatus:  rec.Status,
		XattrSharing: rec.Sharing.String(),
	}, nil
}

// Getxattr implements the NodeGetxattrer interface, reporting record metadata.
func (f *File) Getxattr(_ context.Context, req *fuse.GetxattrRequest, resp *fuse.GetxattrResponse) error {
	attrs, err := f.xattrs()
	if err != nil {
		return ToFuseError(err)
	}

	value, exists := attrs[req.Name]
	if !exists {
		fileLogger.Trace("Xattr %q not found for record %d", req.Name, f.id)
		return fuse.ErrNoXattr
	}

	resp.Xattr = []byte(value)
	return nil
}

// Listxattr implements the NodeListxattrer interface.
func (f *File) Listxattr(_ context.Context, _ *fuse.ListxattrRequest, resp *fuse.ListxattrResponse) error {
	attrs, err := f.xattrs()
	if err != nil {
		return ToFuseError(err)
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	resp.Append(names...)
	return nil
}

// FileHandle is an open read handle on a physical file.
type FileHandle struct {
	file billy.File
	path string // For logging purposes
	mu   sync.RWMutex
}

// Read implements the HandleReader interface, reading data from the file.
func (fh *FileHandle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	fh.mu.RLock()
	defer fh.mu.RUnlock()

	fileLogger.Trace("Reading %d bytes from %q at offset %d", req.Size, fh.path, req.Offset)

	resp.Data = make([]byte, req.Size)
	n, err := fh.file.ReadAt(resp.Data, req.Offset)
	if err != nil && err != io.EOF {
		fileLogger.Error("Failed to read from file: %v", err)
		return ToFuseError(NewError(OpRead, fh.path, err))
	}

	resp.Data = resp.Data[:n]
	return nil
}

// Release implements the HandleReleaser interface, closing the file handle.
func (fh *FileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	fh.mu.Lock()
	defer fh.mu.Unlock()

	fileLogger.Debug("Closing %q", fh.path)
	return fh.file.Close()
}
