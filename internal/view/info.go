package view

import (
	"context"
	"time"

	"bazil.org/fuse"
)

// InfoFile renders the registry listing each time it is read.
type InfoFile struct {
	fs *FS
}

func (i *InfoFile) content() []byte {
	return []byte(i.fs.reg.Format(i.fs.ctx))
}

// Attr implements the Node interface.
func (i *InfoFile) Attr(_ context.Context, a *fuse.Attr) error {
	now := time.Now()
	a.Mode = 0444
	a.Size = uint64(len(i.content()))
	a.Mtime, a.Atime, a.Ctime = now, now, now
	a.Uid = i.fs.uid
	a.Gid = i.fs.gid
	return nil
}

// ReadAll implements the HandleReadAller interface.
func (i *InfoFile) ReadAll(_ context.Context) ([]byte, error) {
	dirLogger.Debug("Rendering %s", InfoName)
	return i.content(), nil
}
