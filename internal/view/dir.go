package view

import (
	"context"
	"os"
	"strings"

	"pfreg/internal/logging"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
)

var (
	dirLogger = logging.GetLogger().WithPrefix("dir")
)

// InfoName is the root entry holding the registry's diagnostics listing.
const InfoName = "_INFO"

// Dir is the root directory of the view. It is flat: one entry per record.
type Dir struct {
	fs *FS
}

// entryName is how a logical name appears in the directory. '%' and '/' are
// percent-escaped so every record stays a distinct direct child of the root,
// and a record literally named InfoName is escaped so it does not hide behind
// the listing.
func entryName(name string) string {
	escaped := strings.NewReplacer("%", "%25", "/", "%2F").Replace(name)
	if escaped == InfoName {
		return "%5F" + InfoName[1:]
	}
	return escaped
}

// Attr implements the Node interface, returning directory attributes.
func (d *Dir) Attr(_ context.Context, a *fuse.Attr) error {
	dirLogger.Trace("Getting root directory attributes")
	a.Mode = os.ModeDir | 0555
	a.Uid = d.fs.uid
	a.Gid = d.fs.gid
	return nil
}

// Lookup implements the NodeStringLookuper interface, finding a child node.
func (d *Dir) Lookup(_ context.Context, name string) (fusefs.Node, error) {
	dirLogger.Debug("Looking up %q", name)

	if name == InfoName {
		return &InfoFile{fs: d.fs}, nil
	}

	for _, rec := range d.fs.reg.Records() {
		if entryName(rec.Name) == name {
			dirLogger.Debug("Found record %d: %q -> %q", rec.ID, rec.Name, rec.Path)
			return &File{fs: d.fs, id: rec.ID}, nil
		}
	}

	dirLogger.Debug("Record not found: %q", name)
	return nil, ToFuseError(NewError(OpLookup, name, os.ErrNotExist))
}

// ReadDirAll implements the HandleReadDirAller interface, listing directory contents.
func (d *Dir) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	records := d.fs.reg.Records()
	entries := make([]fuse.Dirent, 0, len(records)+3)

	entries = append(entries, fuse.Dirent{Name: ".", Type: fuse.DT_Dir})
	entries = append(entries, fuse.Dirent{Name: "..", Type: fuse.DT_Dir})
	entries = append(entries, fuse.Dirent{Name: InfoName, Type: fuse.DT_File})

	for _, rec := range records {
		dirLogger.Trace("Listing record %s", rec)
		entries = append(entries, fuse.Dirent{
			Name: entryName(rec.Name),
			Type: fuse.DT_File,
		})
	}

	dirLogger.Debug("Root contains %d entries", len(entries))
	return entries, nil
}
