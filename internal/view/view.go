package view

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"pfreg/internal/logging"
	"pfreg/internal/para"
	"pfreg/internal/pfile"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/go-git/go-billy/v5"
)

var (
	vfsLogger = logging.GetLogger().WithPrefix("view")
)

// FS is a read-only FUSE view of one task's file registry. The root lists
// every logical file under its registry name; reading one reads the physical
// file the calling task resolves it to. InfoName holds the diagnostics listing.
type FS struct {
	reg     *pfile.Registry  // registry being shown
	storage billy.Filesystem // where resolved paths live
	ctx     para.Context     // task whose view this is
	conn    *fuse.Conn       // FUSE connection
	done    chan struct{}    // closed when serving stops
	uid     uint32           // User ID for filesystem operations
	gid     uint32           // Group ID for filesystem operations
}

// New creates a view of reg for the task ctx, reading files from storage.
func New(reg *pfile.Registry, storage billy.Filesystem, ctx para.Context) *FS {
	vfsLogger.Debug("Creating registry view for %v", ctx)

	uid := safeIntToUint32(os.Getuid())
	gid := safeIntToUint32(os.Getgid())

	if puidStr := os.Getenv("PUID"); puidStr != "" {
		if puid, err := strconv.ParseUint(puidStr, 10, 32); err == nil {
			uid = uint32(puid)
			vfsLogger.Debug("Using PUID from environment: %d", uid)
		}
	}
	if pgidStr := os.Getenv("PGID"); pgidStr != "" {
		if pgid, err := strconv.ParseUint(pgidStr, 10, 32); err == nil {
			gid = uint32(pgid)
			vfsLogger.Debug("Using PGID from environment: %d", gid)
		}
	}

	return &FS{
		reg:     reg,
		storage: storage,
		ctx:     ctx,
		uid:     uid,
		gid:     gid,
	}
}

// Root implements the fusefs.FS interface, returning the root directory node.
func (vfs *FS) Root() (fusefs.Node, error) {
	vfsLogger.Trace("Getting root directory node")
	return &Dir{fs: vfs}, nil
}

func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	return uint32(n)
}

func waitForMount(mountpoint string) error {
	for i := 0; i < 30; i++ {
		info, err := os.Stat(mountpoint)
		if err == nil && info.IsDir() {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("mount point not available after 3 seconds")
}

// Mount mounts the view read-only and serves it in the background.
func (vfs *FS) Mount(mountPoint string) error {
	vfsLogger.Info("Mounting registry view at %s", mountPoint)
	vfsLogger.Debug("UID: %d, GID: %d", vfs.uid, vfs.gid)

	mountOpts := []fuse.MountOption{
		fuse.FSName("pfreg"),
		fuse.Subtype("pfreg"),
		fuse.ReadOnly(),
		fuse.DefaultPermissions(),
		fuse.AsyncRead(),
	}

	c, err := fuse.Mount(mountPoint, mountOpts...)
	if err != nil {
		return fmt.Errorf("mount failed: %w", err)
	}
	vfs.conn = c

	vfs.done = make(chan struct{})
	go func() {
		defer close(vfs.done)
		if err := fusefs.Serve(c, vfs); err != nil {
			vfsLogger.Error("FUSE server error: %v", err)
		}
	}()

	if err := waitForMount(mountPoint); err != nil {
		c.Close()
		vfsLogger.Error("Mount point not ready: %v", err)
		return fmt.Errorf("mount point failed to initialize: %w", err)
	}

	vfsLogger.Info("Registry view mounted")
	return nil
}

// Done is closed once the FUSE server stops, e.g. after an external umount.
func (vfs *FS) Done() <-chan struct{} {
	return vfs.done
}

// Unmount cleanly unmounts the view.
func (vfs *FS) Unmount(mountPoint string) error {
	vfsLogger.Info("Unmounting registry view from: %s", mountPoint)
	if vfs.conn == nil {
		return nil
	}
	if err := fuse.Unmount(mountPoint); err != nil {
		vfsLogger.Error("Unmount failed: %v", err)
		return err
	}
	<-vfs.done
	err := vfs.conn.Close()
	vfs.conn = nil
	return err
}
