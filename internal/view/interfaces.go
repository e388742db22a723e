package view

import (
	fusefs "bazil.org/fuse/fs"
)

var (
	_ fusefs.FS                 = (*FS)(nil)
	_ fusefs.Node               = (*Dir)(nil)
	_ fusefs.NodeStringLookuper = (*Dir)(nil)
	_ fusefs.HandleReadDirAller = (*Dir)(nil)
	_ fusefs.NodeOpener         = (*File)(nil)
	_ fusefs.NodeGetxattrer     = (*File)(nil)
	_ fusefs.NodeListxattrer    = (*File)(nil)
	_ fusefs.HandleReader       = (*FileHandle)(nil)
	_ fusefs.HandleReleaser     = (*FileHandle)(nil)
	_ fusefs.HandleReadAller    = (*InfoFile)(nil)
)
