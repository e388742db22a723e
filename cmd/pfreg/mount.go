package main

import (
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"pfreg/internal/view"

	"github.com/spf13/cobra"
)

func newMountCmd(a *app) *cobra.Command {
	var mountPoint string

	cmd := &cobra.Command{
		Use:   "mount",
		Short: "Mount the checkpointed registry read-only through FUSE",
		RunE: func(_ *cobra.Command, _ []string) error {
			if mountPoint == "" {
				return errors.New("--mount is required")
			}
			cleanMount := filepath.Clean(mountPoint)

			w, err := a.world()
			if err != nil {
				return err
			}
			storage := a.storage()
			reg, err := recoverRegistry(a, storage, w)
			if err != nil {
				return err
			}

			logger.Debug("Setting up signal handlers...")
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			vfs := view.New(reg, storage, w)
			if err := vfs.Mount(cleanMount); err != nil {
				return err
			}
			logger.Info("Registry mounted at %s as %v", cleanMount, w)

			select {
			case sig := <-sigChan:
				logger.Info("Received signal %v", sig)
				if err := vfs.Unmount(cleanMount); err != nil {
					return err
				}
			case <-vfs.Done():
				logger.Info("FUSE server stopped")
			}

			logger.Info("Clean shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&mountPoint, "mount", "m", "", "mount point for the registry view")
	return cmd
}
