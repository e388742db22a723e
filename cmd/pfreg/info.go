package main

import (
	"fmt"
	"io"

	"pfreg/internal/para"
	"pfreg/internal/pfile"

	"github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the checkpointed registry as seen by one task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := a.world()
			if err != nil {
				return err
			}
			storage := a.storage()
			reg, err := recoverRegistry(a, storage, w)
			if err != nil {
				return err
			}
			return printInfo(cmd.OutOrStdout(), reg, w)
		},
	}
}

// recoverRegistry builds a registry for w from the configured checkpoint.
func recoverRegistry(a *app, storage billy.Filesystem, w para.World) (*pfile.Registry, error) {
	store, err := a.store(storage)
	if err != nil {
		return nil, err
	}
	reg := pfile.New(storage, pfile.WithCheckpoint(store))
	if err := reg.Recover(w); err != nil {
		return nil, err
	}
	logger.Debug("Recovered %d records from %s", reg.Len(), store.Path())
	return reg, nil
}

func printInfo(out io.Writer, reg *pfile.Registry, w para.World) error {
	_, err := fmt.Fprint(out, reg.Format(w))
	return err
}
