package main

import (
	"fmt"

	"pfreg/internal/config"
	"pfreg/internal/logging"
	"pfreg/internal/para"
	"pfreg/internal/state"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	v   *viper.Viper
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "pfreg",
		Short: "Parallel file registry tools",
		Long: `pfreg manages a registry of logical files shared by a group of tasks.
Shared files have one physical copy owned by the root task; private files
get one copy per task. The registry can be checkpointed, inspected and
mounted read-only.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/pfreg/pfreg.yaml)")
	flags.String("storage-root", "", "directory holding the physical files")
	flags.String("checkpoint", "", "checkpoint file relative to the storage root")
	flags.Int("backups", 0, "number of checkpoint backups to keep")
	flags.Int("rank", 0, "rank of this task")
	flags.Int("size", 0, "number of tasks in the group")
	flags.Int("root", 0, "rank of the root task")
	flags.String("log-level", "", "log level (error, warn, info, debug, trace)")

	for key, flag := range map[string]string{
		"storage.root":       "storage-root",
		"storage.checkpoint": "checkpoint",
		"storage.backups":    "backups",
		"world.rank":         "rank",
		"world.size":         "size",
		"world.root":         "root",
		"log.level":          "log-level",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newSimulateCmd(a),
		newInfoCmd(a),
		newMountCmd(a),
	)
	return rootCmd
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if err := config.Init(a.v, cfgFile); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.Log.Level != "" {
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}

	logger.Debug("Storage root: %s", cfg.Storage.Root)
	logger.Debug("Checkpoint: %s (%d backups)", cfg.Storage.Checkpoint, cfg.Storage.Backups)
	return nil
}

// storage opens the configured root. Bound mode keeps Sync available on files.
func (a *app) storage() billy.Filesystem {
	return osfs.New(a.cfg.Storage.Root, osfs.WithBoundOS())
}

func (a *app) world() (para.World, error) {
	w := a.cfg.World
	return para.NewWorld(w.Rank, w.Size, w.Root)
}

func (a *app) store(fs billy.Filesystem) (*state.Store, error) {
	return state.NewStore(fs, a.cfg.Storage.CheckpointPath(), a.cfg.Storage.Backups)
}
