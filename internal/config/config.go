// Package config loads pfreg settings from flags, PFREG_* environment
// variables and an optional YAML file through viper.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. PFREG_WORLD_SIZE.
const EnvPrefix = "PFREG"

// Config is the complete pfreg configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	World   WorldConfig   `mapstructure:"world"`
	Log     LogConfig     `mapstructure:"log"`
}

// StorageConfig says where physical files and checkpoints live.
type StorageConfig struct {
	// Root is the directory every registry path is relative to.
	Root string `mapstructure:"root"`
	// Checkpoint is the checkpoint file, relative to Root.
	Checkpoint string `mapstructure:"checkpoint"`
	// Backups is how many previous checkpoints to keep (0 disables backups).
	Backups int `mapstructure:"backups"`
}

// WorldConfig describes the task group a command runs as.
type WorldConfig struct {
	Rank int `mapstructure:"rank"`
	Size int `mapstructure:"size"`
	Root int `mapstructure:"root"`
}

// LogConfig controls the shared logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns a Config for a single task working in the current directory.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Root:       ".",
			Checkpoint: "pfreg-state.json",
			Backups:    5,
		},
		World: WorldConfig{
			Rank: 0,
			Size: 1,
			Root: 0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("storage.root", defaults.Storage.Root)
	v.SetDefault("storage.checkpoint", defaults.Storage.Checkpoint)
	v.SetDefault("storage.backups", defaults.Storage.Backups)

	v.SetDefault("world.rank", defaults.World.Rank)
	v.SetDefault("world.size", defaults.World.Size)
	v.SetDefault("world.root", defaults.World.Root)

	v.SetDefault("log.level", defaults.Log.Level)
}

// Init prepares v: defaults, environment overrides and the config file.
// An explicit cfgFile must exist; otherwise a missing pfreg.yaml is ignored.
func Init(v *viper.Viper, cfgFile string) error {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pfreg")
		v.SetConfigType("yaml")
		v.AddConfigPath(ConfigDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	// PFREG_STORAGE_ROOT for storage.root
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && cfgFile == "" {
			return nil
		}
		return err
	}
	return nil
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// CheckpointPath returns the checkpoint location relative to the storage root.
func (s *StorageConfig) CheckpointPath() string {
	return filepath.ToSlash(filepath.Clean(s.Checkpoint))
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pfreg")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pfreg"
	}
	return filepath.Join(home, ".config", "pfreg")
}
