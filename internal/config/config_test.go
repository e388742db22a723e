package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ".", cfg.Storage.Root)
	assert.Equal(t, "pfreg-state.json", cfg.Storage.Checkpoint)
	assert.Equal(t, 5, cfg.Storage.Backups)
	assert.Equal(t, WorldConfig{Rank: 0, Size: 1, Root: 0}, cfg.World)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestInitReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "pfreg.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
storage:
  root: /data/run
  backups: 2
world:
  size: 8
  root: 3
`), 0600))
	t.Setenv("PFREG_WORLD_RANK", "5")
	t.Setenv("PFREG_LOG_LEVEL", "debug")

	v := viper.New()
	require.NoError(t, Init(v, cfgFile))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/data/run", cfg.Storage.Root)
	assert.Equal(t, "pfreg-state.json", cfg.Storage.Checkpoint)
	assert.Equal(t, 2, cfg.Storage.Backups)
	assert.Equal(t, WorldConfig{Rank: 5, Size: 8, Root: 3}, cfg.World)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitMissingExplicitFile(t *testing.T) {
	v := viper.New()
	err := Init(v, filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestInitWithoutFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	v := viper.New()
	require.NoError(t, Init(v, ""))
	assert.Equal(t, 1, v.GetInt("world.size"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		fields []string
	}{
		{"valid", func(*Config) {}, nil},
		{"empty root", func(c *Config) { c.Storage.Root = " " }, []string{"storage.root"}},
		{"empty checkpoint", func(c *Config) { c.Storage.Checkpoint = "" }, []string{"storage.checkpoint"}},
		{"escaping checkpoint", func(c *Config) { c.Storage.Checkpoint = "../state.json" }, []string{"storage.checkpoint"}},
		{"negative backups", func(c *Config) { c.Storage.Backups = -1 }, []string{"storage.backups"}},
		{"zero size", func(c *Config) { c.World.Size = 0 }, []string{"world.size"}},
		{"rank too large", func(c *Config) { c.World.Rank = 1 }, []string{"world.rank"}},
		{"negative root", func(c *Config) { c.World.Root = -1 }, []string{"world.root"}},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, []string{"log.level"}},
		{"several", func(c *Config) {
			c.Storage.Root = ""
			c.World.Rank = 4
		}, []string{"storage.root", "world.rank"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			var fields []string
			for _, e := range cfg.Validate() {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("world.rank", 3)
	v.Set("world.size", 2)

	_, err := Load(v)
	require.Error(t, err)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 1)
	assert.Contains(t, err.Error(), "world.rank")
}

func TestCheckpointPath(t *testing.T) {
	s := StorageConfig{Checkpoint: "ckpt//./state.json"}
	assert.Equal(t, "ckpt/state.json", s.CheckpointPath())
}
