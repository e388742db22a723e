package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"pfreg/internal/logging"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

var (
	logger = logging.GetLogger().WithPrefix("state")
)

// ErrNoCheckpoint is returned by Load when nothing has been saved yet.
var ErrNoCheckpoint = errors.New("no checkpoint saved")

// DefaultBackupCount is how many previous checkpoints a Store keeps.
const DefaultBackupCount = 5

const backupDirName = ".pfreg-backups"

// Store loads and saves checkpoints on a go-billy filesystem.
type Store struct {
	fs          billy.Filesystem
	statePath   string
	backupDir   string
	backupCount int
	mu          sync.RWMutex
}

// NewStore creates a checkpoint store writing statePath inside fs.
// It ensures the checkpoint and backup directories exist.
func NewStore(fs billy.Filesystem, statePath string, backupCount int) (*Store, error) {
	logger.Debug("Creating checkpoint store with path: %s", statePath)

	if statePath == "" {
		return nil, fmt.Errorf("checkpoint path is empty")
	}
	if backupCount < 0 {
		backupCount = 0
	}

	stateDir := path.Dir(statePath)
	if stateDir != "." && stateDir != "/" {
		logger.Debug("Ensuring checkpoint directory exists: %s", stateDir)
		if err := fs.MkdirAll(stateDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory %s: %w", stateDir, err)
		}
	}

	backupDir := backupDirName
	if stateDir != "." {
		backupDir = fs.Join(stateDir, backupDirName)
	}
	if backupCount > 0 {
		logger.Debug("Creating backup directory: %s", backupDir)
		if err := fs.MkdirAll(backupDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory %s: %w", backupDir, err)
		}
	}

	return &Store{
		fs:          fs,
		statePath:   statePath,
		backupDir:   backupDir,
		backupCount: backupCount,
	}, nil
}

// Path returns the checkpoint path inside the store's filesystem.
func (s *Store) Path() string {
	return s.statePath
}

// Load reads the last saved checkpoint.
func (s *Store) Load() (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logger.Debug("Loading checkpoint from: %s", s.statePath)
	data, err := util.ReadFile(s.fs, s.statePath)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoCheckpoint
	}

	logger.Debug("Parsing checkpoint (%d bytes)", len(data))
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if cp.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: version %d is newer than %d", ErrCorrupt, cp.Version, CurrentVersion)
	}
	if err := cp.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Checkpoint loaded with %d entries", len(cp.Entries))
	return &cp, nil
}

// Save writes the checkpoint, keeping the previous one as a backup.
func (s *Store) Save(cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := cp.Validate(); err != nil {
		return err
	}
	cp.Version = CurrentVersion

	logger.Debug("Saving checkpoint to: %s", s.statePath)

	if s.backupCount > 0 {
		if err := s.createBackup(); err != nil {
			logger.Warn("Failed to create backup: %v", err)
		}
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	logger.Trace("Writing %d bytes of checkpoint data", len(data))
	if err := util.WriteFile(s.fs, s.statePath, data, 0600); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	written, err := util.ReadFile(s.fs, s.statePath)
	if err != nil {
		return fmt.Errorf("failed to verify written checkpoint: %w", err)
	}
	if len(written) != len(data) {
		return fmt.Errorf("checkpoint is %d bytes after write, expected %d", len(written), len(data))
	}

	logger.Debug("Checkpoint saved and verified (%d entries)", len(cp.Entries))
	return nil
}

// Backups lists the backup files, newest first.
func (s *Store) Backups() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listBackups()
}

// createBackup copies the current checkpoint to a timestamped backup file
func (s *Store) createBackup() error {
	data, err := util.ReadFile(s.fs, s.statePath)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	timestamp := time.Now().UTC().Format("20060102-150405.000000000")
	backupPath := s.fs.Join(s.backupDir, fmt.Sprintf("checkpoint-%s.json", timestamp))

	logger.Debug("Creating backup: %s", backupPath)
	if err := util.WriteFile(s.fs, backupPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	return s.cleanupOldBackups()
}

// listBackups returns backup paths sorted newest first. Names embed a
// fixed-width UTC timestamp so lexical order is chronological.
func (s *Store) listBackups() ([]string, error) {
	entries, err := s.fs.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	backups := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			backups = append(backups, s.fs.Join(s.backupDir, entry.Name()))
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

// cleanupOldBackups removes old backup files, keeping only the most recent ones
func (s *Store) cleanupOldBackups() error {
	backups, err := s.listBackups()
	if err != nil {
		return err
	}

	for i := s.backupCount; i < len(backups); i++ {
		logger.Debug("Removing old backup: %s", backups[i])
		if err := s.fs.Remove(backups[i]); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i], err)
		}
	}

	return nil
}
