package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"pfreg/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "world.rank")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateStorage()...)
	errors = append(errors, c.validateWorld()...)
	errors = append(errors, c.validateLog()...)
	return errors
}

func (c *Config) validateStorage() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Storage.Root) == "" {
		errors = append(errors, ValidationError{
			Field:   "storage.root",
			Value:   c.Storage.Root,
			Message: "must not be empty",
		})
	}

	cp := c.Storage.Checkpoint
	switch {
	case strings.TrimSpace(cp) == "":
		errors = append(errors, ValidationError{
			Field:   "storage.checkpoint",
			Value:   cp,
			Message: "must not be empty",
		})
	case filepath.IsAbs(cp) || strings.HasPrefix(filepath.Clean(cp), ".."):
		errors = append(errors, ValidationError{
			Field:   "storage.checkpoint",
			Value:   cp,
			Message: "must be a path inside storage.root",
		})
	}

	if c.Storage.Backups < 0 {
		errors = append(errors, ValidationError{
			Field:   "storage.backups",
			Value:   c.Storage.Backups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateWorld() []ValidationError {
	var errors []ValidationError
	w := c.World

	if w.Size <= 0 {
		errors = append(errors, ValidationError{
			Field:   "world.size",
			Value:   w.Size,
			Message: "must be positive",
		})
		return errors
	}

	if w.Rank < 0 || w.Rank >= w.Size {
		errors = append(errors, ValidationError{
			Field:   "world.rank",
			Value:   w.Rank,
			Message: fmt.Sprintf("must be in [0, %d)", w.Size),
		})
	}

	if w.Root < 0 || w.Root >= w.Size {
		errors = append(errors, ValidationError{
			Field:   "world.root",
			Value:   w.Root,
			Message: fmt.Sprintf("must be in [0, %d)", w.Size),
		})
	}

	return errors
}

func (c *Config) validateLog() []ValidationError {
	if c.Log.Level == "" {
		return nil
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return []ValidationError{{
			Field:   "log.level",
			Value:   c.Log.Level,
			Message: "must be one of: error, warn, info, debug, trace",
		}}
	}
	return nil
}
