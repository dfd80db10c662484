package config

import (
	"errors"
	"fmt"
	"strconv"

	lcserrors "github.com/standardbeagle/lcs/internal/errors"
	"github.com/standardbeagle/lcs/internal/protocol"
)

// MaxFileSizeLimit is the largest per-file limit a configuration may set.
const MaxFileSizeLimit = 100 * 1024 * 1024

// Validator validates configuration and fills in missing defaults.
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates cfg and applies defaults for unset values.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	v.setDefaults(cfg)

	if cfg.Project.Root == "" {
		return lcserrors.NewConfigError("project.root", "", errors.New("project root cannot be empty"))
	}
	if err := v.validateSearchConfig(&cfg.Search); err != nil {
		return err
	}
	if cfg.Watch.DebounceMs < 0 {
		return lcserrors.NewConfigError("watch.debounce_ms", strconv.Itoa(cfg.Watch.DebounceMs),
			errors.New("debounce cannot be negative"))
	}
	return nil
}

func (v *Validator) validateSearchConfig(search *Search) error {
	if search.MaxFileSize <= 0 {
		return lcserrors.NewConfigError("search.max_file_size", strconv.FormatInt(search.MaxFileSize, 10),
			errors.New("max file size must be positive"))
	}
	if search.MaxFileSize > MaxFileSizeLimit {
		return lcserrors.NewConfigError("search.max_file_size", strconv.FormatInt(search.MaxFileSize, 10),
			fmt.Errorf("max file size should not exceed %dMB", MaxFileSizeLimit/(1024*1024)))
	}
	if search.DebounceMs < 0 {
		return lcserrors.NewConfigError("search.debounce_ms", strconv.Itoa(search.DebounceMs),
			errors.New("debounce cannot be negative"))
	}
	if len(search.Extensions) == 0 {
		return lcserrors.NewConfigError("search.extensions", "", errors.New("at least one extension is required"))
	}
	return nil
}

func (v *Validator) setDefaults(cfg *Config) {
	if cfg.Search.MaxFileSize == 0 {
		cfg.Search.MaxFileSize = protocol.DefaultMaxFileSize
	}
	if cfg.Search.Extensions == nil {
		cfg.Search.Extensions = append([]string(nil), protocol.DefaultExtensions...)
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
