package types

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigValidationError represents a configuration validation error
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConfigValidationResult contains the results of configuration validation
type ConfigValidationResult struct {
	Valid    bool
	Errors   []ConfigValidationError
	Warnings []string
}

// AddError adds an error to the result
func (r *ConfigValidationResult) AddError(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, ConfigValidationError{Field: field, Message: message})
}

// AddWarning adds a warning to the result
func (r *ConfigValidationResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

// Err joins all errors, or returns nil when the config is valid
func (r *ConfigValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// ValidateDisk validates the configuration of a named disk
func ValidateDisk(name string, cfg DiskConfig) *ConfigValidationResult {
	result := &ConfigValidationResult{Valid: true}

	switch cfg.Driver {
	case StorageTypeS3:
		if cfg.Region == "" && cfg.Endpoint == "" {
			result.AddWarning(fmt.Sprintf("disk %q has no region or endpoint; the SDK default chain decides", name))
		}
	case StorageTypeMemory:
		if cfg.TemporaryURL != "" {
			result.AddWarning(fmt.Sprintf("disk %q: temporary_url is ignored by the memory driver", name))
		}
	case "":
		result.AddError("driver", "driver cannot be empty")
	default:
		result.AddError("driver", fmt.Sprintf("unknown driver %q", cfg.Driver))
	}

	if strings.TrimSpace(cfg.Bucket) == "" {
		result.AddError("bucket", "bucket cannot be empty")
	}

	if (cfg.Key == "") != (cfg.Secret == "") {
		result.AddError("key", "key and secret must be set together")
	}
	if cfg.Token != "" && !cfg.HasCredentials() {
		result.AddError("token", "token requires key and secret")
	}

	if cfg.DeleteConcurrency < 0 {
		result.AddError("delete_concurrency", "delete_concurrency cannot be negative")
	}
	if cfg.DeleteRateLimit < 0 {
		result.AddError("delete_rate_limit", "delete_rate_limit cannot be negative")
	}

	return result
}
