package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Categories.File == "" {
		errs = append(errs, ValidationError{
			Field:   "categories.file",
			Message: "category file path is required",
		})
	}

	if !c.Database.Enabled {
		if c.Dumps.Dir == "" {
			errs = append(errs, ValidationError{
				Field:   "dumps.dir",
				Message: "dumps directory is required when the database source is disabled",
			})
		}
		for field, name := range map[string]string{
			"dumps.linktarget_file":    c.Dumps.LinkTargetFile,
			"dumps.categorylinks_file": c.Dumps.CategoryLinksFile,
			"dumps.page_file":          c.Dumps.PageFile,
		} {
			if name == "" {
				errs = append(errs, ValidationError{Field: field, Message: "dump file name is required"})
			}
		}
	} else {
		if c.Database.Host == "" {
			errs = append(errs, ValidationError{Field: "database.host", Message: "host is required"})
		}
		if c.Database.User == "" {
			errs = append(errs, ValidationError{Field: "database.user", Message: "user is required"})
		}
		if c.Database.Database == "" {
			errs = append(errs, ValidationError{Field: "database.database", Message: "database name is required"})
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, ValidationError{Field: "database.port", Message: "port must be between 1 and 65535"})
		}
		switch c.Database.TLS {
		case "disable", "preferred", "required":
		default:
			errs = append(errs, ValidationError{
				Field:   "database.tls",
				Message: "must be one of: disable, preferred, required",
			})
		}
	}

	if c.Download.OutputDir == "" {
		errs = append(errs, ValidationError{
			Field:   "download.output_dir",
			Message: "output directory is required",
		})
	}
	if c.Download.BaseURL == "" {
		errs = append(errs, ValidationError{
			Field:   "download.base_url",
			Message: "base URL is required",
		})
	} else if !strings.HasPrefix(c.Download.BaseURL, "http://") && !strings.HasPrefix(c.Download.BaseURL, "https://") {
		errs = append(errs, ValidationError{
			Field:   "download.base_url",
			Message: "base URL must start with http:// or https://",
		})
	}
	if c.Download.Workers <= 0 {
		errs = append(errs, ValidationError{
			Field:   "download.workers",
			Message: "workers must be greater than 0",
		})
	}
	if c.Download.TimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "download.timeout_seconds",
			Message: "timeout must be greater than 0",
		})
	}
	if c.Download.MaxRetries < 1 {
		errs = append(errs, ValidationError{
			Field:   "download.max_retries",
			Message: "max retries must be at least 1",
		})
	}
	if c.Download.FlushEvery <= 0 {
		errs = append(errs, ValidationError{
			Field:   "download.flush_every",
			Message: "flush batch size must be greater than 0",
		})
	}

	if c.Index.CheckpointDir == "" {
		errs = append(errs, ValidationError{
			Field:   "index.checkpoint_dir",
			Message: "checkpoint directory is required",
		})
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be one of: debug, info, warn, error",
		})
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be one of: json, text",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
