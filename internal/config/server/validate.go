package server

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks the values the engine depends on. Connection details are
// checked by the adapters when they are constructed.
func (c *BaseServerConfig) Validate() error {
	var errs []error

	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("shutdown_timeout: %w", err))
	}

	if err := c.Log.validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Sync.Interval <= 0 {
		errs = append(errs, fmt.Errorf("sync.interval must be greater than 0, got %d", c.Sync.Interval))
	}
	if c.Sync.ConfirmCycles < 1 {
		errs = append(errs, fmt.Errorf("sync.confirm_cycles must be at least 1, got %d", c.Sync.ConfirmCycles))
	}
	if c.Sync.MaxScanMessages <= 0 {
		errs = append(errs, fmt.Errorf("sync.max_scan_messages must be positive, got %d", c.Sync.MaxScanMessages))
	}

	switch c.Metadata.Type {
	case "memory":
	case "sqlite":
		if c.Metadata.SQLite.Path == "" {
			errs = append(errs, errors.New("metadata.sqlite.path is required for sqlite metadata"))
		}
	default:
		errs = append(errs, fmt.Errorf("metadata.type: unsupported type '%s'", c.Metadata.Type))
	}

	for name, value := range map[string]string{
		"channel.timeout": c.Channel.Timeout,
		"storage.timeout": c.Storage.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if c.Storage.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("storage.page_size must be positive, got %d", c.Storage.PageSize))
	}

	return errors.Join(errs...)
}
