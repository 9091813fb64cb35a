package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	cfg := GetServerDefault()
	require.NoError(t, cfg.Validate())
}

func TestValidate_SyncBounds(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*BaseServerConfig)
		errMsg string
	}{
		{
			name:   "zero interval",
			modify: func(c *BaseServerConfig) { c.Sync.Interval = 0 },
			errMsg: "sync.interval",
		},
		{
			name:   "zero confirm cycles",
			modify: func(c *BaseServerConfig) { c.Sync.ConfirmCycles = 0 },
			errMsg: "sync.confirm_cycles",
		},
		{
			name:   "negative scan bound",
			modify: func(c *BaseServerConfig) { c.Sync.MaxScanMessages = -1 },
			errMsg: "sync.max_scan_messages",
		},
		{
			name:   "unknown metadata type",
			modify: func(c *BaseServerConfig) { c.Metadata.Type = "postgres" },
			errMsg: "metadata.type",
		},
		{
			name:   "sqlite without path",
			modify: func(c *BaseServerConfig) { c.Metadata.Type = "sqlite"; c.Metadata.SQLite.Path = "" },
			errMsg: "metadata.sqlite.path",
		},
		{
			name:   "bad log level",
			modify: func(c *BaseServerConfig) { c.Log.Level = "loud" },
			errMsg: "log.level",
		},
		{
			name:   "bad storage timeout",
			modify: func(c *BaseServerConfig) { c.Storage.Timeout = "soon" },
			errMsg: "storage.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetServerDefault()
			tt.modify(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSyncIntervalDuration(t *testing.T) {
	cfg := SyncServerConfig{Interval: 10}
	assert.Equal(t, "10s", cfg.IntervalDuration().String())
}
