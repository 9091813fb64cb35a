package server

import "time"

// SyncServerConfig controls the synchronization engine.
type SyncServerConfig struct {
	Enabled         bool `mapstructure:"enabled"           yaml:"enabled"`
	Interval        int  `mapstructure:"interval"          yaml:"interval"` // Seconds between reconciliation cycles
	ConfirmCycles   int  `mapstructure:"confirm_cycles"    yaml:"confirm_cycles"`
	MaxScanMessages int  `mapstructure:"max_scan_messages" yaml:"max_scan_messages"`

	// AdoptExisting maps new channel messages onto files that already exist
	// in storage under the same name instead of treating them as new uploads.
	AdoptExisting bool `mapstructure:"adopt_existing" yaml:"adopt_existing"`
	// FollowMoves migrates a mapping to a new storage id when a file with the
	// same name reappears under a different id.
	FollowMoves bool `mapstructure:"follow_moves" yaml:"follow_moves"`
}

func (c SyncServerConfig) IntervalDuration() time.Duration {
	return time.Duration(c.Interval) * time.Second
}
