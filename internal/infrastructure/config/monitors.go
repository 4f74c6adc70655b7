package config

import "time"

// MonitorsConfig holds the background sweep windows and cadences
type MonitorsConfig struct {
	// SearchWindow is how long an order may sit in LOGISTICS_SEARCH before
	// the timeout sweep rolls it back to LISTED
	SearchWindow    time.Duration `mapstructure:"search_window"`
	TimeoutInterval time.Duration `mapstructure:"timeout_interval"`

	// SilenceWindow is how long a tracker may stay quiet before the
	// heartbeat sweep alerts
	SilenceWindow     time.Duration `mapstructure:"silence_window"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}
