package config

import "time"

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "agrimatch"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "agrimatch"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	// Payments defaults
	if cfg.Payments.Currency == "" {
		cfg.Payments.Currency = "usd"
	}
	if cfg.Payments.StripeSecretKey == "" {
		cfg.Payments.DemoMode = true
	}

	// Monitor defaults
	if cfg.Monitors.SearchWindow == 0 {
		cfg.Monitors.SearchWindow = 48 * time.Hour
	}
	if cfg.Monitors.TimeoutInterval == 0 {
		cfg.Monitors.TimeoutInterval = 5 * time.Minute
	}
	if cfg.Monitors.SilenceWindow == 0 {
		cfg.Monitors.SilenceWindow = 2 * time.Hour
	}
	if cfg.Monitors.HeartbeatInterval == 0 {
		cfg.Monitors.HeartbeatInterval = 15 * time.Minute
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
