package config

import "time"

// ServerConfig holds the HTTP and websocket listener configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// JWTSecret signs and verifies auth tokens
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=16"`
}
