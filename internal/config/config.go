package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	BlobDir     string `mapstructure:"blob_dir" yaml:"blob_dir"`
	BlobBaseURL string `mapstructure:"blob_base_url" yaml:"blob_base_url"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// PresenceGrace is how long a disconnect is held back before the
	// offline transition is broadcast, to absorb reconnect churn.
	PresenceGrace time.Duration `mapstructure:"presence_grace" yaml:"presence_grace"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "classchat.db",
		BlobDir:           "blobs",
		BlobBaseURL:       "/media",
		JWTIssuer:         "classchat",
		JWTAudience:       "classchat",
		LogLevel:          "info",
		PresenceGrace:     3 * time.Second,
	}
}
