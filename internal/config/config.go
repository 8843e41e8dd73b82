package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// GroupMemberCap is the largest membership a group chat may grow to.
	GroupMemberCap int `mapstructure:"group_member_cap" yaml:"group_member_cap"`

	MediaDir     string `mapstructure:"media_dir" yaml:"media_dir"`
	MediaBaseURL string `mapstructure:"media_base_url" yaml:"media_base_url"`

	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	SMTPUser string `mapstructure:"smtp_user" yaml:"smtp_user"`
	SMTPPass string `mapstructure:"smtp_pass" yaml:"smtp_pass"`
	SMTPFrom string `mapstructure:"smtp_from" yaml:"smtp_from"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "chattu.db",
		LogLevel:          "info",
		JWTSecret:         "change-me",
		JWTIssuer:         "chattu",
		JWTAudience:       "chattu",
		GroupMemberCap:    100,
		MediaDir:          "media",
		MediaBaseURL:      "/media",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.GroupMemberCap != 0 {
		c.GroupMemberCap = other.GroupMemberCap
	}
}
