// Package storage provides the SQL-backed claim loader for the scoring
// engine.
package storage

import (
	"fmt"
	"net/url"

	"github.com/spf13/viper"
)

// Config holds the claim warehouse connection settings.
type Config struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`

	// Table is the claim detail table to load from.
	Table string `mapstructure:"table"`

	// Limit caps the number of rows loaded per run. Zero means no cap.
	Limit int `mapstructure:"limit"`
}

// defaultTable is the copay detail reporting table the engine scores.
const defaultTable = "dbo.rpt_copay_detail_bc_ext"

// LoadConfig reads the warehouse profile from the given file. Credentials
// may be supplied via DB_USER and DB_PASSWORD environment variables,
// which take precedence over the profile.
func LoadConfig(profilePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(profilePath)
	v.SetDefault("port", 1433)
	v.SetDefault("table", defaultTable)
	v.SetDefault("limit", 10000)

	if err := v.BindEnv("user", "DB_USER"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("password", "DB_PASSWORD"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse warehouse config: %w", err)
	}
	return &cfg, nil
}

// DSN renders the sqlserver connection string for this configuration.
func (c *Config) DSN() string {
	u := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
	}
	q := url.Values{}
	q.Set("database", c.Database)
	u.RawQuery = q.Encode()
	return u.String()
}
