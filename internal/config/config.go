// Package config loads the fraud-etl run configuration from a YAML file,
// FRAUDETL_* environment variables and built-in defaults.
package config

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/ehsanSh21/clickhouse-metabase/internal/schema"
)

// EnvPrefix is prepended to every environment override, e.g.
// FRAUDETL_SOURCE_DSN or FRAUDETL_DESTINATION_PASSWORD.
const EnvPrefix = "FRAUDETL"

const masked = "********"

type Config struct {
	Source      SourceConfig      `mapstructure:"source" yaml:"source"`
	Destination DestinationConfig `mapstructure:"destination" yaml:"destination"`
	Transform   TransformConfig   `mapstructure:"transform" yaml:"transform"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Notify      NotifyConfig      `mapstructure:"notify" yaml:"notify"`
	Report      ReportConfig      `mapstructure:"report" yaml:"report"`
}

// SourceConfig points at the normalized OLTP database.
type SourceConfig struct {
	// Driver is a database/sql driver name: pgx, postgres or sqlite3.
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// DestinationConfig selects and configures the analytical store.
type DestinationConfig struct {
	// Kind is clickhouse, duckdb or parquet.
	Kind         string   `mapstructure:"kind" yaml:"kind"`
	Addr         []string `mapstructure:"addr" yaml:"addr"`
	Database     string   `mapstructure:"database" yaml:"database"`
	Username     string   `mapstructure:"username" yaml:"username"`
	Password     string   `mapstructure:"password" yaml:"password"`
	Table        string   `mapstructure:"table" yaml:"table"`
	MaxOpenConns int      `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int      `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	// Path is the DuckDB database file or the parquet output directory.
	Path        string `mapstructure:"path" yaml:"path"`
	CreateTable bool   `mapstructure:"create_table" yaml:"create_table"`
	VerifyCount bool   `mapstructure:"verify_count" yaml:"verify_count"`
}

type TransformConfig struct {
	StrictJoins bool `mapstructure:"strict_joins" yaml:"strict_joins"`
	// RunDate pins the date used for age derivation (YYYY-MM-DD). Empty
	// means today in UTC.
	RunDate string `mapstructure:"run_date" yaml:"run_date"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

type NotifyConfig struct {
	SlackWebhookURL string `mapstructure:"slack_webhook_url" yaml:"slack_webhook_url"`
	Channel         string `mapstructure:"channel" yaml:"channel"`
}

type ReportConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Source: SourceConfig{Driver: "pgx"},
		Destination: DestinationConfig{
			Kind:         "clickhouse",
			Addr:         []string{"localhost:9000"},
			Database:     "default",
			Username:     "default",
			Table:        schema.DefaultAnalyticsTable,
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("source.driver", d.Source.Driver)
	v.SetDefault("source.dsn", "")
	v.SetDefault("destination.kind", d.Destination.Kind)
	v.SetDefault("destination.addr", d.Destination.Addr)
	v.SetDefault("destination.database", d.Destination.Database)
	v.SetDefault("destination.username", d.Destination.Username)
	v.SetDefault("destination.password", "")
	v.SetDefault("destination.table", d.Destination.Table)
	v.SetDefault("destination.max_open_conns", d.Destination.MaxOpenConns)
	v.SetDefault("destination.max_idle_conns", d.Destination.MaxIdleConns)
	v.SetDefault("destination.path", "")
	v.SetDefault("destination.create_table", false)
	v.SetDefault("destination.verify_count", false)
	v.SetDefault("transform.strict_joins", false)
	v.SetDefault("transform.run_date", "")
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("notify.slack_webhook_url", "")
	v.SetDefault("notify.channel", "")
	v.SetDefault("report.path", "")
}

// Load reads path (if non-empty), applies env overrides and defaults, and
// decodes the result. It does not validate.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	return &cfg, nil
}

// Masked returns a copy safe to print: passwords and webhook URLs are
// replaced and DSN credentials redacted.
func (c Config) Masked() Config {
	out := c
	out.Destination.Addr = append([]string(nil), c.Destination.Addr...)
	out.Source.DSN = redactDSN(c.Source.DSN)
	if out.Destination.Password != "" {
		out.Destination.Password = masked
	}
	if out.Notify.SlackWebhookURL != "" {
		out.Notify.SlackWebhookURL = masked
	}
	return out
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if strings.Contains(dsn, "://") {
		if u, err := url.Parse(dsn); err == nil {
			return u.Redacted()
		}
		return masked
	}
	// key=value form used by lib/pq and pgx.
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "password=") {
			fields[i] = "password=" + masked
		}
	}
	return strings.Join(fields, " ")
}
