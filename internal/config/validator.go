package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	// SourceDrivers are the database/sql drivers the extractor registers.
	SourceDrivers = []string{"pgx", "postgres", "sqlite3"}
	// DestinationKinds are the load backends.
	DestinationKinds = []string{"clickhouse", "duckdb", "parquet"}
	LogLevels        = []string{"trace", "debug", "info", "warn", "error"}
	LogFormats       = []string{"console", "json"}
)

// ValidationError describes one bad field with an optional suggestion.
type ValidationError struct {
	Field       string
	Value       interface{}
	Problem     string
	Suggestion  string
	ValidValues []string
}

func (e ValidationError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "%s: %v  # <-- %s", e.Field, e.Value, e.Problem)
	if e.Suggestion != "" {
		fmt.Fprintf(&msg, " (did you mean '%s'?)", e.Suggestion)
	}
	if len(e.ValidValues) > 0 {
		fmt.Fprintf(&msg, " valid options: %s", strings.Join(e.ValidValues, ", "))
	}
	return msg.String()
}

// ValidationResult holds every error and warning found.
type ValidationResult struct {
	Errors   []error
	Warnings []string
}

func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

func (r *ValidationResult) AddError(err error) {
	r.Errors = append(r.Errors, err)
}

func (r *ValidationResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// Validate checks cfg without touching the network.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateChoice("source.driver", cfg.Source.Driver, SourceDrivers, result)
	if cfg.Source.DSN == "" {
		result.AddError(ValidationError{
			Field:   "source.dsn",
			Value:   "",
			Problem: "source DSN is required (set it in the file or FRAUDETL_SOURCE_DSN)",
		})
	}

	d := cfg.Destination
	validateChoice("destination.kind", d.Kind, DestinationKinds, result)
	switch d.Kind {
	case "clickhouse":
		if len(d.Addr) == 0 {
			result.AddError(ValidationError{Field: "destination.addr", Value: d.Addr, Problem: "at least one address is required"})
		}
		if d.Path != "" {
			result.AddWarning("destination.path is ignored for clickhouse")
		}
	case "duckdb", "parquet":
		if d.Path == "" {
			result.AddError(ValidationError{Field: "destination.path", Value: "", Problem: fmt.Sprintf("path is required for %s", d.Kind)})
		}
	}
	if d.Kind == "parquet" {
		if d.CreateTable {
			result.AddWarning("destination.create_table has no effect for parquet")
		}
		if d.VerifyCount {
			result.AddWarning("destination.verify_count only counts rows written by this run for parquet")
		}
	}
	if d.Table == "" {
		result.AddError(ValidationError{Field: "destination.table", Value: "", Problem: "table name is required"})
	} else if !isIdentifier(d.Table) {
		result.AddError(ValidationError{Field: "destination.table", Value: d.Table, Problem: "must be a plain identifier"})
	}

	if cfg.Transform.RunDate != "" {
		if _, err := time.Parse(time.DateOnly, cfg.Transform.RunDate); err != nil {
			result.AddError(ValidationError{Field: "transform.run_date", Value: cfg.Transform.RunDate, Problem: "expected YYYY-MM-DD"})
		}
	}

	validateChoice("log.level", cfg.Log.Level, LogLevels, result)
	validateChoice("log.format", cfg.Log.Format, LogFormats, result)

	if cfg.Notify.Channel != "" && cfg.Notify.SlackWebhookURL == "" {
		result.AddWarning("notify.channel is set but notify.slack_webhook_url is empty; no notification will be sent")
	}

	return result
}

func validateChoice(field, value string, valid []string, result *ValidationResult) {
	if slices.Contains(valid, value) {
		return
	}
	result.AddError(ValidationError{
		Field:       field,
		Value:       value,
		Problem:     "unknown value",
		Suggestion:  strings.Join(similar(value, valid), " or "),
		ValidValues: valid,
	})
}

// similar returns candidates that contain value, are contained in it, or
// share its first two letters.
func similar(value string, candidates []string) []string {
	value = strings.ToLower(value)
	if value == "" {
		return nil
	}
	var out []string
	for _, c := range candidates {
		switch {
		case strings.Contains(c, value), strings.Contains(value, c):
			out = append(out, c)
		case len(value) > 2 && strings.HasPrefix(c, value[:2]):
			out = append(out, c)
		}
	}
	return out
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}
