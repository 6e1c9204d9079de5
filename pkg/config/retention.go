package config

import "time"

// RetentionConfig controls the background data-retention sweeps (spec
// §4.14).
type RetentionConfig struct {
	// SessionRetentionDays is how many days to keep completed sessions
	// before soft-deleting them (setting deleted_at).
	SessionRetentionDays int `yaml:"session_retention_days"`

	// EventTTL bounds the age of orphaned Event rows a per-session cleanup
	// missed; this sweep is the safety net, not the normal path.
	EventTTL time.Duration `yaml:"event_ttl"`

	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		SessionRetentionDays: 365,
		EventTTL:             1 * time.Hour,
		CleanupInterval:      12 * time.Hour,
	}
}
