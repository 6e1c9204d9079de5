package config

import "time"

// QueueConfig controls session polling, claiming, and worker-pool behavior
// (spec §4.10).
type QueueConfig struct {
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentSessions is the global cap across ALL replicas, enforced
	// by a database COUNT(*) admission check.
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions"`
	// MaxQueueSize, if non-zero, makes the ingress reject new alerts with
	// QueueFull once count_pending_sessions() reaches it (spec §4.10).
	MaxQueueSize int `yaml:"max_queue_size,omitempty"`

	PollInterval       time.Duration `yaml:"poll_interval"`
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	SessionTimeout          time.Duration `yaml:"session_timeout"`
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	HeartbeatInterval       time.Duration `yaml:"heartbeat_interval"`
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`
	OrphanThreshold         time.Duration `yaml:"orphan_threshold"`
}

// DefaultQueueConfig returns the built-in queue defaults (spec §4.10).
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		WorkerCount:             5,
		MaxConcurrentSessions:   5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		SessionTimeout:          15 * time.Minute,
		GracefulShutdownTimeout: 15 * time.Minute,
		HeartbeatInterval:       10 * time.Second,
		OrphanDetectionInterval: 5 * time.Minute,
		OrphanThreshold:         30 * time.Minute,
	}
}
