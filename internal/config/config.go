// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - All athlete thresholds live here and are injected into the engine
//   at construction; no package reads them from global state.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// MetricsAddr configures the observability listen address, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// WatchDir is the directory tree observed for FIT files.
	WatchDir string `koanf:"watch_dir"`

	// DBPath locates the SQLite activity library.
	DBPath string `koanf:"db_path"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory file-event queue.
	QueueSize int `koanf:"queue_size"`

	// InflightSize bounds the fingerprint inflight registry.
	InflightSize int `koanf:"inflight_size"`

	// ReadRetries and ReadRetryBackoffMS govern transient file-read
	// retries; they apply before decoding only, never after a
	// structural decode failure.
	ReadRetries        int `koanf:"read_retries"`
	ReadRetryBackoffMS int `koanf:"read_retry_backoff_ms"`

	// Athlete heart-rate bounds for TRIMP load.
	RestingHR int `koanf:"resting_hr"`
	MaxHR     int `koanf:"max_hr"`

	// ThresholdSpeedMPS is the athlete's threshold pace expressed as
	// speed; used only for activities recorded without heart rate.
	ThresholdSpeedMPS float64 `koanf:"threshold_speed_mps"`

	// Training-load zone cut-points: inclusive lower bounds of Base,
	// Overload and Overreaching. Loads below LoadBase classify as
	// Recovery.
	LoadBase         float64 `koanf:"load_base"`
	LoadOverload     float64 `koanf:"load_overload"`
	LoadOverreaching float64 `koanf:"load_overreaching"`
}

// New returns a Config populated with defaults. The load cut-points
// follow the published TRIMP category bounds; the heart-rate bounds
// are generic placeholders an athlete overrides in their own config.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		MetricsAddr:        ":9090",
		WatchDir:           "activities",
		DBPath:             "runner_stats.db",
		WorkerCount:        runtime.NumCPU(),
		QueueSize:          4096,
		InflightSize:       50_000,
		ReadRetries:        3,
		ReadRetryBackoffMS: 250,
		RestingHR:          60,
		MaxHR:              190,
		ThresholdSpeedMPS:  3.35,
		LoadBase:           75,
		LoadOverload:       150,
		LoadOverreaching:   300,
	}
}
