package streamgroup

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// KVBucketConfig configures NATS JetStream KV bucket names.
type KVBucketConfig struct {
	// MembershipBucket is the bucket holding live member records.
	// Its TTL is set to SessionTimeout when the client creates it.
	MembershipBucket string `yaml:"membershipBucket"`

	// Replicas is the replication factor of buckets created by the client.
	Replicas int `yaml:"replicas"`
}

// ============================================================================
// Session Timing Model
// ============================================================================
//
// A member record lives in a KV bucket whose entries expire after
// SessionTimeout. Each thread refreshes its record every HeartbeatInterval:
//
//	join ──┬── hb ── hb ── hb ──┬─────────────── expiry
//	       │                    │ Close(leaveGroup=false)
//	       │                    └── record expires at SessionTimeout
//	       │
//	       └── Close(leaveGroup=true): keep-alive stops, record deleted now
//
// Constraints:
//   - SessionTimeout >= 2 * HeartbeatInterval (one missed heartbeat tolerated)
//   - DepartureTimeout should cover OperationTimeout so a slow but successful
//     delete is still confirmed
//
// ============================================================================

// Config is the configuration for the Client.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// ApplicationID identifies the consumer group. Required.
	ApplicationID string `yaml:"applicationId"`

	// ClientID prefixes thread names and member IDs.
	// Default: "<ApplicationID>-<uuid>".
	ClientID string `yaml:"clientId"`

	// GroupInstanceID enables static membership. Each thread joins as
	// "<GroupInstanceID>-<n>", and a restarted instance takes over the records
	// of its previous incarnation instead of joining as a new member.
	GroupInstanceID string `yaml:"groupInstanceId"`

	// NumStreamThreads is the number of worker threads. Each thread is one
	// group member.
	NumStreamThreads int `yaml:"numStreamThreads"`

	// SessionTimeout is how long a member record survives without a heartbeat.
	// Recommended: 45 seconds.
	SessionTimeout time.Duration `yaml:"sessionTimeout"`

	// HeartbeatInterval is how often each thread refreshes its member record.
	// Recommended: SessionTimeout / 3 or lower.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	// DepartureTimeout bounds how long a stopping thread waits for its
	// departure request to be confirmed.
	DepartureTimeout time.Duration `yaml:"departureTimeout"`

	// DepartureQueueSize bounds pending departure requests.
	// Must be >= NumStreamThreads so a full close never overflows it.
	DepartureQueueSize int `yaml:"departureQueueSize"`

	// OperationTimeout is the timeout for KV operations (create, delete).
	// Recommended: 10 seconds.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// StartupTimeout is the maximum time Start may take to join all threads.
	// Recommended: 30 seconds.
	StartupTimeout time.Duration `yaml:"startupTimeout"`

	// DefaultCloseTimeout is the timeout Stop uses.
	// Close uses the timeout of its CloseOptions instead.
	DefaultCloseTimeout time.Duration `yaml:"defaultCloseTimeout"`

	// KVBuckets controls NATS JetStream KV bucket configuration.
	KVBuckets KVBucketConfig `yaml:"kvBuckets"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// ApplicationID has no default and must be set by the caller.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		NumStreamThreads:    1,
		SessionTimeout:      45 * time.Second,
		HeartbeatInterval:   3 * time.Second,
		DepartureTimeout:    10 * time.Second,
		DepartureQueueSize:  64,
		OperationTimeout:    10 * time.Second,
		StartupTimeout:      30 * time.Second,
		DefaultCloseTimeout: 30 * time.Second,
		KVBuckets: KVBucketConfig{
			MembershipBucket: "streamgroup-members",
			Replicas:         1,
		},
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.ClientID == "" && cfg.ApplicationID != "" {
		cfg.ClientID = cfg.ApplicationID + "-" + uuid.NewString()
	}
	if cfg.NumStreamThreads == 0 {
		cfg.NumStreamThreads = defaults.NumStreamThreads
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = defaults.SessionTimeout
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.DepartureTimeout == 0 {
		cfg.DepartureTimeout = defaults.DepartureTimeout
	}
	if cfg.DepartureQueueSize == 0 {
		cfg.DepartureQueueSize = max(defaults.DepartureQueueSize, cfg.NumStreamThreads)
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = defaults.StartupTimeout
	}
	if cfg.DefaultCloseTimeout == 0 {
		cfg.DefaultCloseTimeout = defaults.DefaultCloseTimeout
	}
	if cfg.KVBuckets.MembershipBucket == "" {
		cfg.KVBuckets.MembershipBucket = defaults.KVBuckets.MembershipBucket
	}
	if cfg.KVBuckets.Replicas == 0 {
		cfg.KVBuckets.Replicas = defaults.KVBuckets.Replicas
	}
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - ApplicationID is set
//   - NumStreamThreads >= 1
//   - HeartbeatInterval > 0
//   - SessionTimeout >= 2 * HeartbeatInterval (allow 1 missed heartbeat)
//   - DepartureQueueSize >= NumStreamThreads
//   - DepartureTimeout, OperationTimeout, StartupTimeout > 0
//
// Returns:
//   - error: Validation error wrapping ErrInvalidConfig, nil if valid
func (cfg *Config) Validate() error {
	// Rule 1: group identity
	if cfg.ApplicationID == "" {
		return fmt.Errorf("%w: ApplicationID is required", ErrInvalidConfig)
	}

	// Rule 2: thread count
	if cfg.NumStreamThreads < 1 {
		return fmt.Errorf("%w: NumStreamThreads must be >= 1, got %d", ErrInvalidConfig, cfg.NumStreamThreads)
	}

	// Rule 3: session timing
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: HeartbeatInterval must be > 0, got %v", ErrInvalidConfig, cfg.HeartbeatInterval)
	}
	if cfg.SessionTimeout < 2*cfg.HeartbeatInterval {
		return fmt.Errorf(
			"%w: SessionTimeout (%v) must be >= 2*HeartbeatInterval (%v) to allow one missed heartbeat",
			ErrInvalidConfig, cfg.SessionTimeout, cfg.HeartbeatInterval,
		)
	}

	// Rule 4: departure queue capacity
	if cfg.DepartureQueueSize < cfg.NumStreamThreads {
		return fmt.Errorf(
			"%w: DepartureQueueSize (%d) must be >= NumStreamThreads (%d)",
			ErrInvalidConfig, cfg.DepartureQueueSize, cfg.NumStreamThreads,
		)
	}

	// Rule 5: timeouts
	if cfg.DepartureTimeout <= 0 || cfg.OperationTimeout <= 0 || cfg.StartupTimeout <= 0 {
		return fmt.Errorf(
			"%w: DepartureTimeout (%v), OperationTimeout (%v) and StartupTimeout (%v) must be > 0",
			ErrInvalidConfig, cfg.DepartureTimeout, cfg.OperationTimeout, cfg.StartupTimeout,
		)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for non-recommended values.
//
// This is called after Validate() in NewClient() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.SessionTimeout < 3*cfg.HeartbeatInterval {
		logger.Warn(
			"SessionTimeout is below recommended minimum",
			"sessionTimeout", cfg.SessionTimeout,
			"heartbeatInterval", cfg.HeartbeatInterval,
			"recommended", 3*cfg.HeartbeatInterval,
		)
	}

	if cfg.DepartureTimeout < cfg.OperationTimeout {
		logger.Warn(
			"DepartureTimeout is shorter than OperationTimeout, slow departures may be reported as failed",
			"departureTimeout", cfg.DepartureTimeout,
			"operationTimeout", cfg.OperationTimeout,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := streamgroup.TestConfig()
//	cfg.ApplicationID = "test-app"
//	client, err := streamgroup.NewClient(cfg, nc, factory)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.SessionTimeout = 3 * time.Second
	cfg.HeartbeatInterval = 500 * time.Millisecond
	cfg.DepartureTimeout = 5 * time.Second
	cfg.OperationTimeout = 2 * time.Second
	cfg.StartupTimeout = 10 * time.Second
	cfg.DefaultCloseTimeout = 5 * time.Second

	return cfg
}

// ParseConfig decodes a YAML document into a Config and applies defaults.
//
// Parameters:
//   - data: YAML document
//
// Returns:
//   - Config: Decoded configuration with defaults applied
//   - error: Decode error or validation error wrapping ErrInvalidConfig
//
// Example:
//
//	cfg, err := streamgroup.ParseConfig([]byte(`
//	applicationId: orders
//	numStreamThreads: 4
//	sessionTimeout: 30s
//	`))
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return ParseConfig(data)
}
