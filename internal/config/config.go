package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the trial services.
// Environment variables are automatically parsed from the MRT_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration (health endpoint)
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Loop intervals
	EvalInterval     time.Duration `envconfig:"EVAL_INTERVAL" default:"5m"`
	DispatchInterval time.Duration `envconfig:"DISPATCH_INTERVAL" default:"1m"`

	// Study platform API
	APIBaseURL     string `envconfig:"API_BASE_URL" default:"https://designer.mydatahelps.org"`
	ProjectID      string `envconfig:"PROJECT_ID" default:""`
	ServiceAccount string `envconfig:"SERVICE_ACCOUNT" default:""`
	// PEM-encoded RSA private key for the service account
	PrivateKey string `envconfig:"PRIVATE_KEY" default:""`
	TokenURL   string `envconfig:"TOKEN_URL" default:"https://designer.mydatahelps.org/identityserver/connect/token"`

	// Segment per platform, e.g. "ios:seg-1,android:seg-2"
	SegmentIDs map[string]string `envconfig:"SEGMENT_IDS" default:""`

	// Object storage for schedule and sent logs
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"s3"`
	S3Endpoint    string `envconfig:"S3_ENDPOINT" default:""`
	S3AccessKey   string `envconfig:"S3_ACCESS_KEY" default:""`
	S3SecretKey   string `envconfig:"S3_SECRET_KEY" default:""`
	S3Bucket      string `envconfig:"S3_BUCKET" default:""`
	S3UseSSL      bool   `envconfig:"S3_USE_SSL" default:"true"`

	// Randomization
	RandomizationPolicy string `envconfig:"RANDOMIZATION_POLICY" default:"uniform"`
	Daypart             string `envconfig:"DAYPART" default:"midday"`

	// Wearable feed staleness probe
	UltrahumanBaseURL   string        `envconfig:"ULTRAHUMAN_BASE_URL" default:""`
	UltrahumanAPIKey    string        `envconfig:"ULTRAHUMAN_API_KEY" default:""`
	StalenessThreshold  time.Duration `envconfig:"STALENESS_THRESHOLD" default:"6h"`
	SyncReminderEnabled bool          `envconfig:"SYNC_REMINDER_ENABLED" default:"false"`
	// Comma-separated "signal op value" rules that also flag a reminder,
	// e.g. "total_steps absent,total_steps < 100"
	ReminderConditions string `envconfig:"REMINDER_CONDITIONS" default:"total_steps absent"`

	// Completion checks before dispatch
	CompletionCheckEnabled bool `envconfig:"COMPLETION_CHECK_ENABLED" default:"true"`
}

// ResolveDefaults validates driver and policy selections and the settings
// they require.
func (c *Config) ResolveDefaults() error {
	allowedStorage := map[string]bool{"s3": true, "memory": true}
	if !allowedStorage[c.StorageDriver] {
		return fmt.Errorf("unsupported STORAGE_DRIVER: %s", c.StorageDriver)
	}
	if c.StorageDriver == "s3" && c.S3Bucket == "" {
		return fmt.Errorf("STORAGE_DRIVER s3 requires S3_BUCKET")
	}

	allowedPolicy := map[string]bool{"uniform": true, "context": true}
	if !allowedPolicy[c.RandomizationPolicy] {
		return fmt.Errorf("unsupported RANDOMIZATION_POLICY: %s", c.RandomizationPolicy)
	}

	allowedDaypart := map[string]bool{"midday": true, "evening": true}
	if !allowedDaypart[c.Daypart] {
		return fmt.Errorf("unsupported DAYPART: %s", c.Daypart)
	}

	if c.SyncReminderEnabled && c.UltrahumanAPIKey == "" {
		return fmt.Errorf("SYNC_REMINDER_ENABLED requires ULTRAHUMAN_API_KEY")
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Environment variables should be prefixed with MRT_
// Example: MRT_PROJECT_ID, MRT_HTTP_PORT
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("MRT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("port", cfg.HTTPPort).
		Dur("eval_interval", cfg.EvalInterval).
		Dur("dispatch_interval", cfg.DispatchInterval).
		Str("project", cfg.ProjectID).
		Str("storage_driver", cfg.StorageDriver).
		Str("randomization_policy", cfg.RandomizationPolicy).
		Str("daypart", cfg.Daypart).
		Bool("sync_reminder", cfg.SyncReminderEnabled).
		Bool("completion_check", cfg.CompletionCheckEnabled).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:            EnvTesting,
		HTTPPort:               8080,
		EvalInterval:           5 * time.Minute,
		DispatchInterval:       time.Minute,
		APIBaseURL:             "http://localhost:8090",
		ProjectID:              "test-project",
		StorageDriver:          "memory",
		RandomizationPolicy:    "uniform",
		Daypart:                "midday",
		StalenessThreshold:     6 * time.Hour,
		ReminderConditions:     "total_steps absent",
		CompletionCheckEnabled: true,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
