// Package config loads durableflow's runtime configuration via viper,
// following oriys-function's cmd/nimbus/cmd/config.go: a YAML file plus
// environment-variable overrides bound into one plain struct at startup,
// never read from globally afterward.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jdziat/durableflow/internal/security"
)

// Config is the fully-resolved runtime configuration for the serve command.
type Config struct {
	DatabaseDSN string `mapstructure:"database_dsn" yaml:"database_dsn"`

	// DatabasePoolProfile selects one of storage's connection-pool presets:
	// "default", "high_concurrency", "low_latency", or
	// "resource_constrained". Empty means "default".
	DatabasePoolProfile string `mapstructure:"database_pool_profile" yaml:"database_pool_profile"`

	HTTPAddr    string `mapstructure:"http_addr" yaml:"http_addr"`
	WebhookAddr string `mapstructure:"webhook_addr" yaml:"webhook_addr"`

	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor"`

	Worker WorkerConfig `mapstructure:"worker" yaml:"worker"`
}

type ExecutorConfig struct {
	Kind string `mapstructure:"kind" yaml:"kind"` // "local" | "nats" | "webhook"

	NATSURL           string `mapstructure:"nats_url" yaml:"nats_url"`
	NATSSubjectPrefix string `mapstructure:"nats_subject_prefix" yaml:"nats_subject_prefix"`

	WebhookURL        string `mapstructure:"webhook_url" yaml:"webhook_url"`
	WebhookSigningKey string `mapstructure:"webhook_signing_key" yaml:"webhook_signing_key"`
}

type WorkerConfig struct {
	PollInterval      time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	SubmitConcurrency int           `mapstructure:"submit_concurrency" yaml:"submit_concurrency"`
	ResumeConcurrency int           `mapstructure:"resume_concurrency" yaml:"resume_concurrency"`
	OverdueAfter      time.Duration `mapstructure:"overdue_after" yaml:"overdue_after"`
}

// Default returns the configuration used when neither a file nor
// environment variables override a setting.
func Default() Config {
	return Config{
		DatabaseDSN: "durableflow.db",
		HTTPAddr:    ":8080",
		WebhookAddr: ":8081",
		Executor:    ExecutorConfig{Kind: "local"},
		Worker: WorkerConfig{
			PollInterval:      200 * time.Millisecond,
			SubmitConcurrency: 8,
			ResumeConcurrency: 8,
		},
	}
}

// Load reads configFile (if non-empty) and DURABLEFLOW_*-prefixed
// environment variables on top of Default().
func Load(configFile string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix("DURABLEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows about, so each key is
	// bound explicitly for its DURABLEFLOW_* variable to take effect.
	for _, key := range []string{
		"database_dsn", "database_pool_profile", "http_addr", "webhook_addr",
		"executor.kind", "executor.nats_url", "executor.nats_subject_prefix",
		"executor.webhook_url", "executor.webhook_signing_key",
		"worker.poll_interval", "worker.submit_concurrency", "worker.resume_concurrency", "worker.overdue_after",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Worker.SubmitConcurrency = security.ClampConcurrency(cfg.Worker.SubmitConcurrency)
	cfg.Worker.ResumeConcurrency = security.ClampConcurrency(cfg.Worker.ResumeConcurrency)
	return cfg, nil
}
