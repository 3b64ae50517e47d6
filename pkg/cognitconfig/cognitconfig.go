// Package cognitconfig loads the device runtime's connection
// configuration: the Cognit Frontend endpoint and the credentials used
// to authenticate against it.
package cognitconfig

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/SovereignEdgeEU-COGNIT/device-runtime-go/pkg/util"
)

// DefaultConfigPath is used when no override is given.
const DefaultConfigPath = "./cognit.conf"

// Config holds the three mandatory connection settings plus optional
// tuning knobs for the supervisor's tick interval and queue capacity.
type Config struct {
	Endpoint string `yaml:"cognit_frontend_engine_endpoint"`
	Username string `yaml:"cognit_frontend_engine_usr"`
	Password string `yaml:"cognit_frontend_engine_pwd"`

	// TickIntervalMS overrides the supervisor's guard-evaluation
	// period (spec default 50ms) when non-zero.
	TickIntervalMS int `yaml:"tick_interval_ms,omitempty"`

	// QueueCapacity overrides the Call Queue bound (spec default 50)
	// when non-zero.
	QueueCapacity int `yaml:"queue_capacity,omitempty"`

	// LatencyProbePeriodMS overrides the latency probe's sampling
	// period (spec default 2000ms) when non-zero.
	LatencyProbePeriodMS int `yaml:"latency_probe_period_ms,omitempty"`
}

// Load reads and validates configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigPath)
}

// LoadFrom reads and validates configuration from path. A missing
// file, malformed YAML, or missing mandatory key is a *util.ConfigError
// — fatal, construction-time, never retried.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, util.NewConfigError(path, err.Error())
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, util.NewConfigError(path, "invalid yaml: "+err.Error())
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that all mandatory keys are present.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return util.NewConfigError("cognit_frontend_engine_endpoint", "must not be empty")
	}
	if c.Username == "" {
		return util.NewConfigError("cognit_frontend_engine_usr", "must not be empty")
	}
	if c.Password == "" {
		return util.NewConfigError("cognit_frontend_engine_pwd", "must not be empty")
	}
	return nil
}
