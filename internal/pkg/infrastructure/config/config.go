package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration lets yaml carry durations in their usual "30m" form.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %s", value.Value, err.Error())
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Cfg holds the service tunables that are not secrets. Connection strings
// and credentials come from the environment instead.
type Cfg struct {
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`
	MQTT struct {
		ClientID string `yaml:"client_id"`
		Topic    string `yaml:"topic"`
	} `yaml:"mqtt"`
	Query struct {
		OfflineThreshold Duration `yaml:"offline_threshold"`
	} `yaml:"query"`
	RebuildCacheOnStart bool `yaml:"rebuild_cache_on_start"`
}

// Load reads an optional yaml settings file. An empty path yields the
// defaults.
func Load(path string) (*Cfg, error) {
	var cfg Cfg

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Cfg) applyDefaults() {
	if c.HTTP.Port == "" {
		c.HTTP.Port = "8080"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "telemetry-hub"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "telemetry/frames"
	}
	if c.Query.OfflineThreshold == 0 {
		c.Query.OfflineThreshold = Duration(time.Hour)
	}
}

func (c *Cfg) validate() error {
	if c.Query.OfflineThreshold.AsDuration() < time.Minute {
		return fmt.Errorf("query.offline_threshold %s is below the minimum of one minute", c.Query.OfflineThreshold.AsDuration())
	}
	return nil
}
