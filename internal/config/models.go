package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to missing settings
const (
	DefaultPollInterval    = 60 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultListen          = ":8080"
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultBaseTopic       = "esp32aq"
	DefaultClientID        = "esp32aq-bridge"
)

// Config represents the bridge configuration file.
type Config struct {
	Version        int           `yaml:"version"`
	PollInterval   Duration      `yaml:"poll_interval"`
	RequestTimeout Duration      `yaml:"request_timeout"`
	HTTP           HTTPConfig    `yaml:"http"`
	MQTT           *MQTTConfig   `yaml:"mqtt,omitempty"` // nil disables MQTT publishing
	Devices        []DeviceEntry `yaml:"devices"`
}

// HTTPConfig configures the bridge API server
type HTTPConfig struct {
	Listen    string `yaml:"listen"`
	Advertise bool   `yaml:"advertise"` // announce the API over mDNS
}

// MQTTConfig configures Home Assistant MQTT discovery publishing
type MQTTConfig struct {
	Broker          string `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID        string `yaml:"client_id,omitempty"`
	Username        string `yaml:"username,omitempty"`
	Password        string `yaml:"password,omitempty"`
	DiscoveryPrefix string `yaml:"discovery_prefix,omitempty"`
	BaseTopic       string `yaml:"base_topic,omitempty"`
}

// DeviceEntry is one configured sensor
type DeviceEntry struct {
	Host         string   `yaml:"host"`                    // IPv4 address or hostname, optional :port
	Name         string   `yaml:"name,omitempty"`          // display name, chip ID when empty
	PollInterval Duration `yaml:"poll_interval,omitempty"` // overrides the global interval
}

// Duration is a time.Duration written as a Go duration string ("60s") in YAML
type Duration time.Duration

// Std returns d as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler. Bare integers are read as seconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: invalid duration: %w", node.Line, err)
	}

	if parsed, err := time.ParseDuration(s); err == nil {
		*d = Duration(parsed)
		return nil
	}

	var secs int
	if err := node.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	return fmt.Errorf("line %d: invalid duration %q", node.Line, s)
}

// New creates a Config with default values and no devices.
func New() *Config {
	return &Config{
		Version:        1,
		PollInterval:   Duration(DefaultPollInterval),
		RequestTimeout: Duration(DefaultRequestTimeout),
		HTTP: HTTPConfig{
			Listen: DefaultListen,
		},
	}
}

// applyDefaults fills settings left empty in the file
func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = DefaultListen
	}
	if c.MQTT != nil {
		if c.MQTT.ClientID == "" {
			c.MQTT.ClientID = DefaultClientID
		}
		if c.MQTT.DiscoveryPrefix == "" {
			c.MQTT.DiscoveryPrefix = DefaultDiscoveryPrefix
		}
		if c.MQTT.BaseTopic == "" {
			c.MQTT.BaseTopic = DefaultBaseTopic
		}
	}
}

// IntervalFor returns the effective poll interval of a device
func (c *Config) IntervalFor(d DeviceEntry) time.Duration {
	if d.PollInterval > 0 {
		return d.PollInterval.Std()
	}
	return c.PollInterval.Std()
}

// Example returns a configuration with one sample device, written by
// "config init".
func Example() *Config {
	cfg := New()
	cfg.Devices = []DeviceEntry{
		{Host: "192.168.1.40", Name: "Living Room"},
		{Host: "esp32-bedroom.local", PollInterval: Duration(2 * time.Minute)},
	}
	return cfg
}
