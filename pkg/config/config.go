// Package config implements the versioned YAML configuration loader (A1):
// a two-pass load (version probe, then full decode) followed by a
// Validate() pass that turns every structural problem into a typed error
// before the engine starts.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	bridgeerrors "mbbridge/pkg/errors"
	"mbbridge/pkg/logger"
)

// Config is the root of the bridge's configuration, per SPEC_FULL.md §6.
type Config struct {
	Version            string              `yaml:"version"`
	MainLoopIntervalMs int                 `yaml:"main_loop_interval_ms"`
	MQTT               MQTTConfig          `yaml:"mqtt"`
	ModbusRTU          ModbusConfig        `yaml:"modbusrtu"`
	UpdateCycles       []UpdateCycleConfig `yaml:"updatecycles"`
	Slaves             []SlaveConfig       `yaml:"mbslaves"`
	WriteTags          []WriteTagConfig    `yaml:"mqtt_tags"`
	CPUTemp            *CPUTempConfig      `yaml:"cputemp,omitempty"`
	Logging            logger.Config       `yaml:"logging"`
	Diagnostics        DiagnosticsConfig   `yaml:"diagnostics"`
	Health             ListenerConfig      `yaml:"health"`
	Metrics            ListenerConfig      `yaml:"metrics"`
}

// MQTTConfig contains broker connection settings.
type MQTTConfig struct {
	Broker           string `yaml:"broker"`
	Port             int    `yaml:"port"`
	Username         string `yaml:"username"`
	Password         string `yaml:"password"`
	ClientID         string `yaml:"client_id"`
	RetryDelayMs     int    `yaml:"retry_delay_ms"`
	ReconnectSeconds int    `yaml:"reconnect_interval"`
	RetainDefault    bool   `yaml:"retain_default"`
	ClearOnExit      bool   `yaml:"clearonexit"`
	NoreadOnExit     bool   `yaml:"noreadonexit"`
	Debug            bool   `yaml:"debug"`
	StatusTopic      string `yaml:"status_topic"`
}

// ModbusConfig contains serial link settings.
type ModbusConfig struct {
	Device            string `yaml:"device"`
	BaudRate          int    `yaml:"baudrate"`
	ResponseTimeoutS  int    `yaml:"responsetimeout_s"`
	ResponseTimeoutUs int    `yaml:"responsetimeout_us"`
	InterSlaveDelayUs int    `yaml:"interslavedelay"`
	MaxRetries        int    `yaml:"maxretries"`
	DebugLevel        int    `yaml:"debuglevel"`
	SlaveStatusTopic  string `yaml:"slavestatustopic"`
	SlaveStatusRetain bool   `yaml:"slavestatusretain"`
	WriteMaxAttempts  int    `yaml:"writemaxattempts"`
}

// ResponseTimeout combines the seconds/microseconds fields into one duration.
func (m ModbusConfig) ResponseTimeout() time.Duration {
	return time.Duration(m.ResponseTimeoutS)*time.Second + time.Duration(m.ResponseTimeoutUs)*time.Microsecond
}

// InterSlaveDelay returns the configured inter-slave pacing as a duration.
func (m ModbusConfig) InterSlaveDelay() time.Duration {
	return time.Duration(m.InterSlaveDelayUs) * time.Microsecond
}

// UpdateCycleConfig declares one named polling period.
type UpdateCycleConfig struct {
	ID       string `yaml:"id"`
	Interval int64  `yaml:"interval"`
}

// SlaveConfig declares one Modbus RTU slave and its polled tags.
type SlaveConfig struct {
	ID                  uint8       `yaml:"id"`
	Name                string      `yaml:"name"`
	Enabled             bool        `yaml:"enabled"`
	DefaultRetain       bool        `yaml:"default_retain"`
	DefaultNoreadAction int         `yaml:"default_noreadaction"`
	Tags                []TagConfig `yaml:"tags"`
}

// TagConfig declares one polled register within a slave.
type TagConfig struct {
	Address      int      `yaml:"address"`
	UpdateCycle  string   `yaml:"update_cycle"`
	Group        int      `yaml:"group"`
	Topic        string   `yaml:"topic"`
	Format       string   `yaml:"format"`
	Multiplier   *float64 `yaml:"multiplier,omitempty"`
	Offset       *float64 `yaml:"offset,omitempty"`
	Retain       *bool    `yaml:"retain,omitempty"`
	NoreadValue  float64  `yaml:"noreadvalue"`
	NoreadAction *int     `yaml:"noreadaction,omitempty"`
	NoreadIgnore int      `yaml:"noreadignore"`
}

// WriteTagConfig declares one subscribed MQTT topic mapped to a register.
type WriteTagConfig struct {
	Topic          string `yaml:"topic"`
	SlaveID        uint8  `yaml:"slaveid"`
	Address        int    `yaml:"address"`
	DataType       string `yaml:"datatype"`
	IgnoreRetained bool   `yaml:"ignoreretained"`
}

// CPUTempConfig declares the optional local CPU-temperature tag. Both
// intervals are in seconds, matching original_source/mbbridge.cpp's
// time_t-based nextReadTime/nextPublishTime arithmetic.
type CPUTempConfig struct {
	Topic           string `yaml:"topic"`
	ReadIntervalS   int    `yaml:"readinterval"`
	PublishInterval int    `yaml:"publishinterval"`
	Retain          bool   `yaml:"retain"`
}

// DiagnosticsConfig controls the per-slave diagnostic publication (A5).
type DiagnosticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
}

// ListenerConfig is shared by the health and metrics HTTP listeners (A4).
// Port 0 disables the listener.
type ListenerConfig struct {
	Port int `yaml:"port"`
}

// versionProbe is decoded first, alone, to validate schema compatibility
// before the full structure (which may change shape across versions) is
// parsed (SPEC_FULL.md §9, "exception-driven config parsing").
type versionProbe struct {
	Version string `yaml:"version"`
}

// Load reads, probes, parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bridgeerrors.NewConfigError("load", err, "path")
	}
	return parse(data)
}

// LoadFromString parses configuration from an in-memory YAML document, for
// tests.
func LoadFromString(yamlContent string) (*Config, error) {
	return parse([]byte(yamlContent))
}

func parse(data []byte) (*Config, error) {
	var probe versionProbe
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, bridgeerrors.NewConfigError("parse_version", err, "version")
	}
	if err := ValidateVersion(probe.Version); err != nil {
		return nil, bridgeerrors.NewConfigError("parse_version", err, "version")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, bridgeerrors.NewConfigError("parse", err, "")
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MainLoopIntervalMs == 0 {
		cfg.MainLoopIntervalMs = 200
	}
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = "127.0.0.1"
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "mbbridge"
	}
	if cfg.MQTT.ReconnectSeconds == 0 {
		cfg.MQTT.ReconnectSeconds = 10
	}
	if cfg.ModbusRTU.WriteMaxAttempts == 0 {
		cfg.ModbusRTU.WriteMaxAttempts = 3
	}
}

// Validate turns every structural problem into a typed ValidationError,
// per SPEC_FULL.md §6 ("main_loop_interval_ms (50..2000, clamped on load)")
// and the slave/tag address invariants of §4.3.
func (c *Config) Validate() error {
	if c.MainLoopIntervalMs < 50 || c.MainLoopIntervalMs > 2000 {
		clamped := c.MainLoopIntervalMs
		if clamped < 50 {
			clamped = 50
		}
		if clamped > 2000 {
			clamped = 2000
		}
		logger.LogWarn("main_loop_interval_ms %d out of range [50, 2000], clamping to %d", c.MainLoopIntervalMs, clamped)
		c.MainLoopIntervalMs = clamped
	}
	if c.MQTT.Broker == "" {
		return bridgeerrors.NewValidationError("mqtt.broker", "non-empty", c.MQTT.Broker)
	}
	if c.MQTT.Port <= 0 {
		return bridgeerrors.NewValidationError("mqtt.port", "positive", c.MQTT.Port)
	}
	if c.ModbusRTU.Device == "" {
		return bridgeerrors.NewValidationError("modbusrtu.device", "non-empty", c.ModbusRTU.Device)
	}
	if c.ModbusRTU.BaudRate <= 0 {
		return bridgeerrors.NewValidationError("modbusrtu.baudrate", "positive", c.ModbusRTU.BaudRate)
	}

	cycleIDs := make(map[string]bool, len(c.UpdateCycles))
	for _, cycle := range c.UpdateCycles {
		if cycle.ID == "" {
			return bridgeerrors.NewValidationError("updatecycles[].id", "non-empty", cycle.ID)
		}
		if cycle.Interval <= 0 {
			return bridgeerrors.NewValidationError("updatecycles[].interval", "positive", cycle.Interval)
		}
		cycleIDs[cycle.ID] = true
	}

	for _, slave := range c.Slaves {
		if slave.ID < 1 || slave.ID > 254 {
			return bridgeerrors.NewValidationError("mbslaves[].id", "1..254", slave.ID)
		}
		for _, t := range slave.Tags {
			if t.Address < 0 || t.Address > 49999 || (t.Address >= 20000 && t.Address <= 29999) {
				return bridgeerrors.NewValidationError("mbslaves[].tags[].address", "0..19999 or 30000..49999", t.Address)
			}
			if t.UpdateCycle != "" && !cycleIDs[t.UpdateCycle] {
				return bridgeerrors.NewValidationError("mbslaves[].tags[].update_cycle", "a declared updatecycles[].id", t.UpdateCycle)
			}
		}
	}

	for _, wt := range c.WriteTags {
		if wt.Topic == "" {
			return bridgeerrors.NewValidationError("mqtt_tags[].topic", "non-empty", wt.Topic)
		}
		switch wt.DataType {
		case "r", "i", "q":
		default:
			return bridgeerrors.NewValidationError("mqtt_tags[].datatype", "one of r, i, q", wt.DataType)
		}
	}

	return nil
}
