// Package config loads the soil sensor configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/soil-sensor/internal/actuator"
	"github.com/sweeney/soil-sensor/internal/control"
	"github.com/sweeney/soil-sensor/internal/logic"
	"github.com/sweeney/soil-sensor/internal/mqtt"
	"github.com/sweeney/soil-sensor/internal/sensor"
)

// Sensor source kinds.
const (
	SourceSimulated = "simulated"
	SourceSerial    = "serial"
)

// Config represents the application configuration.
type Config struct {
	Calibration CalibrationConfig `yaml:"calibration"`
	Thresholds  ThresholdsConfig  `yaml:"thresholds"`
	Loop        LoopConfig        `yaml:"loop"`
	Sensor      SensorConfig      `yaml:"sensor"`
	GPIO        GPIOConfig        `yaml:"gpio"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
}

// CalibrationConfig contains the raw reference counts.
type CalibrationConfig struct {
	DryReference uint16 `yaml:"dry_reference"` // raw count in completely dry soil
	WetReference uint16 `yaml:"wet_reference"` // raw count in saturated soil
}

// ThresholdsConfig contains the classification bounds, in percent.
type ThresholdsConfig struct {
	Low  uint8 `yaml:"low"`
	High uint8 `yaml:"high"`
}

// LoopConfig contains control loop parameters.
type LoopConfig struct {
	Interval        time.Duration `yaml:"interval"`
	Cycles          int           `yaml:"cycles"` // 0 = run until signalled
	Samples         int           `yaml:"samples"`
	CalibrationMode bool          `yaml:"calibration_mode"`
	StartupBlinks   int           `yaml:"startup_blinks"`
	BlinkOn         time.Duration `yaml:"blink_on"`
	BlinkOff        time.Duration `yaml:"blink_off"`
}

// SensorConfig selects and configures the reading source.
type SensorConfig struct {
	Source string `yaml:"source"`

	// simulated
	Seed          int64    `yaml:"seed"`
	NoiseBand     uint16   `yaml:"noise_band"`
	Regime        string   `yaml:"regime"`
	Schedule      []string `yaml:"schedule"`       // regimes rotated through; empty = fixed regime
	ScheduleEvery int      `yaml:"schedule_every"` // reads per schedule step

	// serial
	SerialPort  string        `yaml:"serial_port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// GPIOConfig contains the output line assignment.
type GPIOConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Chip         string `yaml:"chip"`
	IndicatorPin int    `yaml:"indicator_pin"`
	PumpPin      int    `yaml:"pump_pin"`
}

// MQTTConfig configures the network pump relay. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// Default returns the reference configuration: a 20 cycle demonstration run
// against the simulated probe.
func Default() *Config {
	return &Config{
		Calibration: CalibrationConfig{
			DryReference: 3000,
			WetReference: 1200,
		},
		Thresholds: ThresholdsConfig{
			Low:  25,
			High: 75,
		},
		Loop: LoopConfig{
			Interval:      2 * time.Second,
			Cycles:        20,
			Samples:       5,
			StartupBlinks: 3,
			BlinkOn:       200 * time.Millisecond,
			BlinkOff:      200 * time.Millisecond,
		},
		Sensor: SensorConfig{
			Source:        SourceSimulated,
			Seed:          1,
			NoiseBand:     sensor.DefaultNoiseBand,
			Regime:        string(sensor.RegimeDefault),
			Schedule:      []string{"dry", "optimal", "wet", "optimal"},
			ScheduleEvery: 5,
			SerialPort:    "/dev/ttyUSB0",
			BaudRate:      115200,
			ReadTimeout:   time.Second,
		},
		GPIO: GPIOConfig{
			Enabled:      false,
			Chip:         "gpiochip0",
			IndicatorPin: actuator.DefaultPinIndicator,
			PumpPin:      actuator.DefaultPinPump,
		},
		MQTT: MQTTConfig{
			Topic: mqtt.DefaultTopic,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist it
// returns the defaults; keys missing from the file keep their default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults restores defaults for settings where zero means unset.
// Calibration and thresholds are not touched; Validate rejects zeros there.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Loop.Interval == 0 {
		c.Loop.Interval = def.Loop.Interval
	}
	if c.Loop.Samples == 0 {
		c.Loop.Samples = def.Loop.Samples
	}
	if c.Loop.BlinkOn == 0 {
		c.Loop.BlinkOn = def.Loop.BlinkOn
	}
	if c.Loop.BlinkOff == 0 {
		c.Loop.BlinkOff = def.Loop.BlinkOff
	}

	if c.Sensor.Source == "" {
		c.Sensor.Source = def.Sensor.Source
	}
	if c.Sensor.Regime == "" {
		c.Sensor.Regime = def.Sensor.Regime
	}
	if c.Sensor.SerialPort == "" {
		c.Sensor.SerialPort = def.Sensor.SerialPort
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = def.Sensor.BaudRate
	}
	if c.Sensor.ReadTimeout == 0 {
		c.Sensor.ReadTimeout = def.Sensor.ReadTimeout
	}

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
}

// Validate checks every invariant the loop relies on. All failures wrap
// logic.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if err := c.LogicCalibration().Validate(); err != nil {
		return err
	}
	if err := c.LogicThresholds().Validate(); err != nil {
		return err
	}

	if c.Loop.Interval <= 0 {
		return invalid("loop interval must be positive, got %v", c.Loop.Interval)
	}
	if c.Loop.Cycles < 0 {
		return invalid("loop cycles must not be negative, got %d", c.Loop.Cycles)
	}
	if c.Loop.Samples < 1 {
		return invalid("loop samples must be at least 1, got %d", c.Loop.Samples)
	}
	if c.Loop.StartupBlinks < 0 {
		return invalid("startup blinks must not be negative, got %d", c.Loop.StartupBlinks)
	}

	switch c.Sensor.Source {
	case SourceSimulated:
		if c.Sensor.NoiseBand > sensor.MaxRaw {
			return invalid("noise band %d exceeds %d", c.Sensor.NoiseBand, sensor.MaxRaw)
		}
		if _, err := sensor.ParseRegime(c.Sensor.Regime); err != nil {
			return invalid("sensor: %v", err)
		}
		if _, err := c.ScheduleRegimes(); err != nil {
			return err
		}
		if len(c.Sensor.Schedule) > 0 && c.Sensor.ScheduleEvery < 1 {
			return invalid("schedule_every must be at least 1, got %d", c.Sensor.ScheduleEvery)
		}
	case SourceSerial:
		if c.Sensor.BaudRate <= 0 {
			return invalid("baud rate must be positive, got %d", c.Sensor.BaudRate)
		}
		if c.Sensor.ReadTimeout < 0 {
			return invalid("read timeout must not be negative, got %v", c.Sensor.ReadTimeout)
		}
	default:
		return invalid("unknown sensor source %q", c.Sensor.Source)
	}

	if c.GPIO.Enabled {
		if c.GPIO.IndicatorPin < 0 || c.GPIO.PumpPin < 0 {
			return invalid("gpio pins must not be negative")
		}
		if c.GPIO.IndicatorPin == c.GPIO.PumpPin {
			return invalid("indicator and pump share gpio pin %d", c.GPIO.PumpPin)
		}
	}

	return nil
}

// LogicCalibration returns the calibration references.
func (c *Config) LogicCalibration() logic.Calibration {
	return logic.Calibration{
		DryReference: c.Calibration.DryReference,
		WetReference: c.Calibration.WetReference,
	}
}

// LogicThresholds returns the classification thresholds.
func (c *Config) LogicThresholds() logic.Thresholds {
	return logic.Thresholds{
		Low:  c.Thresholds.Low,
		High: c.Thresholds.High,
	}
}

// Control returns the control loop configuration.
func (c *Config) Control() control.Config {
	return control.Config{
		Calibration:     c.LogicCalibration(),
		Thresholds:      c.LogicThresholds(),
		Interval:        c.Loop.Interval,
		Cycles:          c.Loop.Cycles,
		Samples:         c.Loop.Samples,
		CalibrationMode: c.Loop.CalibrationMode,
		StartupBlinks:   c.Loop.StartupBlinks,
		BlinkOn:         c.Loop.BlinkOn,
		BlinkOff:        c.Loop.BlinkOff,
	}
}

// Simulation returns the simulated probe configuration.
func (c *Config) Simulation() (sensor.SimConfig, error) {
	regime, err := sensor.ParseRegime(c.Sensor.Regime)
	if err != nil {
		return sensor.SimConfig{}, invalid("sensor: %v", err)
	}
	return sensor.SimConfig{
		Seed:      c.Sensor.Seed,
		NoiseBand: c.Sensor.NoiseBand,
		Regime:    regime,
	}, nil
}

// ScheduleRegimes parses the demonstration schedule.
func (c *Config) ScheduleRegimes() ([]sensor.Regime, error) {
	regimes := make([]sensor.Regime, 0, len(c.Sensor.Schedule))
	for _, s := range c.Sensor.Schedule {
		r, err := sensor.ParseRegime(s)
		if err != nil {
			return nil, invalid("schedule: %v", err)
		}
		regimes = append(regimes, r)
	}
	return regimes, nil
}

// Relay returns the MQTT relay configuration.
func (c *Config) Relay() mqtt.RelayConfig {
	return mqtt.RelayConfig{
		Broker:   c.MQTT.Broker,
		ClientID: c.MQTT.ClientID,
		Topic:    c.MQTT.Topic,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", logic.ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
