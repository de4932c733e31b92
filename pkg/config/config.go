package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Sampling SamplingConfig `yaml:"sampling"`
	Server   ServerConfig   `yaml:"server"`
	Network  NetworkConfig  `yaml:"network"`
	Uplink   UplinkConfig   `yaml:"uplink"`
	Mock     MockConfig     `yaml:"mock"`
}

// SerialConfig contains the serial port of the ADC bridge.
type SerialConfig struct {
	Port     string        `yaml:"port"`
	BaudRate int           `yaml:"baud_rate"`
	Timeout  time.Duration `yaml:"timeout"` // Reply timeout per command
}

// SensorConfig groups the calibration of both analog sensors.
type SensorConfig struct {
	Temperature TemperatureConfig `yaml:"temperature"`
	Humidity    HumidityConfig    `yaml:"humidity"`
}

// TemperatureConfig contains the temperature sensor calibration and acquisition parameters.
type TemperatureConfig struct {
	InvertCorrection bool          `yaml:"invert_correction"` // Sensor reads 100..0 instead of 0..100
	Offset           float64       `yaml:"offset"`            // Added before the factor (°C)
	Factor           float64       `yaml:"factor"`            // Calibration factor
	VRef             float64       `yaml:"vref"`              // ADC full-scale voltage (V)
	FullScale        float64       `yaml:"full_scale"`        // Raw value at VRef
	Samples          int           `yaml:"samples"`
	SampleInterval   time.Duration `yaml:"sample_interval"`
	Settle           time.Duration `yaml:"settle"` // Delay after powering the sensor
	Min              float64       `yaml:"min"`
	Max              float64       `yaml:"max"`
	Default          float64       `yaml:"default"` // Used when out of range and no valid reading exists
}

// HumidityConfig contains the soil humidity sensor calibration.
type HumidityConfig struct {
	Dry            float64       `yaml:"dry"` // Raw value for 0%
	Wet            float64       `yaml:"wet"` // Raw value for 100%
	Samples        int           `yaml:"samples"`
	SampleInterval time.Duration `yaml:"sample_interval"`
	Default        float64       `yaml:"default"`
}

// SamplingConfig contains the sampling cadence.
type SamplingConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ServerConfig contains the responder parameters.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	AcceptTimeout  time.Duration `yaml:"accept_timeout"`
	ConnTimeout    time.Duration `yaml:"conn_timeout"`
	ReadBufferSize int           `yaml:"read_buffer_size"`
	AccessLog      bool          `yaml:"access_log"`
}

// NetworkConfig contains network join and supervisor parameters.
type NetworkConfig struct {
	Interface    string        `yaml:"interface"` // Empty means any non-loopback interface
	Address      string        `yaml:"address"`   // Fixed bind address, skips interface lookup
	JoinTimeout  time.Duration `yaml:"join_timeout"`
	JoinRetry    time.Duration `yaml:"join_retry"`
	RestartDelay time.Duration `yaml:"restart_delay"`
}

// UplinkConfig contains the optional MQTT uplink. Empty broker disables it.
type UplinkConfig struct {
	Broker         string        `yaml:"broker"`
	Topic          string        `yaml:"topic"`
	ClientID       string        `yaml:"client_id"`
	QoS            byte          `yaml:"qos"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// MockConfig contains mock ADC bridge configuration.
type MockConfig struct {
	TemperatureRaw float64       `yaml:"temperature_raw"` // Center raw value of the temperature channel
	HumidityRaw    float64       `yaml:"humidity_raw"`    // Center raw value of the humidity channel
	Swing          float64       `yaml:"swing"`           // Amplitude of the slow drift (raw units)
	NoiseLevel     float64       `yaml:"noise_level"`     // Amplitude of the fast noise (raw units)
	Period         time.Duration `yaml:"period"`          // Period of the slow drift
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
			Timeout:  500 * time.Millisecond,
		},
		Sensor: SensorConfig{
			Temperature: TemperatureConfig{
				InvertCorrection: true,
				Offset:           1.0,
				Factor:           0.48,
				VRef:             3.3,
				FullScale:        65535,
				Samples:          5,
				SampleInterval:   20 * time.Millisecond,
				Settle:           200 * time.Millisecond,
				Min:              0,
				Max:              50,
				Default:          20.0,
			},
			Humidity: HumidityConfig{
				Dry:            60000,
				Wet:            25000,
				Samples:        3,
				SampleInterval: 10 * time.Millisecond,
				Default:        0,
			},
		},
		Sampling: SamplingConfig{
			Interval: 5 * time.Second,
		},
		Server: ServerConfig{
			Port:           80,
			AcceptTimeout:  100 * time.Millisecond,
			ConnTimeout:    2 * time.Second,
			ReadBufferSize: 1024,
			AccessLog:      true,
		},
		Network: NetworkConfig{
			JoinTimeout:  20 * time.Second,
			JoinRetry:    10 * time.Second,
			RestartDelay: 5 * time.Second,
		},
		Uplink: UplinkConfig{
			Topic:          "envmon/samples",
			ClientID:       "envmon",
			PublishTimeout: 500 * time.Millisecond,
		},
		Mock: MockConfig{
			TemperatureRaw: 10956, // ~22°C with the default calibration
			HumidityRaw:    42500, // 50%
			Swing:          800,
			NoiseLevel:     60,
			Period:         10 * time.Minute,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
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

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}

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

// Validate reports calibration values that would break the conversions.
func (c *Config) Validate() error {
	var errs []error

	t := c.Sensor.Temperature
	if t.FullScale <= 0 {
		errs = append(errs, errors.New("sensor.temperature.full_scale must be positive"))
	}
	if t.Samples <= 0 {
		errs = append(errs, errors.New("sensor.temperature.samples must be positive"))
	}
	if t.Min >= t.Max {
		errs = append(errs, fmt.Errorf("sensor.temperature range [%g, %g] is empty", t.Min, t.Max))
	}

	h := c.Sensor.Humidity
	if h.Dry == h.Wet {
		errs = append(errs, fmt.Errorf("sensor.humidity dry and wet references are both %g", h.Dry))
	}
	if h.Samples <= 0 {
		errs = append(errs, errors.New("sensor.humidity.samples must be positive"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	return errors.Join(errs...)
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.Timeout == 0 {
		c.Serial.Timeout = def.Serial.Timeout
	}

	t := &c.Sensor.Temperature
	if t.Factor == 0 {
		t.Factor = def.Sensor.Temperature.Factor
	}
	if t.VRef == 0 {
		t.VRef = def.Sensor.Temperature.VRef
	}
	if t.FullScale == 0 {
		t.FullScale = def.Sensor.Temperature.FullScale
	}
	if t.Samples == 0 {
		t.Samples = def.Sensor.Temperature.Samples
	}

	h := &c.Sensor.Humidity
	if h.Dry == 0 {
		h.Dry = def.Sensor.Humidity.Dry
	}
	if h.Wet == 0 {
		h.Wet = def.Sensor.Humidity.Wet
	}
	if h.Samples == 0 {
		h.Samples = def.Sensor.Humidity.Samples
	}

	if c.Sampling.Interval == 0 {
		c.Sampling.Interval = def.Sampling.Interval
	}

	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.AcceptTimeout == 0 {
		c.Server.AcceptTimeout = def.Server.AcceptTimeout
	}
	if c.Server.ConnTimeout == 0 {
		c.Server.ConnTimeout = def.Server.ConnTimeout
	}
	if c.Server.ReadBufferSize == 0 {
		c.Server.ReadBufferSize = def.Server.ReadBufferSize
	}

	if c.Network.JoinTimeout == 0 {
		c.Network.JoinTimeout = def.Network.JoinTimeout
	}
	if c.Network.JoinRetry == 0 {
		c.Network.JoinRetry = def.Network.JoinRetry
	}
	if c.Network.RestartDelay == 0 {
		c.Network.RestartDelay = def.Network.RestartDelay
	}

	if c.Uplink.Topic == "" {
		c.Uplink.Topic = def.Uplink.Topic
	}
	if c.Uplink.ClientID == "" {
		c.Uplink.ClientID = def.Uplink.ClientID
	}
	if c.Uplink.PublishTimeout == 0 {
		c.Uplink.PublishTimeout = def.Uplink.PublishTimeout
	}

	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
}
