package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/relabs-tech/adxl345_driver/internal/adxl345"
)

// Backends.
const (
	BackendI2C = "i2c"
	BackendSim = "sim"
)

// Display content selectors.
const (
	DisplaySample = "sample"
	DisplayPose   = "pose"
)

// Config holds all application configuration values.
type Config struct {
	// Hardware
	Backend        string // "i2c" or "sim"
	I2CBus         string
	ADXL345Addrs   []uint16
	ADXL345IRQPins []string
	IRQEdge        string // "rising", "falling" or "both"

	// Sensor profile
	DataRateHz    int
	RangeG        int
	FIFOWatermark int // samples, 1-31

	// Read path
	ReadMode         string // "triaxial" or "axis"
	DefaultAxis      int    // 0=X, 1=Y, 2=Z
	ReadBatchSamples int    // samples per blocking read in the daemon pump

	// MQTT
	MQTTBroker          string
	MQTTClientIDDriver  string
	MQTTClientIDConsole string
	MQTTClientIDDisplay string
	MQTTClientIDWeb     string

	// Topics. The device name is appended: <topic>/<device>.
	TopicSamples string
	TopicPose    string

	// HTTP (metrics, status, websocket)
	HTTPAddr string

	// Orientation web page (MQTT subscriber)
	WebAddr string
	WebRoot string

	// Simulator
	SimSeed int64

	// Display (SSD1306 at 0x3C on I2C_BUS)
	DisplayUpdateInterval int    // milliseconds
	DisplayDevice         string // device whose data is shown, e.g. "adxl345-0"
	DisplayContent        string // "sample" or "pose"
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: only reachable through Get, so nothing modifies it without the lock.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// defaults returns the values used for keys missing from the file.
func defaults() *Config {
	return &Config{
		Backend:               BackendI2C,
		I2CBus:                "",
		IRQEdge:               "rising",
		DataRateHz:            100,
		RangeG:                2,
		FIFOWatermark:         adxl345.DefaultWatermark,
		ReadMode:              "triaxial",
		ReadBatchSamples:      8,
		MQTTClientIDDriver:    "adxl345-driver",
		MQTTClientIDConsole:   "adxl345-console",
		MQTTClientIDDisplay:   "adxl345-display",
		MQTTClientIDWeb:       "adxl345-web",
		TopicSamples:          "adxl345/samples",
		TopicPose:             "adxl345/pose",
		HTTPAddr:              ":8080",
		WebAddr:               ":8081",
		WebRoot:               "web",
		SimSeed:               1,
		DisplayUpdateInterval: 200,
		DisplayDevice:         "adxl345-0",
		DisplayContent:        DisplayPose,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines from r. Blank lines and lines starting with #
// are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := defaults()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Hardware
	case "BACKEND":
		c.Backend = strings.ToLower(value)
	case "I2C_BUS":
		c.I2CBus = value
	case "ADXL345_ADDRS":
		addrs, err := parseAddrList(value)
		if err != nil {
			return fmt.Errorf("invalid ADXL345_ADDRS %q: %w", value, err)
		}
		c.ADXL345Addrs = addrs
	case "ADXL345_IRQ_PINS":
		c.ADXL345IRQPins = splitList(value)
	case "IRQ_EDGE":
		c.IRQEdge = strings.ToLower(value)

	// Sensor profile
	case "DATA_RATE_HZ":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DATA_RATE_HZ %q: %w", value, err)
		}
		c.DataRateHz = rate
	case "RANGE_G":
		g, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RANGE_G %q: %w", value, err)
		}
		c.RangeG = g
	case "FIFO_WATERMARK":
		wm, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FIFO_WATERMARK %q: %w", value, err)
		}
		if wm < 1 || wm > 31 {
			return fmt.Errorf("FIFO_WATERMARK must be 1-31, got %d", wm)
		}
		c.FIFOWatermark = wm

	// Read path
	case "READ_MODE":
		c.ReadMode = strings.ToLower(value)
	case "DEFAULT_AXIS":
		axis, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_AXIS %q: %w", value, err)
		}
		if axis < 0 || axis > 2 {
			return fmt.Errorf("DEFAULT_AXIS must be 0-2 (0=X, 1=Y, 2=Z), got %d", axis)
		}
		c.DefaultAxis = axis
	case "READ_BATCH_SAMPLES":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid READ_BATCH_SAMPLES %q: %w", value, err)
		}
		if n < 1 || n > adxl345.RingCapacity {
			return fmt.Errorf("READ_BATCH_SAMPLES must be 1-%d, got %d", adxl345.RingCapacity, n)
		}
		c.ReadBatchSamples = n

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_DRIVER":
		c.MQTTClientIDDriver = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value

	// Topics
	case "TOPIC_SAMPLES":
		c.TopicSamples = strings.TrimSuffix(value, "/")
	case "TOPIC_POSE":
		c.TopicPose = strings.TrimSuffix(value, "/")

	// HTTP
	case "HTTP_ADDR":
		c.HTTPAddr = value
	case "WEB_ADDR":
		c.WebAddr = value
	case "WEB_ROOT":
		c.WebRoot = value

	// Simulator
	case "SIM_SEED":
		seed, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid SIM_SEED %q: %w", value, err)
		}
		c.SimSeed = seed

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval
	case "DISPLAY_DEVICE":
		c.DisplayDevice = value
	case "DISPLAY_CONTENT":
		c.DisplayContent = strings.ToLower(value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set and consistent.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	switch c.Backend {
	case BackendI2C:
		if len(c.ADXL345Addrs) == 0 {
			return fmt.Errorf("ADXL345_ADDRS is required with BACKEND=i2c")
		}
		if len(c.ADXL345IRQPins) != len(c.ADXL345Addrs) {
			return fmt.Errorf("ADXL345_IRQ_PINS lists %d pins for %d sensors", len(c.ADXL345IRQPins), len(c.ADXL345Addrs))
		}
	case BackendSim:
	default:
		return fmt.Errorf("BACKEND must be %q or %q, got %q", BackendI2C, BackendSim, c.Backend)
	}
	if _, err := c.Profile(); err != nil {
		return err
	}
	if _, err := adxl345.ParseReadMode(c.ReadMode); err != nil {
		return fmt.Errorf("READ_MODE: %w", err)
	}
	switch c.IRQEdge {
	case "rising", "falling", "both":
	default:
		return fmt.Errorf("IRQ_EDGE must be rising, falling or both, got %q", c.IRQEdge)
	}
	switch c.DisplayContent {
	case DisplaySample, DisplayPose:
	default:
		return fmt.Errorf("DISPLAY_CONTENT must be %q or %q, got %q", DisplaySample, DisplayPose, c.DisplayContent)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive, got %d", c.DisplayUpdateInterval)
	}
	return nil
}

// Profile returns the configuration profile selected by DATA_RATE_HZ,
// RANGE_G and FIFO_WATERMARK.
func (c *Config) Profile() (adxl345.Profile, error) {
	p, err := adxl345.NewProfile(c.DataRateHz, c.RangeG, c.FIFOWatermark)
	if err != nil {
		return nil, fmt.Errorf("sensor profile: %w", err)
	}
	return p, nil
}

// DeviceOptions returns the read path settings for new devices.
func (c *Config) DeviceOptions() adxl345.Options {
	mode, _ := adxl345.ParseReadMode(c.ReadMode)
	return adxl345.Options{Mode: mode, Axis: adxl345.Axis(c.DefaultAxis)}
}

// SensorCount is the number of sensors to attach: one per address, or one
// simulated sensor when the sim backend has no addresses.
func (c *Config) SensorCount() int {
	if c.Backend == BackendSim && len(c.ADXL345Addrs) == 0 {
		return 1
	}
	return len(c.ADXL345Addrs)
}

func splitList(value string) []string {
	var out []string
	for _, f := range strings.Split(value, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseAddrList(value string) ([]uint16, error) {
	var addrs []uint16
	for _, f := range splitList(value) {
		a, err := strconv.ParseUint(f, 0, 16)
		if err != nil {
			return nil, err
		}
		if a > 0x7F {
			return nil, fmt.Errorf("address %#x is not a 7-bit I2C address", a)
		}
		addrs = append(addrs, uint16(a))
	}
	return addrs, nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
// This is the only function that can set globalConfig.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
