package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDTracker  string
	MQTTClientIDWeb      string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string

	// Topics
	TopicRigidBody    string // prefix; rigid body <id> publishes on <prefix>/<id>
	TopicStreamStatus string
	TopicMappedPoint  string

	// Rigid bodies
	FemurID  int
	StylusID int

	// Connection monitor
	ConnectionTimeout       int // milliseconds
	ConnectionCheckInterval int // milliseconds

	// Feed units to millimetres (1000 for a metre-based feed)
	PositionScale float64

	// Files
	MappedPointsCSV string
	ExportDir       string

	// Web Server
	WebServerPort   int
	WebPushInterval int // milliseconds

	// Mock producer
	ProducerInterval int // milliseconds
}

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	return &Config{
		MQTTBroker:              "tcp://localhost:1883",
		MQTTClientIDTracker:     "rigid-body-tracker",
		MQTTClientIDWeb:         "rigid-body-web",
		MQTTClientIDProducer:    "rigid-body-producer",
		MQTTClientIDConsole:     "rigid-body-console",
		TopicRigidBody:          "mocap/rigid_body",
		TopicStreamStatus:       "mocap/stream_status",
		TopicMappedPoint:        "mocap/mapped_point",
		FemurID:                 1,
		StylusID:                2,
		ConnectionTimeout:       15000,
		ConnectionCheckInterval: 2000,
		PositionScale:           1000,
		MappedPointsCSV:         "mapped_points.csv",
		ExportDir:               ".",
		WebServerPort:           8080,
		WebPushInterval:         100,
		ProducerInterval:        10,
	}
}

// Package-level state for the process-wide configuration. Other packages set
// it through InitGlobal and read it through Get.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
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
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value

	// Topics
	case "TOPIC_RIGID_BODY":
		c.TopicRigidBody = value
	case "TOPIC_STREAM_STATUS":
		c.TopicStreamStatus = value
	case "TOPIC_MAPPED_POINT":
		c.TopicMappedPoint = value

	// Rigid bodies
	case "FEMUR_ID":
		c.FemurID, err = atoi(key, value)
	case "STYLUS_ID":
		c.StylusID, err = atoi(key, value)

	// Connection monitor
	case "CONNECTION_TIMEOUT":
		c.ConnectionTimeout, err = atoi(key, value)
	case "CONNECTION_CHECK_INTERVAL":
		c.ConnectionCheckInterval, err = atoi(key, value)

	case "POSITION_SCALE":
		c.PositionScale, err = strconv.ParseFloat(value, 64)
		if err != nil {
			err = fmt.Errorf("invalid %s %q: %w", key, value, err)
		}

	// Files
	case "MAPPED_POINTS_CSV":
		c.MappedPointsCSV = value
	case "EXPORT_DIR":
		c.ExportDir = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = atoi(key, value)
	case "WEB_PUSH_INTERVAL":
		c.WebPushInterval, err = atoi(key, value)

	case "PRODUCER_INTERVAL":
		c.ProducerInterval, err = atoi(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

func atoi(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicRigidBody == "" {
		return fmt.Errorf("TOPIC_RIGID_BODY is required")
	}
	if c.FemurID == c.StylusID {
		return fmt.Errorf("FEMUR_ID and STYLUS_ID must differ, both are %d", c.FemurID)
	}
	if c.ConnectionTimeout <= 0 {
		return fmt.Errorf("CONNECTION_TIMEOUT must be positive, got %d", c.ConnectionTimeout)
	}
	if c.ConnectionCheckInterval <= 0 {
		return fmt.Errorf("CONNECTION_CHECK_INTERVAL must be positive, got %d", c.ConnectionCheckInterval)
	}
	if c.PositionScale <= 0 {
		return fmt.Errorf("POSITION_SCALE must be positive, got %g", c.PositionScale)
	}
	if c.WebPushInterval <= 0 {
		return fmt.Errorf("WEB_PUSH_INTERVAL must be positive, got %d", c.WebPushInterval)
	}
	if c.ProducerInterval <= 0 {
		return fmt.Errorf("PRODUCER_INTERVAL must be positive, got %d", c.ProducerInterval)
	}
	return nil
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ConnectionTimeout) * time.Millisecond
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.ConnectionCheckInterval) * time.Millisecond
}

func (c *Config) PushInterval() time.Duration {
	return time.Duration(c.WebPushInterval) * time.Millisecond
}

func (c *Config) ProducerPeriod() time.Duration {
	return time.Duration(c.ProducerInterval) * time.Millisecond
}

// InitGlobal initializes the global configuration from file.
// Only the first call loads; later calls return nil.
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
