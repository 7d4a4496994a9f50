package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds all application configuration values.
type Config struct {
	// Feed
	FeedBaseURL       string // ws:// or wss:// base, e.g. ws://localhost:8080
	FeedAddressScheme string // "global", "route", or "driver"
	FeedListenAddr    string // cmd/feed only
	SeedURL           string // optional one-shot HTTP seed endpoint

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Auth
	AuthJWTSecret string
	AuthToken     string

	// Route catalog
	RouteCatalogPath string

	// MQTT mirror (cmd/feed, optional)
	MQTTBroker   string
	MQTTClientID string

	// Timing (milliseconds)
	PollInterval   int
	ReconnectDelay int
	FixTimeout     int

	// Default map center
	DefaultCenterLat float64
	DefaultCenterLon float64
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot access it directly.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex protects concurrent access.
//
// External code must use InitGlobal() to set and Get() to read.
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

	cfg := defaults()
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

func defaults() *Config {
	return &Config{
		FeedAddressScheme: "driver",
		FeedListenAddr:    ":8080",
		RouteCatalogPath:  "routes.yml",
		GPSBaudRate:       9600,
		PollInterval:      15000,
		ReconnectDelay:    5000,
		FixTimeout:        5000,
		DefaultCenterLat:  39.747389,
		DefaultCenterLon:  -105.224338,
	}
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Feed
	case "FEED_BASE_URL":
		c.FeedBaseURL = value
	case "FEED_ADDRESS_SCHEME":
		switch value {
		case "global", "route", "driver":
			c.FeedAddressScheme = value
		default:
			return fmt.Errorf("FEED_ADDRESS_SCHEME must be global, route, or driver, got %q", value)
		}
	case "FEED_LISTEN_ADDR":
		c.FeedListenAddr = value
	case "SEED_URL":
		c.SeedURL = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Auth
	case "AUTH_JWT_SECRET":
		c.AuthJWTSecret = value
	case "AUTH_TOKEN":
		c.AuthToken = value

	// Route catalog
	case "ROUTE_CATALOG":
		c.RouteCatalogPath = value

	// MQTT mirror
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value

	// Timing
	case "POLL_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid POLL_INTERVAL %q: %w", value, err)
		}
		if interval <= 0 {
			return fmt.Errorf("POLL_INTERVAL must be positive, got %d", interval)
		}
		c.PollInterval = interval
	case "RECONNECT_DELAY":
		delay, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RECONNECT_DELAY %q: %w", value, err)
		}
		if delay <= 0 {
			return fmt.Errorf("RECONNECT_DELAY must be positive, got %d", delay)
		}
		c.ReconnectDelay = delay
	case "FIX_TIMEOUT":
		timeout, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid FIX_TIMEOUT %q: %w", value, err)
		}
		if timeout <= 0 {
			return fmt.Errorf("FIX_TIMEOUT must be positive, got %d", timeout)
		}
		c.FixTimeout = timeout

	// Default map center
	case "DEFAULT_CENTER_LAT":
		lat, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_CENTER_LAT %q: %w", value, err)
		}
		c.DefaultCenterLat = lat
	case "DEFAULT_CENTER_LON":
		lon, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_CENTER_LON %q: %w", value, err)
		}
		c.DefaultCenterLon = lon

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.FeedBaseURL == "" {
		return fmt.Errorf("FEED_BASE_URL is required")
	}
	if !strings.HasPrefix(c.FeedBaseURL, "ws://") && !strings.HasPrefix(c.FeedBaseURL, "wss://") {
		return fmt.Errorf("FEED_BASE_URL must start with ws:// or wss://, got %q", c.FeedBaseURL)
	}
	if c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive")
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
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
