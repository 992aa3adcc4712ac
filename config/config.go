package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// WorkerSecondary marks a reloaded/secondary process that must not start the
// background loops a second time.
const WorkerSecondary = "secondary"

type Config struct {
	// Database. DBDriver is postgres or sqlite; DBPath is used by sqlite.
	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	// MQTT
	MQTTBroker         string
	MQTTClientID       string
	MQTTUsername       string
	MQTTPassword       string
	MQTTPublishTimeout time.Duration
	DefaultRoomFrom    uint
	DefaultRoomTo      uint

	// Kafka event export, disabled when no brokers are set
	KafkaBrokers []string
	KafkaTopic   string

	// Control core
	SubscriptionScanInterval time.Duration
	TelemetryStaleAfter      time.Duration
	DecisionCheckInterval    time.Duration
	TemperatureThreshold     float64
	DecisionAutostart        bool
	Location                 *time.Location
	AutoProvisionOwner       string
	Worker                   string

	// Application
	HTTPAddr string
	LogLevel string
}

// overlay is the subset of settings that may be overridden from the YAML
// file named by ECOHEAT_CONFIG.
type overlay struct {
	Decision struct {
		CheckInterval        string   `yaml:"check_interval"`
		TemperatureThreshold *float64 `yaml:"temperature_threshold"`
		Autostart            *bool    `yaml:"autostart"`
	} `yaml:"decision"`
	Subscription struct {
		ScanInterval    string `yaml:"scan_interval"`
		DefaultRoomFrom *uint  `yaml:"default_room_from"`
		DefaultRoomTo   *uint  `yaml:"default_room_to"`
	} `yaml:"subscription"`
	Telemetry struct {
		StaleAfter string `yaml:"stale_after"`
	} `yaml:"telemetry"`
	AutoProvisionOwner *string `yaml:"auto_provision_owner"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if path := os.Getenv("ECOHEAT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config overlay %s: %w", path, err)
		}
		if err := cfg.applyOverlay(data); err != nil {
			return nil, fmt.Errorf("failed to apply config overlay %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	var errs []error
	durationVar := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}
	uintVar := func(key, def string) uint {
		n, err := strconv.ParseUint(getEnv(key, def), 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return uint(n)
	}

	threshold, err := strconv.ParseFloat(getEnv("DECISION_TEMPERATURE_THRESHOLD", "2.0"), 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("DECISION_TEMPERATURE_THRESHOLD: %w", err))
	}
	autostart, err := strconv.ParseBool(getEnv("DECISION_ENGINE_AUTOSTART", "true"))
	if err != nil {
		errs = append(errs, fmt.Errorf("DECISION_ENGINE_AUTOSTART: %w", err))
	}
	loc, err := loadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBPath:     getEnv("DB_PATH", "ecoheat.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "ecoheat"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,
		RedisTTL:      durationVar("REDIS_TTL", "24h"),

		MQTTBroker:         getEnv("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID:       getEnv("MQTT_CLIENT_ID", "ecoheat-backend"),
		MQTTUsername:       getEnv("MQTT_USERNAME", ""),
		MQTTPassword:       getEnv("MQTT_PASSWORD", ""),
		MQTTPublishTimeout: durationVar("MQTT_PUBLISH_TIMEOUT", "5s"),
		DefaultRoomFrom:    uintVar("MQTT_DEFAULT_ROOM_FROM", "1"),
		DefaultRoomTo:      uintVar("MQTT_DEFAULT_ROOM_TO", "20"),

		KafkaBrokers: splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "ecoheat.events"),

		SubscriptionScanInterval: durationVar("SUBSCRIPTION_SCAN_INTERVAL", "60s"),
		TelemetryStaleAfter:      durationVar("TELEMETRY_STALE_AFTER", "60s"),
		DecisionCheckInterval:    durationVar("DECISION_CHECK_INTERVAL", "60s"),
		TemperatureThreshold:     threshold,
		DecisionAutostart:        autostart,
		Location:                 loc,
		AutoProvisionOwner:       getEnv("AUTO_PROVISION_OWNER", ""),
		Worker:                   getEnv("ECOHEAT_WORKER", ""),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c *Config) applyOverlay(data []byte) error {
	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return err
	}

	parse := func(field, value string, dst *time.Duration) error {
		if value == "" {
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		*dst = d
		return nil
	}
	if err := parse("decision.check_interval", o.Decision.CheckInterval, &c.DecisionCheckInterval); err != nil {
		return err
	}
	if err := parse("subscription.scan_interval", o.Subscription.ScanInterval, &c.SubscriptionScanInterval); err != nil {
		return err
	}
	if err := parse("telemetry.stale_after", o.Telemetry.StaleAfter, &c.TelemetryStaleAfter); err != nil {
		return err
	}
	if o.Decision.TemperatureThreshold != nil {
		c.TemperatureThreshold = *o.Decision.TemperatureThreshold
	}
	if o.Decision.Autostart != nil {
		c.DecisionAutostart = *o.Decision.Autostart
	}
	if o.Subscription.DefaultRoomFrom != nil {
		c.DefaultRoomFrom = *o.Subscription.DefaultRoomFrom
	}
	if o.Subscription.DefaultRoomTo != nil {
		c.DefaultRoomTo = *o.Subscription.DefaultRoomTo
	}
	if o.AutoProvisionOwner != nil {
		c.AutoProvisionOwner = *o.AutoProvisionOwner
	}
	return nil
}

// Validate rejects settings the background loops cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.DecisionCheckInterval <= 0:
		return errors.New("decision check interval must be positive")
	case c.SubscriptionScanInterval <= 0:
		return errors.New("subscription scan interval must be positive")
	case c.TelemetryStaleAfter <= 0:
		return errors.New("telemetry stale window must be positive")
	case c.MQTTPublishTimeout <= 0:
		return errors.New("mqtt publish timeout must be positive")
	case c.TemperatureThreshold < 0:
		return errors.New("temperature threshold must not be negative")
	case c.DBDriver != "postgres" && c.DBDriver != "sqlite":
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	case c.DefaultRoomFrom == 0 || c.DefaultRoomFrom > c.DefaultRoomTo:
		return fmt.Errorf("invalid default room range %d..%d", c.DefaultRoomFrom, c.DefaultRoomTo)
	}
	return nil
}

// IsSecondaryWorker reports whether background loops must stay off in this
// process.
func (c *Config) IsSecondaryWorker() bool {
	return strings.EqualFold(c.Worker, WorkerSecondary)
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
