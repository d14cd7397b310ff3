// Package config loads the bridge configuration from a YAML file, a .env
// file and PLANCK_* environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/signalsfoundry/planck-bridge/internal/logging"
	"github.com/signalsfoundry/planck-bridge/internal/observability"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Link    LinkConfig                  `yaml:"link"`
	Vehicle VehicleConfig               `yaml:"vehicle"`
	Tether  TetherConfig                `yaml:"tether"`
	HTTP    HTTPConfig                  `yaml:"http"`
	GRPC    GRPCConfig                  `yaml:"grpc"`
	Kafka   KafkaConfig                 `yaml:"kafka"`
	Logging logging.Config              `yaml:"logging"`
	Tracing observability.TracingConfig `yaml:"tracing"`
}

type LinkConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// PeerAddr pins the Planck address. Empty means reply to whoever sent the
	// last status message.
	PeerAddr string `yaml:"peer_addr"`
}

type VehicleConfig struct {
	SystemID          uint8 `yaml:"system_id"`
	PlanckComponentID uint8 `yaml:"planck_component_id"`
}

type TetherConfig struct {
	ReelSpeedCms float64       `yaml:"reel_speed_cms"`
	PollInterval time.Duration `yaml:"poll_interval"`
	CommsTimeout time.Duration `yaml:"comms_timeout"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
	// JWTSecret enables bearer-token checks on mutating routes when set.
	JWTSecret string `yaml:"jwt_secret"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type KafkaConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	QueueSize int      `yaml:"queue_size"`
}

// Load reads path (optional), then .env, then environment overrides, and
// returns a validated configuration.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is supplied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Link.ListenAddr == "" {
		c.Link.ListenAddr = ":14560"
	}
	if c.Vehicle.SystemID == 0 {
		c.Vehicle.SystemID = 1
	}
	if c.Vehicle.PlanckComponentID == 0 {
		c.Vehicle.PlanckComponentID = 25
	}
	if c.Tether.ReelSpeedCms == 0 {
		c.Tether.ReelSpeedCms = 38 // ~1.25 ft/s
	}
	if c.Tether.PollInterval == 0 {
		c.Tether.PollInterval = 100 * time.Millisecond
	}
	if c.Tether.CommsTimeout == 0 {
		c.Tether.CommsTimeout = 5 * time.Second
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "planck.notices"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "planck-bridge"
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

func (c *Config) validate() error {
	var errs []error
	if _, _, err := net.SplitHostPort(c.Link.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("link.listen_addr: %w", err))
	}
	if c.Link.PeerAddr != "" {
		if _, _, err := net.SplitHostPort(c.Link.PeerAddr); err != nil {
			errs = append(errs, fmt.Errorf("link.peer_addr: %w", err))
		}
	}
	if c.Tether.ReelSpeedCms < 0 {
		errs = append(errs, errors.New("tether.reel_speed_cms must not be negative"))
	}
	if c.Tether.PollInterval < 0 {
		errs = append(errs, errors.New("tether.poll_interval must not be negative"))
	}
	if c.Tether.CommsTimeout < 0 {
		errs = append(errs, errors.New("tether.comms_timeout must not be negative"))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("tracing.sample_ratio must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnv() error {
	setString(&c.Link.ListenAddr, "PLANCK_LINK_LISTEN")
	setString(&c.Link.PeerAddr, "PLANCK_LINK_PEER")
	setString(&c.HTTP.Addr, "PLANCK_HTTP_ADDR")
	setString(&c.HTTP.JWTSecret, "PLANCK_JWT_SECRET")
	setString(&c.GRPC.Addr, "PLANCK_GRPC_ADDR")
	setString(&c.Kafka.Topic, "PLANCK_KAFKA_TOPIC")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Logging.File, "LOG_FILE")
	setString(&c.Tracing.Exporter, "PLANCK_TRACING_EXPORTER")
	setString(&c.Tracing.ServiceName, "PLANCK_TRACING_SERVICE_NAME")
	setString(&c.Tracing.Endpoint, "PLANCK_OTLP_ENDPOINT")
	if v, ok := lookup("PLANCK_KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}

	return errors.Join(
		setUint8(&c.Vehicle.SystemID, "PLANCK_SYSTEM_ID"),
		setUint8(&c.Vehicle.PlanckComponentID, "PLANCK_COMPONENT_ID"),
		setFloat(&c.Tether.ReelSpeedCms, "PLANCK_REEL_SPEED_CMS"),
		setDuration(&c.Tether.PollInterval, "PLANCK_TETHER_POLL"),
		setDuration(&c.Tether.CommsTimeout, "PLANCK_COMMS_TIMEOUT"),
		setBool(&c.Kafka.Enabled, "PLANCK_KAFKA_ENABLED"),
		setBool(&c.Tracing.Enabled, "PLANCK_TRACING_ENABLED"),
		setFloat(&c.Tracing.SampleRatio, "PLANCK_TRACING_SAMPLE_RATIO"),
	)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setUint8(dst *uint8, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = uint8(n)
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
