package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvPrefix = "DUELSYNC_"

	DefaultBrokerHost     = "localhost"
	DefaultBrokerPort     = 1883
	DefaultConnectTimeout = 10 * time.Second

	DefaultGameStateTopic          = "visualiser/game_state"
	DefaultVisibilityRequestTopic  = "visualiser/req_visibility"
	DefaultDeviceStatusTopic       = "visualiser/device_status"
	DefaultVisibilityFeedbackTopic = "visualiser/visibility_feedback"
	DefaultActionTopic             = "visualiser/action"

	DefaultTickInterval  = 16 * time.Millisecond
	DefaultLogoutDelay   = 6 * time.Second
	DefaultQueueCapacity = 1024

	DefaultMinBackoff = 1 * time.Second
	DefaultMaxBackoff = 30 * time.Second

	DefaultAPIPort = 8090
)

// Config is the full runtime configuration of a duelsync session.
type Config struct {
	Broker     BrokerConfig     `yaml:"broker"`
	Topics     TopicsConfig     `yaml:"topics"`
	Session    SessionConfig    `yaml:"session"`
	Reconnect  ReconnectConfig  `yaml:"reconnect"`
	API        APIConfig        `yaml:"api"`
	Recorder   RecorderConfig   `yaml:"recorder"`
	Repository RepositoryConfig `yaml:"repository"`
}

type BrokerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	TLS            bool          `yaml:"tls"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ClientID       string        `yaml:"client_id"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// URL returns the paho broker URL for the configured host and port.
func (b BrokerConfig) URL() string {
	scheme := "tcp"
	if b.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port)
}

type TopicsConfig struct {
	GameState          string `yaml:"game_state"`
	VisibilityRequest  string `yaml:"visibility_request"`
	DeviceStatus       string `yaml:"device_status"`
	VisibilityFeedback string `yaml:"visibility_feedback"`
	Action             string `yaml:"action"`
}

type SessionConfig struct {
	// LocalID is the player slot (1 or 2) chosen at login.
	LocalID       int           `yaml:"local_id"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	HitResetDelay time.Duration `yaml:"hit_reset_delay"`
	LogoutDelay   time.Duration `yaml:"logout_delay"`
	QueueCapacity int           `yaml:"queue_capacity"`
	// AnnounceVisibility publishes feedback on every local visibility change
	// in addition to answering server polls.
	AnnounceVisibility bool `yaml:"announce_visibility"`
}

type ReconnectConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MinBackoff  time.Duration `yaml:"min_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
	// Token, when set, is required as a bearer token on every request.
	Token    string `yaml:"token"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type RecorderConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type RepositoryConfig struct {
	// URL selects the match log backend: sqlite://path or postgresql://...
	// Empty disables the match log.
	URL string `yaml:"url"`
}

// Default returns a configuration with every field set to its default.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:           DefaultBrokerHost,
			Port:           DefaultBrokerPort,
			ConnectTimeout: DefaultConnectTimeout,
		},
		Topics: TopicsConfig{
			GameState:          DefaultGameStateTopic,
			VisibilityRequest:  DefaultVisibilityRequestTopic,
			DeviceStatus:       DefaultDeviceStatusTopic,
			VisibilityFeedback: DefaultVisibilityFeedbackTopic,
			Action:             DefaultActionTopic,
		},
		Session: SessionConfig{
			LocalID:       1,
			TickInterval:  DefaultTickInterval,
			LogoutDelay:   DefaultLogoutDelay,
			QueueCapacity: DefaultQueueCapacity,
		},
		Reconnect: ReconnectConfig{
			Enabled:    true,
			MinBackoff: DefaultMinBackoff,
			MaxBackoff: DefaultMaxBackoff,
		},
		API: APIConfig{
			Port: DefaultAPIPort,
		},
	}
}

// Load reads the YAML file at path on top of the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from DUELSYNC_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "BROKER_HOST"); ok {
		c.Broker.Host = v
	}
	if v, ok := lookup(EnvPrefix + "BROKER_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sBROKER_PORT %q: %w", EnvPrefix, v, err)
		}
		c.Broker.Port = port
	}
	if v, ok := lookup(EnvPrefix + "BROKER_TLS"); ok {
		tls, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sBROKER_TLS %q: %w", EnvPrefix, v, err)
		}
		c.Broker.TLS = tls
	}
	if v, ok := lookup(EnvPrefix + "BROKER_USERNAME"); ok {
		c.Broker.Username = v
	}
	if v, ok := lookup(EnvPrefix + "BROKER_PASSWORD"); ok {
		c.Broker.Password = v
	}
	if v, ok := lookup(EnvPrefix + "LOCAL_ID"); ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sLOCAL_ID %q: %w", EnvPrefix, v, err)
		}
		c.Session.LocalID = id
	}
	if v, ok := lookup(EnvPrefix + "API_TOKEN"); ok {
		c.API.Token = v
	}
	if v, ok := lookup(EnvPrefix + "REPOSITORY_URL"); ok {
		c.Repository.URL = v
	}
	return nil
}

// Validate checks the configuration for values the session cannot run with.
func (c *Config) Validate() error {
	if c.Session.LocalID != 1 && c.Session.LocalID != 2 {
		return fmt.Errorf("session.local_id must be 1 or 2, got %d", c.Session.LocalID)
	}
	if c.Broker.Host == "" {
		return fmt.Errorf("broker.host must be set")
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		return fmt.Errorf("broker.port out of range: %d", c.Broker.Port)
	}
	topics := map[string]string{
		"topics.game_state":          c.Topics.GameState,
		"topics.visibility_request":  c.Topics.VisibilityRequest,
		"topics.device_status":       c.Topics.DeviceStatus,
		"topics.visibility_feedback": c.Topics.VisibilityFeedback,
		"topics.action":              c.Topics.Action,
	}
	for name, topic := range topics {
		if topic == "" {
			return fmt.Errorf("%s must be set", name)
		}
	}
	if c.Session.TickInterval <= 0 {
		return fmt.Errorf("session.tick_interval must be positive")
	}
	if c.Session.QueueCapacity <= 0 {
		return fmt.Errorf("session.queue_capacity must be positive")
	}
	if c.Reconnect.Enabled {
		if c.Reconnect.MinBackoff <= 0 {
			return fmt.Errorf("reconnect.min_backoff must be positive")
		}
		if c.Reconnect.MaxBackoff < c.Reconnect.MinBackoff {
			return fmt.Errorf("reconnect.max_backoff must not be less than reconnect.min_backoff")
		}
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("api.port out of range: %d", c.API.Port)
	}
	if (c.API.CertFile == "") != (c.API.KeyFile == "") {
		return fmt.Errorf("api.cert_file and api.key_file must be set together")
	}
	if c.Recorder.Enabled && c.Recorder.Path == "" {
		return fmt.Errorf("recorder.path must be set when the recorder is enabled")
	}
	return nil
}
