package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"adstream/pkg/validation"

	"gopkg.in/yaml.v2"
)

var validPresets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true,
	"fast": true, "medium": true, "slow": true, "slower": true, "veryslow": true,
}

type Config struct {
	Service struct {
		AppName  string `yaml:"app_name"`
		Aspect   string `yaml:"aspect"`
		Nickname string `yaml:"nickname"`
	} `yaml:"service"`

	Identity struct {
		Path string `yaml:"path"`
	} `yaml:"identity"`

	Stream struct {
		Width       int    `yaml:"width"`
		Height      int    `yaml:"height"`
		FPS         int    `yaml:"fps"`
		CRF         int    `yaml:"crf"`
		Preset      string `yaml:"preset"`
		GOPSeconds  int    `yaml:"gop_seconds"`
		MaxSendKbps int    `yaml:"max_send_kbps"`
	} `yaml:"stream"`

	Server struct {
		ListenAddress     string        `yaml:"listen_address"`
		MaxClients        int           `yaml:"max_clients"`
		HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
		HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`
		AnnounceInterval  time.Duration `yaml:"announce_interval"`
		PollInterval      time.Duration `yaml:"poll_interval"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
		StatusAddress     string        `yaml:"status_address"`
	} `yaml:"server"`

	Client struct {
		DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
		ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	} `yaml:"client"`

	Transport struct {
		MulticastAddress string `yaml:"multicast_address"`
	} `yaml:"transport"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable
// ranges. A validation failure is fatal at startup, before any session
// exists.
func (c *Config) Validate() error {
	if err := validation.ValidateAppName(c.Service.AppName); err != nil {
		return fmt.Errorf("service.app_name: %w", err)
	}
	if err := validation.ValidateAspect(c.Service.Aspect); err != nil {
		return fmt.Errorf("service.aspect: %w", err)
	}
	if err := validation.ValidateNickname(c.Service.Nickname); err != nil {
		return fmt.Errorf("service.nickname: %w", err)
	}

	if c.Identity.Path == "" {
		return fmt.Errorf("identity.path must not be empty")
	}

	if c.Stream.Width <= 0 || c.Stream.Height <= 0 {
		return fmt.Errorf("stream resolution %dx%d is invalid", c.Stream.Width, c.Stream.Height)
	}
	if c.Stream.FPS <= 0 {
		return fmt.Errorf("stream.fps must be > 0")
	}
	if c.Stream.CRF < 0 || c.Stream.CRF > 51 {
		return fmt.Errorf("stream.crf must be within 0..51")
	}
	if !validPresets[c.Stream.Preset] {
		return fmt.Errorf("stream.preset %q is not a valid libx264 preset", c.Stream.Preset)
	}
	if c.Stream.GOPSeconds <= 0 {
		return fmt.Errorf("stream.gop_seconds must be > 0")
	}
	if c.Stream.MaxSendKbps < 0 {
		return fmt.Errorf("stream.max_send_kbps must be >= 0")
	}

	if err := validation.ValidateHostPort(c.Server.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address: %w", err)
	}
	if c.Server.MaxClients < 0 {
		return fmt.Errorf("server.max_clients must be >= 0 (0 = unbounded)")
	}
	if c.Server.HeartbeatInterval <= 0 {
		return fmt.Errorf("server.heartbeat_interval must be > 0")
	}
	if c.Server.HeartbeatTimeout <= c.Server.HeartbeatInterval {
		return fmt.Errorf("server.heartbeat_timeout must be greater than server.heartbeat_interval")
	}
	if c.Server.AnnounceInterval <= 0 {
		return fmt.Errorf("server.announce_interval must be > 0")
	}
	if c.Server.PollInterval <= 0 {
		return fmt.Errorf("server.poll_interval must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if c.Client.DiscoveryTimeout <= 0 {
		return fmt.Errorf("client.discovery_timeout must be > 0")
	}
	if c.Client.ReconnectDelay <= 0 {
		return fmt.Errorf("client.reconnect_delay must be > 0")
	}

	if err := validation.ValidateMulticastAddress(c.Transport.MulticastAddress); err != nil {
		return fmt.Errorf("transport.multicast_address: %w", err)
	}

	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	return nil
}

// Load reads configuration from a YAML file, applies defaults and env
// overrides. A missing file falls back to defaults.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults matching the
// stock producer/consumer pairing.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Service.AppName = "adstream"
	cfg.Service.Aspect = "video_stream/ad_feed"
	cfg.Service.Nickname = "AdStream Server"

	cfg.Identity.Path = "data/identity.json"

	cfg.Stream.Width = 1280
	cfg.Stream.Height = 720
	cfg.Stream.FPS = 20
	cfg.Stream.CRF = 28
	cfg.Stream.Preset = "ultrafast"
	cfg.Stream.GOPSeconds = 2
	cfg.Stream.MaxSendKbps = 0

	cfg.Server.ListenAddress = ":4970"
	cfg.Server.MaxClients = 0
	cfg.Server.HeartbeatInterval = 15 * time.Second
	cfg.Server.HeartbeatTimeout = 45 * time.Second
	cfg.Server.AnnounceInterval = 5 * time.Minute
	cfg.Server.PollInterval = 5 * time.Millisecond
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Server.StatusAddress = ""

	cfg.Client.DiscoveryTimeout = 30 * time.Second
	cfg.Client.ReconnectDelay = 10 * time.Second

	cfg.Transport.MulticastAddress = "239.77.13.37:4971"

	cfg.Monitoring.PrometheusEnabled = false

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ADSTREAM_ASPECT"); v != "" {
		c.Service.Aspect = v
	}
	if v := os.Getenv("ADSTREAM_NICKNAME"); v != "" {
		c.Service.Nickname = v
	}
	if v := os.Getenv("ADSTREAM_LISTEN_ADDRESS"); v != "" {
		c.Server.ListenAddress = v
	}
	if v := os.Getenv("ADSTREAM_MULTICAST_ADDRESS"); v != "" {
		c.Transport.MulticastAddress = v
	}
	if v := os.Getenv("ADSTREAM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ADSTREAM_MAX_CLIENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Server.MaxClients = n
		}
	}
}
