package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"chargebridge/internal/cpo"
	libconfig "chargebridge/libs/config"
)

// Config defines the bridge configuration.
type Config struct {
	HTTP struct {
		Port   string `yaml:"port" env:"BRIDGE_HTTP_PORT"`
		APIKey string `yaml:"apiKey" env:"BRIDGE_INBOUND_API_KEY"`
	} `yaml:"http"`
	Partner struct {
		URL               string        `yaml:"url" env:"BRIDGE_PARTNER_URL"`
		APIKey            string        `yaml:"apiKey" env:"BRIDGE_PARTNER_API_KEY"`
		PartnerIdentifier string        `yaml:"partnerIdentifier" env:"BRIDGE_PARTNER_IDENTIFIER"`
		Timeout           time.Duration `yaml:"timeout" env:"BRIDGE_PARTNER_TIMEOUT"`
	} `yaml:"partner"`
	Flush struct {
		Data   time.Duration `yaml:"data" env:"BRIDGE_FLUSH_DATA"`
		Status time.Duration `yaml:"status" env:"BRIDGE_FLUSH_STATUS"`
		CDR    time.Duration `yaml:"cdr" env:"BRIDGE_FLUSH_CDR"`
	} `yaml:"flush"`
	Uploads struct {
		MaxConcurrent int `yaml:"maxConcurrent" env:"BRIDGE_MAX_CONCURRENT_UPLOADS"`
	} `yaml:"uploads"`
	Capabilities struct {
		DisablePushData       bool `yaml:"disablePushData" env:"BRIDGE_DISABLE_PUSH_DATA"`
		DisablePushStatus     bool `yaml:"disablePushStatus" env:"BRIDGE_DISABLE_PUSH_STATUS"`
		DisableAuthentication bool `yaml:"disableAuthentication" env:"BRIDGE_DISABLE_AUTHENTICATION"`
		DisableSendCDRs       bool `yaml:"disableSendCdrs" env:"BRIDGE_DISABLE_SEND_CDRS"`
	} `yaml:"capabilities"`
	Database struct {
		DSN string `yaml:"dsn" env:"BRIDGE_POSTGRES_DSN"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr" env:"BRIDGE_REDIS_ADDR"`
		Password string `yaml:"password" env:"BRIDGE_REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"BRIDGE_REDIS_DB"`
		TTL      int    `yaml:"ttlSeconds" env:"BRIDGE_REDIS_TTL"`
	} `yaml:"redis"`
	Feed struct {
		URL string `yaml:"url" env:"BRIDGE_FEED_URL"`
	} `yaml:"feed"`
}

// Load reads configuration via the shared helper and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "8090"
	cfg.Partner.Timeout = 30 * time.Second
	cfg.Flush.Data = 30 * time.Second
	cfg.Flush.Status = 15 * time.Second
	cfg.Flush.CDR = 60 * time.Second
	cfg.Uploads.MaxConcurrent = 4
	cfg.Redis.TTL = 86400

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Partner.URL) == "" {
		return nil, errors.New("config: partner url required")
	}
	if strings.TrimSpace(cfg.Partner.APIKey) == "" {
		return nil, errors.New("config: partner api key required")
	}
	if strings.TrimSpace(cfg.Partner.PartnerIdentifier) == "" {
		return nil, errors.New("config: partner identifier required")
	}
	if strings.TrimSpace(cfg.Feed.URL) == "" {
		return nil, errors.New("config: feed url required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8090"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SessionTTL returns the remote-session cache ttl.
func (c *Config) SessionTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.TTL) * time.Second
}

// AdapterConfig maps the file/env configuration onto the adapter knobs.
func (c *Config) AdapterConfig() cpo.Config {
	return cpo.Config{
		PartnerIdentifier:     c.Partner.PartnerIdentifier,
		DataFlushInterval:     c.Flush.Data,
		StatusFlushInterval:   c.Flush.Status,
		CDRFlushInterval:      c.Flush.CDR,
		MaxConcurrentUploads:  c.Uploads.MaxConcurrent,
		DisablePushData:       c.Capabilities.DisablePushData,
		DisablePushStatus:     c.Capabilities.DisablePushStatus,
		DisableAuthentication: c.Capabilities.DisableAuthentication,
		DisableSendCDRs:       c.Capabilities.DisableSendCDRs,
	}
}
