package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/pso2go/internal/crypto"
	"github.com/udisondev/pso2go/internal/variant"
)

// EnvPath overrides the config path passed to the binaries.
const EnvPath = "PSO2GO_CONFIG"

// Proxy holds all configuration for the proxy.
type Proxy struct {
	// Network
	Listen      string        `yaml:"listen"`
	Upstream    string        `yaml:"upstream"`
	DialTimeout time.Duration `yaml:"dial_timeout"`

	// Protocol
	Variant       string   `yaml:"variant"`
	Personalities []string `yaml:"personalities"` // empty = all
	Compression   bool     `yaml:"compression"`   // zstd for outbound AES NGS frames

	// Keys (PEM, PKCS#1/PKCS#8/OpenSSH)
	ClientKey   string `yaml:"client_key"`   // private key clients encrypt the handshake to
	UpstreamKey string `yaml:"upstream_key"` // public key of the upstream server

	// ShipAddress replaces ship IPs in ShipList packets sent to the client
	ShipAddress string `yaml:"ship_address"`

	Capture CaptureConfig `yaml:"capture"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	MetricsAddr string `yaml:"metrics_addr"` // empty disables /metrics
	LogLevel    string `yaml:"log_level"`
}

// CaptureConfig controls recording of proxied sessions.
type CaptureConfig struct {
	Dir      string `yaml:"dir"`      // PPAC files are written here; empty disables file capture
	Compress bool   `yaml:"compress"` // zstd PPAC
	Database bool   `yaml:"database"` // store sessions in PostgreSQL
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultProxy returns Proxy config with sensible defaults.
func DefaultProxy() Proxy {
	return Proxy{
		Listen:      "0.0.0.0:12199",
		Upstream:    "127.0.0.1:12100",
		DialTimeout: 5 * time.Second,
		Variant:     "ngs",
		ClientKey:   "keys/client.pem",
		UpstreamKey: "keys/upstream.pem",
		Capture: CaptureConfig{
			Dir:      "captures",
			Compress: true,
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "pso2go",
			Password: "pso2go",
			DBName:   "pso2go",
			SSLMode:  "disable",
		},
		MetricsAddr: "127.0.0.1:9100",
		LogLevel:    "info",
	}
}

// LoadProxy loads proxy config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadProxy(path string) (Proxy, error) {
	cfg := DefaultProxy()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the config path from PSO2GO_CONFIG or def.
func Path(def string) string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return def
}

// Validate checks the fields that are parsed later.
func (p Proxy) Validate() error {
	if p.Listen == "" || p.Upstream == "" {
		return fmt.Errorf("listen and upstream addresses are required")
	}
	if _, err := p.ClientVariant(); err != nil {
		return err
	}
	if _, err := p.EnabledPersonalities(); err != nil {
		return err
	}
	if _, err := ParseLevel(p.LogLevel); err != nil {
		return err
	}
	return nil
}

// ClientVariant parses Variant.
func (p Proxy) ClientVariant() (variant.Variant, error) {
	return variant.Parse(p.Variant)
}

// EnabledPersonalities parses Personalities.
func (p Proxy) EnabledPersonalities() (crypto.Personalities, error) {
	return crypto.ParsePersonalities(p.Personalities)
}

// ParseLevel converts a log level name to slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
