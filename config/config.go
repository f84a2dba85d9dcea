package config

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"proxsense/ble"
	"proxsense/logger"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "proxsense"
	// DataDirEnv overrides the resolved data directory.
	DataDirEnv = "PROXSENSE_DATA_DIR"

	// DefaultPlatform is the platform advertised when none is configured.
	DefaultPlatform = "android"
	// DefaultTxPower is the advertised transmit power.
	DefaultTxPower = 12

	// DefaultService is the mDNS service name without domain suffix.
	DefaultService = "_proxsense._tcp"
	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."
	// DefaultPort is the port carried in the advertisement record.
	DefaultPort = 9876
	// DefaultScanInterval is the background browse interval.
	DefaultScanInterval = 10 * time.Second
	// DefaultScanTimeout bounds each browse.
	DefaultScanTimeout = 3 * time.Second
	// DefaultRotateInterval is how often the advertised identifier rotates.
	DefaultRotateInterval = 15 * time.Minute
	// DefaultPeerStaleAfter is how long a silent peer is kept.
	DefaultPeerStaleAfter = 2 * time.Minute
	// DefaultReportInterval is how often the target list is printed.
	DefaultReportInterval = 5 * time.Second

	configFileName = "config.json"
)

var (
	// ErrInvalidPlatform is returned for a platform that is not ios or android.
	ErrInvalidPlatform = errors.New("platform must be ios or android")
	// ErrUnsupportedFormat is returned for config files that are not JSON or YAML.
	ErrUnsupportedFormat = errors.New("unsupported config format")
)

// Config contains persistent local-device settings.
type Config struct {
	DeviceID        string          `json:"device_id" yaml:"device_id"`
	DeviceName      string          `json:"device_name" yaml:"device_name"`
	Platform        string          `json:"platform" yaml:"platform"`
	TxPower         int             `json:"tx_power" yaml:"tx_power"`
	SonarIdentifier int32           `json:"sonar_identifier" yaml:"sonar_identifier"`
	Discovery       DiscoveryConfig `json:"discovery" yaml:"discovery"`
	Log             logger.Config   `json:"log" yaml:"log"`
	// Metrics is optional; without an endpoint no exporter is installed.
	Metrics logger.MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// DiscoveryConfig controls the LAN advertisement and browse loop.
type DiscoveryConfig struct {
	Service        string   `json:"service" yaml:"service"`
	Domain         string   `json:"domain" yaml:"domain"`
	Port           int      `json:"port" yaml:"port"`
	ScanInterval   Duration `json:"scan_interval" yaml:"scan_interval"`
	ScanTimeout    Duration `json:"scan_timeout" yaml:"scan_timeout"`
	RotateInterval Duration `json:"rotate_interval" yaml:"rotate_interval"`
	PeerStaleAfter Duration `json:"peer_stale_after" yaml:"peer_stale_after"`
	ReportInterval Duration `json:"report_interval" yaml:"report_interval"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If PROXSENSE_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv(DataDirEnv); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// ConfigPath returns the full path to config.json for a data directory.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

// Load reads and unmarshals a JSON config from disk.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// LoadFile reads an explicit config file, picking the decoder from its
// extension, and fills missing defaults in memory.
func LoadFile(path string) (*Config, error) {
	var cfg *Config

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		cfg = &Config{}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	normalizeDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save marshals and writes config.json to disk.
func Save(path string, cfg *Config) error {
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// LoadOrCreate ensures the data directory and config exist, then returns both.
func LoadOrCreate() (*Config, string, error) {
	dataDir, err := ResolveDataDir()
	if err != nil {
		return nil, "", err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create directory %q: %w", dataDir, err)
	}

	cfgPath := ConfigPath(dataDir)
	cfg, err := Load(cfgPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}

		cfg = &Config{}
		normalizeDefaults(cfg)
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}

		return cfg, cfgPath, nil
	}

	if normalizeDefaults(cfg) {
		if err := Save(cfgPath, cfg); err != nil {
			return nil, "", err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, cfgPath, nil
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if !ble.ParsePlatform(c.Platform).Confirmed() {
		return fmt.Errorf("%w: %q", ErrInvalidPlatform, c.Platform)
	}
	if c.Discovery.Port <= 0 || c.Discovery.Port > 65535 {
		return fmt.Errorf("discovery port %d out of range", c.Discovery.Port)
	}
	return nil
}

// DeriveSonarIdentifier maps a device ID onto the 32-bit identifier framed
// into the sonar payload. IDs that are not UUIDs are hashed into one first.
func DeriveSonarIdentifier(deviceID string) int32 {
	id, err := uuid.Parse(deviceID)
	if err != nil {
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte(deviceID))
	}
	return int32(binary.BigEndian.Uint32(id[:4]))
}

func defaultDeviceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "proxsense device"
}

func normalizeDefaults(cfg *Config) bool {
	updated := false

	if cfg.DeviceID == "" {
		cfg.DeviceID = uuid.NewString()
		updated = true
	}

	if cfg.DeviceName == "" {
		cfg.DeviceName = defaultDeviceName()
		updated = true
	}

	if cfg.Platform == "" {
		cfg.Platform = DefaultPlatform
		updated = true
	}

	if cfg.TxPower == 0 {
		cfg.TxPower = DefaultTxPower
		updated = true
	}

	if cfg.SonarIdentifier == 0 {
		cfg.SonarIdentifier = DeriveSonarIdentifier(cfg.DeviceID)
		updated = true
	}

	if normalizeDiscovery(&cfg.Discovery) {
		updated = true
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
		updated = true
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
		updated = true
	}

	return updated
}

func normalizeDiscovery(d *DiscoveryConfig) bool {
	updated := false

	setString := func(field *string, value string) {
		if *field == "" {
			*field = value
			updated = true
		}
	}
	setDuration := func(field *Duration, value time.Duration) {
		if *field <= 0 {
			*field = Duration(value)
			updated = true
		}
	}

	setString(&d.Service, DefaultService)
	setString(&d.Domain, DefaultDomain)
	if d.Port == 0 {
		d.Port = DefaultPort
		updated = true
	}
	setDuration(&d.ScanInterval, DefaultScanInterval)
	setDuration(&d.ScanTimeout, DefaultScanTimeout)
	setDuration(&d.RotateInterval, DefaultRotateInterval)
	setDuration(&d.PeerStaleAfter, DefaultPeerStaleAfter)
	setDuration(&d.ReportInterval, DefaultReportInterval)

	return updated
}
