package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/ardnew/softhpi/adapter"
	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/pkg"
)

// Environment variables read by Load.
const (
	EnvConfig      = "SOFTHPI_CONFIG"
	EnvFirmwareDir = "SOFTHPI_FIRMWARE_DIR"
	EnvLogLevel    = "SOFTHPI_LOG_LEVEL"
	EnvLogFile     = "SOFTHPI_LOG_FILE"
)

// Log formats accepted in LogConfig.Format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatAuto = "auto" // Text on a terminal, JSON otherwise
)

// Config is the complete configuration of the HPI stack and its tools.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Adapter   AdapterConfig   `yaml:"adapter"`
	Firmware  FirmwareConfig  `yaml:"firmware"`
	Log       LogConfig       `yaml:"log"`
	Sysfs     SysfsConfig     `yaml:"sysfs"`
}

// TransportConfig bounds the backend handshakes.
type TransportConfig struct {
	IdleSpin      int           `yaml:"idleSpin"`      // Polls waiting for the DSP to go idle
	AckSpin       int           `yaml:"ackSpin"`       // Polls waiting for an acknowledge
	BootSpin      int           `yaml:"bootSpin"`      // Polls for long boot waits
	PollDelay     time.Duration `yaml:"pollDelay"`     // Pause between polls
	BridgeRetries int           `yaml:"bridgeRetries"` // Attempts per bridged access
	WriteChunk    int           `yaml:"writeChunk"`    // Words per bridged block write
	ReadChunk     int           `yaml:"readChunk"`     // Words per bridged block read
}

// AdapterConfig holds per-adapter policy.
type AdapterConfig struct {
	CrashThreshold int `yaml:"crashThreshold"`
}

// FirmwareConfig locates DSP images.
type FirmwareConfig struct {
	Dir string `yaml:"dir"`
}

// LogConfig selects log level, format and destination.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"` // Empty logs to stderr
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// SysfsConfig locates the PCI device tree.
type SysfsConfig struct {
	Root string `yaml:"root"`
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	opts := backend.DefaultOptions()
	return &Config{
		Transport: TransportConfig{
			IdleSpin:      opts.IdleSpin,
			AckSpin:       opts.AckSpin,
			BootSpin:      opts.BootSpin,
			PollDelay:     opts.PollDelay,
			BridgeRetries: opts.BridgeRetries,
			WriteChunk:    opts.WriteChunk,
			ReadChunk:     opts.ReadChunk,
		},
		Adapter: AdapterConfig{
			CrashThreshold: adapter.DefaultCrashThreshold,
		},
		Firmware: FirmwareConfig{
			Dir: "/lib/firmware/asihpi",
		},
		Log: LogConfig{
			Level:     "warn",
			Format:    FormatAuto,
			MaxSizeMB: 10,
		},
		Sysfs: SysfsConfig{
			Root: "/sys/bus/pci/devices",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path,
// and environment overrides, then validates it. An empty path falls back
// to $SOFTHPI_CONFIG; with neither set only defaults and the environment
// apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// loadFromFile merges a YAML file into cfg. Keys absent from the file keep
// their current values.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if dir := os.Getenv(EnvFirmwareDir); dir != "" {
		cfg.Firmware.Dir = dir
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if file := os.Getenv(EnvLogFile); file != "" {
		cfg.Log.File = file
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), pkg.ErrInvalidParameter)
}

// Validate checks every field for a usable value.
func (c *Config) Validate() error {
	t := c.Transport
	for _, f := range []struct {
		name string
		v    int
	}{
		{"transport.idleSpin", t.IdleSpin},
		{"transport.ackSpin", t.AckSpin},
		{"transport.bootSpin", t.BootSpin},
		{"transport.bridgeRetries", t.BridgeRetries},
		{"adapter.crashThreshold", c.Adapter.CrashThreshold},
	} {
		if f.v <= 0 {
			return invalid("%s must be positive, got %d", f.name, f.v)
		}
	}
	if t.PollDelay < 0 || t.PollDelay > time.Second {
		return invalid("transport.pollDelay %v outside [0, 1s]", t.PollDelay)
	}
	if t.WriteChunk <= 0 || t.WriteChunk > 4096 {
		return invalid("transport.writeChunk %d outside [1, 4096]", t.WriteChunk)
	}
	if t.ReadChunk <= 0 || t.ReadChunk > 4096 {
		return invalid("transport.readChunk %d outside [1, 4096]", t.ReadChunk)
	}

	if c.Firmware.Dir == "" {
		return invalid("firmware.dir is empty")
	}
	if c.Sysfs.Root == "" {
		return invalid("sysfs.root is empty")
	}

	if _, err := pkg.ParseLogLevel(c.Log.Level); err != nil {
		return invalid("log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case FormatText, FormatJSON, FormatAuto:
	default:
		return invalid("log.format %q, must be one of %s, %s, %s", c.Log.Format, FormatText, FormatJSON, FormatAuto)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return invalid("log rotation limits must not be negative")
	}
	return nil
}

// BackendOptions returns the handshake bounds for every backend.
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{
		IdleSpin:      c.Transport.IdleSpin,
		AckSpin:       c.Transport.AckSpin,
		BootSpin:      c.Transport.BootSpin,
		PollDelay:     c.Transport.PollDelay,
		Sleep:         time.Sleep,
		BridgeRetries: c.Transport.BridgeRetries,
		WriteChunk:    c.Transport.WriteChunk,
		ReadChunk:     c.Transport.ReadChunk,
	}
}

// AdapterOptions returns the subsystem options.
func (c *Config) AdapterOptions() adapter.Options {
	return adapter.Options{
		Transport:      c.BackendOptions(),
		CrashThreshold: c.Adapter.CrashThreshold,
	}
}

// FirmwareSource returns the source of DSP images.
func (c *Config) FirmwareSource() firmware.Source {
	return firmware.Dir{Path: c.Firmware.Dir}
}

// LogFormat resolves the configured format. tty reports whether the log
// destination is a terminal and only matters for FormatAuto.
func (l LogConfig) LogFormat(tty bool) pkg.LogFormat {
	switch strings.ToLower(l.Format) {
	case FormatJSON:
		return pkg.LogFormatJSON
	case FormatAuto:
		if l.File != "" || !tty {
			return pkg.LogFormatJSON
		}
	}
	return pkg.LogFormatText
}

// Apply configures the package logger. When logging to a file the returned
// closer releases it; otherwise the closer is nil.
func (l LogConfig) Apply(tty bool) (io.Closer, error) {
	level, err := pkg.ParseLogLevel(l.Level)
	if err != nil {
		return nil, invalid("log.level %q", l.Level)
	}
	pkg.SetLogLevel(level)

	var closer io.Closer
	if l.File != "" {
		w := pkg.NewRotatingWriter(pkg.RotateConfig{
			Path:       l.File,
			MaxSizeMB:  l.MaxSizeMB,
			MaxBackups: l.MaxBackups,
			MaxAgeDays: l.MaxAgeDays,
			Compress:   l.Compress,
		})
		pkg.SetLogOutput(w)
		closer = w
	} else {
		pkg.SetLogOutput(os.Stderr)
	}
	pkg.SetLogFormat(l.LogFormat(tty))
	return closer, nil
}
