package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/pkg"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "softhpi.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvFirmwareDir, EnvLogLevel, EnvLogFile} {
		t.Setenv(k, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Adapter.CrashThreshold != 10 {
		t.Errorf("CrashThreshold = %d, want 10", cfg.Adapter.CrashThreshold)
	}
	if cfg.Log.Format != FormatAuto {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, FormatAuto)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Firmware.Dir != Default().Firmware.Dir {
		t.Errorf("Firmware.Dir = %q", cfg.Firmware.Dir)
	}
}

func TestLoadMergesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
transport:
  idleSpin: 500
  pollDelay: 3us
  writeChunk: 64
adapter:
  crashThreshold: 4
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Transport.IdleSpin != 500 {
		t.Errorf("IdleSpin = %d, want 500", cfg.Transport.IdleSpin)
	}
	if cfg.Transport.PollDelay != 3*time.Microsecond {
		t.Errorf("PollDelay = %v, want 3us", cfg.Transport.PollDelay)
	}
	if cfg.Transport.AckSpin != Default().Transport.AckSpin {
		t.Errorf("AckSpin = %d, want default", cfg.Transport.AckSpin)
	}
	if cfg.Adapter.CrashThreshold != 4 {
		t.Errorf("CrashThreshold = %d, want 4", cfg.Adapter.CrashThreshold)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != FormatJSON {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfig, writeFile(t, "firmware:\n  dir: /opt/dsp\n"))
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Firmware.Dir != "/opt/dsp" {
		t.Errorf("Firmware.Dir = %q, want /opt/dsp", cfg.Firmware.Dir)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "firmware:\n  dir: /from/file\nlog:\n  level: info\n")
	t.Setenv(EnvFirmwareDir, "/from/env")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFile, "/tmp/hpi.log")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Firmware.Dir != "/from/env" {
		t.Errorf("Firmware.Dir = %q, want /from/env", cfg.Firmware.Dir)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %q, want error", cfg.Log.Level)
	}
	if cfg.Log.File != "/tmp/hpi.log" {
		t.Errorf("Log.File = %q", cfg.Log.File)
	}
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "none.yaml") }},
		{"unknown key", func(t *testing.T) string { return writeFile(t, "transport:\n  idleSpinn: 3\n") }},
		{"bad yaml", func(t *testing.T) string { return writeFile(t, "transport: [\n") }},
		{"bad duration", func(t *testing.T) string { return writeFile(t, "transport:\n  pollDelay: soon\n") }},
		{"invalid value", func(t *testing.T) string { return writeFile(t, "adapter:\n  crashThreshold: 0\n") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path(t)); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"idle spin", func(c *Config) { c.Transport.IdleSpin = 0 }},
		{"ack spin", func(c *Config) { c.Transport.AckSpin = -1 }},
		{"boot spin", func(c *Config) { c.Transport.BootSpin = 0 }},
		{"bridge retries", func(c *Config) { c.Transport.BridgeRetries = 0 }},
		{"negative poll delay", func(c *Config) { c.Transport.PollDelay = -time.Millisecond }},
		{"long poll delay", func(c *Config) { c.Transport.PollDelay = 2 * time.Second }},
		{"write chunk", func(c *Config) { c.Transport.WriteChunk = 5000 }},
		{"read chunk", func(c *Config) { c.Transport.ReadChunk = 0 }},
		{"crash threshold", func(c *Config) { c.Adapter.CrashThreshold = 0 }},
		{"firmware dir", func(c *Config) { c.Firmware.Dir = "" }},
		{"sysfs root", func(c *Config) { c.Sysfs.Root = "" }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"log rotation", func(c *Config) { c.Log.MaxBackups = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, pkg.ErrInvalidParameter) {
				t.Errorf("Validate() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestBackendOptions(t *testing.T) {
	cfg := Default()
	cfg.Transport.AckSpin = 77
	cfg.Transport.ReadChunk = 8
	cfg.Adapter.CrashThreshold = 6

	opts := cfg.BackendOptions()
	if opts.AckSpin != 77 || opts.ReadChunk != 8 {
		t.Errorf("BackendOptions() = %+v", opts)
	}
	if opts.Sleep == nil {
		t.Error("BackendOptions() has no sleep hook")
	}
	ao := cfg.AdapterOptions()
	if ao.CrashThreshold != 6 || ao.Transport.AckSpin != 77 {
		t.Errorf("AdapterOptions() = %+v", ao)
	}
}

func TestFirmwareSource(t *testing.T) {
	cfg := Default()
	cfg.Firmware.Dir = t.TempDir()
	if _, err := cfg.FirmwareSource().Open(firmware.Family(0x6205)); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestLogFormat(t *testing.T) {
	tests := []struct {
		format string
		file   string
		tty    bool
		want   pkg.LogFormat
	}{
		{FormatText, "", false, pkg.LogFormatText},
		{FormatJSON, "", true, pkg.LogFormatJSON},
		{FormatAuto, "", true, pkg.LogFormatText},
		{FormatAuto, "", false, pkg.LogFormatJSON},
		{FormatAuto, "/tmp/x.log", true, pkg.LogFormatJSON},
		{"JSON", "", true, pkg.LogFormatJSON},
	}
	for _, tt := range tests {
		l := LogConfig{Format: tt.format, File: tt.file}
		if got := l.LogFormat(tt.tty); got != tt.want {
			t.Errorf("LogFormat(%q, %q, %v) = %v, want %v", tt.format, tt.file, tt.tty, got, tt.want)
		}
	}
}

func TestApplyLogsToFile(t *testing.T) {
	oldLevel := pkg.GetLogLevel()
	defer func() {
		pkg.SetLogOutput(nil)
		pkg.SetLogFormat(pkg.LogFormatText)
		pkg.SetLogLevel(oldLevel)
	}()

	path := filepath.Join(t.TempDir(), "hpi.log")
	l := LogConfig{Level: "info", Format: FormatAuto, File: path, MaxSizeMB: 1}
	closer, err := l.Apply(true)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if closer == nil {
		t.Fatal("Apply() returned no closer for a log file")
	}
	if pkg.GetLogLevel() != slog.LevelInfo {
		t.Errorf("level = %v, want info", pkg.GetLogLevel())
	}

	pkg.LogInfo(pkg.ComponentSubsystem, "hello", "n", 1)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file = %q, want a JSON record", data)
	}
}

func TestApplyRejectsBadLevel(t *testing.T) {
	if _, err := (LogConfig{Level: "chatty"}).Apply(false); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("Apply() error = %v, want ErrInvalidParameter", err)
	}
}
