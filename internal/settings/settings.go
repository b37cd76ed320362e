// Package settings persists user preferences as a JSON file in the user
// config directory, loaded once at startup and replaced wholesale on save.
package settings

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Settings are the user-tunable knobs of the pipeline.
type Settings struct {
	AutoDownload    bool   `mapstructure:"auto_download" json:"auto_download"`
	DownloadPath    string `mapstructure:"download_path" json:"download_path"`
	NamingRule      string `mapstructure:"naming_rule" json:"naming_rule"`
	MonitorInterval int    `mapstructure:"monitor_interval_ms" json:"monitor_interval_ms"`
	MaxLogs         int    `mapstructure:"max_logs" json:"max_logs"`
}

// Default returns the settings used when no file exists yet.
func Default() Settings {
	return Settings{
		AutoDownload:    false,
		DownloadPath:    "",
		NamingRule:      "timestamp",
		MonitorInterval: 500,
		MaxLogs:         100,
	}
}

// Store reads and writes the settings file.
type Store struct {
	path string
}

// NewStore returns a store backed by the given file path. An empty path
// selects <user config dir>/cliphook/settings.json.
func NewStore(path string) (*Store, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("settings: user config dir: %w", err)
		}
		path = filepath.Join(dir, "cliphook", "settings.json")
	}
	return &Store{path: path}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the settings file. A missing file is not an error: defaults
// are returned so a fresh install starts with sane values.
func (s *Store) Load() (Settings, error) {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")

	out := Default()
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return out, nil
		}
		return out, fmt.Errorf("settings: read %s: %w", s.path, err)
	}
	if err := v.Unmarshal(&out); err != nil {
		return Default(), fmt.Errorf("settings: decode %s: %w", s.path, err)
	}
	return Normalize(out), nil
}

// Save writes the full settings snapshot, creating the directory if needed.
// The previous file content is replaced, never patched.
func (s *Store) Save(cfg Settings) error {
	cfg = Normalize(cfg)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings: mkdir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("json")
	v.Set("auto_download", cfg.AutoDownload)
	v.Set("download_path", cfg.DownloadPath)
	v.Set("naming_rule", cfg.NamingRule)
	v.Set("monitor_interval_ms", cfg.MonitorInterval)
	v.Set("max_logs", cfg.MaxLogs)

	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.path, err)
	}
	return nil
}

// Normalize clamps obviously broken values back to defaults. Load and Save
// apply it; callers keeping their own snapshot should run it too so memory
// and disk agree.
func Normalize(cfg Settings) Settings {
	def := Default()
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = def.MonitorInterval
	}
	if cfg.MaxLogs <= 0 {
		cfg.MaxLogs = def.MaxLogs
	}
	if cfg.NamingRule == "" {
		cfg.NamingRule = def.NamingRule
	}
	return cfg
}
