// Package config loads sceneref's YAML configuration with environment
// variable expansion.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "sceneref.yaml"

// Cache backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Validator is implemented by configuration types that can check themselves.
type Validator interface {
	Validate() error
}

// Load reads filename into target, expanding ${VAR} references first.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// Config is the full configuration.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Cache   CacheConfig   `yaml:"cache"`
	Scan    ScanConfig    `yaml:"scan"`
	Log     LogConfig     `yaml:"log"`
}

// Validate validates every section.
func (c *Config) Validate() error {
	if err := c.Project.Validate(); err != nil {
		return fmt.Errorf("project: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// ProjectConfig locates the Unity project. Folders and Scenes are relative
// to Root.
type ProjectConfig struct {
	Root     string   `yaml:"root"`
	Folders  []string `yaml:"folders"`
	Scenes   []string `yaml:"scenes"`
	Assembly string   `yaml:"assembly"`
}

func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Folders, validation.Each(validation.Required, validation.By(relativePath))),
		validation.Field(&c.Scenes, validation.Each(validation.Required, validation.By(relativePath))),
		validation.Field(&c.Assembly, validation.Required),
	)
}

func relativePath(v any) error {
	s, _ := v.(string)
	if filepath.IsAbs(s) {
		return errors.New("must be relative to the project root")
	}
	return nil
}

// CacheConfig selects the usage cache backend. A relative Path is resolved
// against the project root.
type CacheConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendFile, BackendSQLite, BackendMemory)),
		validation.Field(&c.Path, validation.When(c.Backend != BackendMemory, validation.Required)),
	)
}

// ScanConfig controls scene scanning.
type ScanConfig struct {
	Workers int `yaml:"workers"`
}

func (c *ScanConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
	)
}

// LogConfig controls the slog handler built by the CLI.
type LogConfig struct {
	Level  slog.Level `yaml:"level"`
	Format string     `yaml:"format"`
}

func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.Required, validation.In(FormatText, FormatJSON)),
	)
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	return &Config{
		Project: ProjectConfig{
			Root:     ".",
			Folders:  []string{"Assets"},
			Scenes:   []string{"Assets"},
			Assembly: "Assembly-CSharp",
		},
		Cache: CacheConfig{
			Backend: BackendFile,
			Path:    filepath.Join("Library", "sceneref", "cache.json.zst"),
		},
		Scan: ScanConfig{
			Workers: runtime.NumCPU(),
		},
		Log: LogConfig{
			Level:  slog.LevelInfo,
			Format: FormatText,
		},
	}
}

// LoadFile loads filename over the defaults. A missing file is not an error
// when optional is set; the validated defaults are returned instead.
func LoadFile(filename string, optional bool) (*Config, error) {
	cfg := NewDefaultConfig()
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) && optional {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
		return cfg, nil
	}
	if err := Load(filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CachePath returns the cache location resolved against the project root.
func (c *Config) CachePath() string {
	if c.Cache.Path == "" || filepath.IsAbs(c.Cache.Path) {
		return c.Cache.Path
	}
	return filepath.Join(c.Project.Root, c.Cache.Path)
}
