package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tutils-dev/tutils/internal/branding"
	"github.com/tutils-dev/tutils/internal/errs"
	"github.com/tutils-dev/tutils/internal/logger"
	"go.yaml.in/yaml/v3"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Repository kinds accepted in the "type" field of a repository entry.
const (
	TypeLocal  = "local"
	TypeRemote = "remote"
)

// RepoEntry is one element of the "repository" list.
type RepoEntry struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	Type string `mapstructure:"type" yaml:"type" json:"type"`
	Link string `mapstructure:"link" yaml:"link,omitempty" json:"link,omitempty"`
}

// RunConfig holds defaults applied to every script run.
type RunConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxLines    int           `mapstructure:"max_lines" yaml:"max_lines"`
	Interpreter string        `mapstructure:"interpreter" yaml:"interpreter,omitempty"`
}

// Config is the decoded application configuration. Treat it as a value:
// the mutators below return modified copies.
type Config struct {
	Debug        bool           `mapstructure:"debug" yaml:"debug"`
	LogLevel     string         `mapstructure:"log_level" yaml:"log_level"`
	LogFormat    string         `mapstructure:"log_format" yaml:"log_format"`
	LogFile      string         `mapstructure:"log_file" yaml:"log_file,omitempty"`
	UseColor     bool           `mapstructure:"use_color" yaml:"use_color"`
	Verbose      bool           `mapstructure:"verbose" yaml:"verbose"`
	Run          RunConfig      `mapstructure:"run" yaml:"run"`
	Repositories []RepoEntry    `mapstructure:"repository" yaml:"repository"`
	Custom       map[string]any `mapstructure:"custom" yaml:"custom"`
}

// Dir returns the path to the config directory (~/.tutils/).
// TUTILS_HOME overrides it.
func Dir() string {
	if v := os.Getenv(branding.EnvVar("HOME")); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.tutils/config.yaml).
// TUTILS_CONFIG overrides it.
func FilePath() string {
	if v := os.Getenv(branding.EnvVar("CONFIG")); v != "" {
		return v
	}
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// DefaultScriptsDir returns the default local repository path (~/.tutils/Scripts).
func DefaultScriptsDir() string {
	return filepath.Join(Dir(), branding.DefaultScriptsDir())
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Default returns the configuration written on first run: info logging and
// a single local repository at DefaultScriptsDir.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "console",
		UseColor:  true,
		Repositories: []RepoEntry{
			{Path: DefaultScriptsDir(), Type: TypeLocal},
		},
		Custom: map[string]any{},
	}
}

// Load reads the config file at path, creating it with Default values when
// it does not exist. Environment variables prefixed with TUTILS_ override
// scalar keys (TUTILS_LOG_LEVEL, TUTILS_RUN_TIMEOUT, ...). A file that cannot
// be decoded yields an ErrConfig error.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := Save(path, Default()); err != nil {
			return Config{}, err
		}
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, errs.New(errs.ErrConfig, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.New(errs.ErrConfig, path, err)
	}
	if cfg.Custom == nil {
		cfg.Custom = map[string]any{}
	}
	for i := range cfg.Repositories {
		cfg.Repositories[i].Path = ExpandPath(cfg.Repositories[i].Path)
		if cfg.Repositories[i].Type == "" {
			cfg.Repositories[i].Type = TypeLocal
		}
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errs.New(errs.ErrConfig, path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.New(errs.ErrIO, filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errs.New(errs.ErrIO, path, err)
	}
	return nil
}

// Get returns a config value by key from the file at path, with environment
// overrides applied. Returns empty string if not set.
func Get(path, key string) (string, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return "", errs.New(errs.ErrConfig, path, err)
	}
	return v.GetString(key), nil
}

// Set writes a single key-value pair into the config file at path.
func Set(path, key, value string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := Save(path, Default()); err != nil {
			return err
		}
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(fileType)
	if err := v.ReadInConfig(); err != nil {
		return errs.New(errs.ErrConfig, path, err)
	}
	v.Set(key, value)

	// Round-trip through Config so the result still decodes.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return errs.New(errs.ErrConfig, key, err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// LoggingConfig derives the logger settings from cfg. Debug forces the
// debug level.
func (c Config) LoggingConfig() logger.LoggingConfig {
	level := c.LogLevel
	if c.Debug {
		level = "debug"
	}
	out := "stderr"
	if c.LogFile != "" {
		out = ExpandPath(c.LogFile)
	}
	return logger.LoggingConfig{
		Level:      level,
		Format:     c.LogFormat,
		OutputPath: out,
		NoColor:    !c.UseColor,
	}
}

// WithRepository returns a copy of c with entry appended. Adding a path that
// is already configured is an error.
func (c Config) WithRepository(entry RepoEntry) (Config, error) {
	entry.Path = ExpandPath(entry.Path)
	if entry.Type == "" {
		entry.Type = TypeLocal
	}
	if entry.Type != TypeLocal && entry.Type != TypeRemote {
		return c, errs.New(errs.ErrConfig, fmt.Sprintf("repository type %q", entry.Type), nil)
	}
	if entry.Type == TypeRemote && entry.Link == "" {
		return c, errs.New(errs.ErrInvalidLink, entry.Path, errors.New("remote repository requires a link"))
	}
	for _, r := range c.Repositories {
		if samePath(r.Path, entry.Path) {
			return c, fmt.Errorf("repository %s is already configured", entry.Path)
		}
	}
	out := c
	out.Repositories = append(slices.Clone(c.Repositories), entry)
	return out, nil
}

// WithoutRepository returns a copy of c without the entry at path.
// The boolean reports whether an entry was removed.
func (c Config) WithoutRepository(path string) (Config, bool) {
	path = ExpandPath(path)
	out := c
	out.Repositories = nil
	removed := false
	for _, r := range c.Repositories {
		if samePath(r.Path, path) {
			removed = true
			continue
		}
		out.Repositories = append(out.Repositories, r)
	}
	return out, removed
}

// ExpandPath expands a leading ~ and makes the path absolute.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func samePath(a, b string) bool {
	return filepath.Clean(ExpandPath(a)) == filepath.Clean(ExpandPath(b))
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(fileType)
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_file", "")
	v.SetDefault("use_color", d.UseColor)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("run.timeout", "0s")
	v.SetDefault("run.max_lines", 0)
	v.SetDefault("run.interpreter", "")
	return v
}
