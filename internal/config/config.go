package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/RowanDark/mardec/internal/cipher"
	"github.com/RowanDark/mardec/internal/engine"
	"github.com/RowanDark/mardec/internal/env"
)

// DefaultOutput is the file written when no output path is given.
const DefaultOutput = "deobfuscated_output.py"

// Config captures the mardec configuration resolved from defaults, optional
// files, environment overrides and flags.
type Config struct {
	MaxLayers      int          `yaml:"max_layers" toml:"max_layers" json:"max_layers"`
	MaxIterations  int          `yaml:"max_iterations" toml:"max_iterations" json:"max_iterations"`
	CodecOrder     string       `yaml:"codec_order" toml:"codec_order" json:"codec_order"`
	DisabledCodecs []string     `yaml:"disabled_codecs" toml:"disabled_codecs" json:"disabled_codecs"`
	ExtendedCodecs bool         `yaml:"extended_codecs" toml:"extended_codecs" json:"extended_codecs"`
	Output         string       `yaml:"output" toml:"output" json:"output"`
	Header         bool         `yaml:"header" toml:"header" json:"header"`
	Log            LogConfig    `yaml:"log" toml:"log" json:"log"`
	Update         UpdateConfig `yaml:"update" toml:"update" json:"update"`
}

// LogConfig controls console and audit output.
type LogConfig struct {
	Level     string `yaml:"level" toml:"level" json:"level"`
	NoColor   bool   `yaml:"no_color" toml:"no_color" json:"no_color"`
	AuditPath string `yaml:"audit_path" toml:"audit_path" json:"audit_path"`
}

// UpdateConfig points the opt-in self-updater at a release feed.
type UpdateConfig struct {
	BaseURL string `yaml:"base_url" toml:"base_url" json:"base_url"`
	Channel string `yaml:"channel" toml:"channel" json:"channel"`
}

// Default returns the built-in mardec configuration.
func Default() Config {
	return Config{
		MaxLayers:     engine.DefaultMaxLayers,
		MaxIterations: engine.DefaultMaxIterations,
		CodecOrder:    cipher.OrderCompressionFirst.String(),
		Output:        DefaultOutput,
		Header:        true,
		Log: LogConfig{
			Level: "info",
		},
		Update: UpdateConfig{
			Channel: "stable",
		},
	}
}

// Load resolves the configuration using defaults, configuration files, and
// environment overrides. The lookup order for configuration files is:
//  1. ~/.mardec/config.toml (TOML)
//  2. ./mardec.yml (YAML)
//
// Environment variables prefixed with MARDEC_ have the highest precedence.
func Load() (Config, error) {
	cfg := Default()

	if err := loadHomeConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadLocalConfig(&cfg); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, cfg.Validate()
}

// LoadFile resolves the configuration from defaults, the single file at path
// and environment overrides. The format follows the file extension.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(&cfg, data, formatFor(path)); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	return cfg, cfg.Validate()
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return "yaml"
	default:
		return "toml"
	}
}

func loadHomeConfig(cfg *Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("determine home directory: %w", err)
	}
	return loadOptional(cfg, filepath.Join(home, ".mardec", "config.toml"), "toml")
}

func loadLocalConfig(cfg *Config) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	return loadOptional(cfg, filepath.Join(wd, "mardec.yml"), "yaml")
}

func loadOptional(cfg *Config, path, format string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := applyFileConfig(cfg, data, format); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// fileConfig mirrors Config with pointers so a file only overrides the keys
// it sets.
type fileConfig struct {
	MaxLayers      *int              `yaml:"max_layers" toml:"max_layers"`
	MaxIterations  *int              `yaml:"max_iterations" toml:"max_iterations"`
	CodecOrder     *string           `yaml:"codec_order" toml:"codec_order"`
	DisabledCodecs *[]string         `yaml:"disabled_codecs" toml:"disabled_codecs"`
	ExtendedCodecs *bool             `yaml:"extended_codecs" toml:"extended_codecs"`
	Output         *string           `yaml:"output" toml:"output"`
	Header         *bool             `yaml:"header" toml:"header"`
	Log            *fileLogConfig    `yaml:"log" toml:"log"`
	Update         *fileUpdateConfig `yaml:"update" toml:"update"`
}

type fileLogConfig struct {
	Level     *string `yaml:"level" toml:"level"`
	NoColor   *bool   `yaml:"no_color" toml:"no_color"`
	AuditPath *string `yaml:"audit_path" toml:"audit_path"`
}

type fileUpdateConfig struct {
	BaseURL *string `yaml:"base_url" toml:"base_url"`
	Channel *string `yaml:"channel" toml:"channel"`
}

func applyFileConfig(cfg *Config, data []byte, format string) error {
	var fc fileConfig
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	case "toml":
		meta, err := toml.Decode(string(data), &fc)
		if err != nil {
			return err
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown key %q", undecoded[0].String())
		}
	default:
		return fmt.Errorf("unsupported format %q", format)
	}

	if fc.MaxLayers != nil {
		cfg.MaxLayers = *fc.MaxLayers
	}
	if fc.MaxIterations != nil {
		cfg.MaxIterations = *fc.MaxIterations
	}
	if fc.CodecOrder != nil {
		cfg.CodecOrder = strings.TrimSpace(*fc.CodecOrder)
	}
	if fc.DisabledCodecs != nil {
		cfg.DisabledCodecs = append([]string(nil), *fc.DisabledCodecs...)
	}
	if fc.ExtendedCodecs != nil {
		cfg.ExtendedCodecs = *fc.ExtendedCodecs
	}
	if fc.Output != nil {
		cfg.Output = strings.TrimSpace(*fc.Output)
	}
	if fc.Header != nil {
		cfg.Header = *fc.Header
	}
	if fc.Log != nil {
		if fc.Log.Level != nil {
			cfg.Log.Level = strings.TrimSpace(*fc.Log.Level)
		}
		if fc.Log.NoColor != nil {
			cfg.Log.NoColor = *fc.Log.NoColor
		}
		if fc.Log.AuditPath != nil {
			cfg.Log.AuditPath = strings.TrimSpace(*fc.Log.AuditPath)
		}
	}
	if fc.Update != nil {
		if fc.Update.BaseURL != nil {
			cfg.Update.BaseURL = strings.TrimSpace(*fc.Update.BaseURL)
		}
		if fc.Update.Channel != nil {
			cfg.Update.Channel = strings.TrimSpace(*fc.Update.Channel)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if n, ok := env.Int("MARDEC_MAX_LAYERS"); ok {
		cfg.MaxLayers = n
	}
	if n, ok := env.Int("MARDEC_MAX_ITERATIONS"); ok {
		cfg.MaxIterations = n
	}
	if val, ok := env.Lookup("MARDEC_CODEC_ORDER"); ok {
		cfg.CodecOrder = val
	}
	if list, ok := env.List("MARDEC_DISABLED_CODECS"); ok {
		cfg.DisabledCodecs = list
	}
	if b, ok := env.Bool("MARDEC_EXTENDED_CODECS"); ok {
		cfg.ExtendedCodecs = b
	}
	if val, ok := env.Lookup("MARDEC_OUTPUT"); ok {
		cfg.Output = val
	}
	if b, ok := env.Bool("MARDEC_HEADER"); ok {
		cfg.Header = b
	}
	if val, ok := env.Lookup("MARDEC_LOG_LEVEL"); ok {
		cfg.Log.Level = val
	}
	if _, ok := env.Lookup("NO_COLOR"); ok {
		cfg.Log.NoColor = true
	}
	if b, ok := env.Bool("MARDEC_NO_COLOR"); ok {
		cfg.Log.NoColor = b
	}
	if val, ok := env.Lookup("MARDEC_AUDIT_PATH"); ok {
		cfg.Log.AuditPath = val
	}
	if val, ok := env.Lookup("MARDEC_UPDATE_URL"); ok {
		cfg.Update.BaseURL = val
	}
	if val, ok := env.Lookup("MARDEC_UPDATE_CHANNEL"); ok {
		cfg.Update.Channel = val
	}
}

var validLevels = map[string]struct{}{
	"trace": {}, "debug": {}, "info": {}, "warn": {}, "warning": {}, "error": {}, "disabled": {}, "off": {},
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := c.Limits().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cipher.ParseOrder(c.CodecOrder); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.disabledKinds(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if strings.TrimSpace(c.Output) == "" {
		return errors.New("invalid config: output path is empty")
	}
	if _, ok := validLevels[strings.ToLower(strings.TrimSpace(c.Log.Level))]; !ok {
		return fmt.Errorf("invalid config: unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(strings.TrimSpace(c.Update.Channel)) {
	case "", "stable", "beta":
	default:
		return fmt.Errorf("invalid config: unknown update channel %q", c.Update.Channel)
	}
	return nil
}

// Limits returns the decode caps.
func (c Config) Limits() engine.Limits {
	return engine.Limits{MaxLayers: c.MaxLayers, MaxIterations: c.MaxIterations}
}

// CodecOptions translates the codec settings into options for cipher.NewSet.
func (c Config) CodecOptions() ([]cipher.SetOption, error) {
	order, err := cipher.ParseOrder(c.CodecOrder)
	if err != nil {
		return nil, err
	}
	disabled, err := c.disabledKinds()
	if err != nil {
		return nil, err
	}
	return []cipher.SetOption{
		cipher.WithOrder(order),
		cipher.WithExtended(c.ExtendedCodecs),
		cipher.WithoutCodecs(disabled...),
	}, nil
}

func (c Config) disabledKinds() ([]cipher.CodecKind, error) {
	kinds := make([]cipher.CodecKind, 0, len(c.DisabledCodecs))
	for _, name := range c.DisabledCodecs {
		kind, err := cipher.ParseCodecKind(name)
		if err != nil {
			return nil, err
		}
		if kind == cipher.KindNone {
			return nil, fmt.Errorf("codec %q cannot be disabled", name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}
