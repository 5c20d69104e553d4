// Package config loads and saves the global aperture configuration file,
// <root>/config.toml, and resolves the configuration root itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/aperture-cli/aperture/internal/apperr"
	"github.com/aperture-cli/aperture/internal/fsutil"
	"github.com/aperture-cli/aperture/internal/respcache"
	"github.com/aperture-cli/aperture/internal/retry"
)

const (
	// AppName is the application subdirectory within the OS config directory.
	AppName = "aperture"
	// FileName is the config file name inside the config root.
	FileName = "config.toml"

	// EnvConfigDir overrides the config root.
	EnvConfigDir = "APERTURE_CONFIG_DIR"
	// EnvEnvironment selects an entry of api_configs.<name>.environment_urls.
	EnvEnvironment = "APERTURE_ENV"
	// EnvCacheTTL overrides response_cache.ttl_secs.
	EnvCacheTTL = "APERTURE_RESPONSE_CACHE_TTL_SECS"
	// EnvCacheMaxEntries overrides response_cache.max_entries.
	EnvCacheMaxEntries = "APERTURE_RESPONSE_CACHE_MAX_ENTRIES"
	// EnvLogLevel overrides log.level.
	EnvLogLevel = "APERTURE_LOG_LEVEL"
	// EnvLogMaxBody overrides log.max_body.
	EnvLogMaxBody = "APERTURE_LOG_MAX_BODY"
)

// Config is the global configuration.
type Config struct {
	DefaultTimeoutSecs int                  `mapstructure:"default_timeout_secs" validate:"gte=0"`
	Retry              RetryConfig          `mapstructure:"retry"`
	ResponseCache      ResponseCacheConfig  `mapstructure:"response_cache"`
	Log                LogConfig            `mapstructure:"log"`
	APIConfigs         map[string]APIConfig `mapstructure:"api_configs" validate:"dive"`
}

// RetryConfig holds the default retry policy.
type RetryConfig struct {
	MaxAttempts    int `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	InitialDelayMs int `mapstructure:"initial_delay_ms" validate:"gte=0"`
	MaxDelayMs     int `mapstructure:"max_delay_ms" validate:"gtefield=InitialDelayMs"`
}

// ResponseCacheConfig holds the default response cache settings.
type ResponseCacheConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	TTLSecs       int      `mapstructure:"ttl_secs" validate:"gte=0"`
	MaxEntries    int      `mapstructure:"max_entries" validate:"gte=0"`
	AllowMutating bool     `mapstructure:"allow_mutating"`
	ExcludeTags   []string `mapstructure:"exclude_tags"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level   string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	MaxBody int    `mapstructure:"max_body" validate:"gte=0"`
}

// APIConfig holds per-API overrides.
type APIConfig struct {
	BaseURLOverride string            `mapstructure:"base_url_override" validate:"omitempty,url"`
	EnvironmentURLs map[string]string `mapstructure:"environment_urls" validate:"dive,url"`
	ServerVariables map[string]string `mapstructure:"server_variables"`
}

// Default returns the built-in configuration.
func Default() *Config {
	p := retry.DefaultPolicy()
	return &Config{
		DefaultTimeoutSecs: 30,
		Retry: RetryConfig{
			MaxAttempts:    p.MaxAttempts,
			InitialDelayMs: int(p.InitialDelay / time.Millisecond),
			MaxDelayMs:     int(p.MaxDelay / time.Millisecond),
		},
		ResponseCache: ResponseCacheConfig{
			Enabled:     false,
			TTLSecs:     int(respcache.DefaultTTL / time.Second),
			MaxEntries:  respcache.DefaultMaxEntries,
			ExcludeTags: []string{},
		},
		Log: LogConfig{
			Level:   "warn",
			MaxBody: 1000,
		},
		APIConfigs: map[string]APIConfig{},
	}
}

// Dir returns the configuration root: $APERTURE_CONFIG_DIR, or the
// platform config directory joined with "aperture".
func Dir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(configDir, AppName), nil
}

// Path returns the config file path under root.
func Path(root string) string {
	return filepath.Join(root, FileName)
}

func newViper(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigType("toml")

	d := Default()
	v.SetDefault("default_timeout_secs", d.DefaultTimeoutSecs)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_delay_ms", d.Retry.InitialDelayMs)
	v.SetDefault("retry.max_delay_ms", d.Retry.MaxDelayMs)
	v.SetDefault("response_cache.enabled", d.ResponseCache.Enabled)
	v.SetDefault("response_cache.ttl_secs", d.ResponseCache.TTLSecs)
	v.SetDefault("response_cache.max_entries", d.ResponseCache.MaxEntries)
	v.SetDefault("response_cache.allow_mutating", d.ResponseCache.AllowMutating)
	v.SetDefault("response_cache.exclude_tags", d.ResponseCache.ExcludeTags)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.max_body", d.Log.MaxBody)
	return v
}

// Load reads <root>/config.toml. A missing file yields the defaults.
// Environment variables override the file.
func Load(fs afero.Fs, root string) (*Config, error) {
	v := newViper(fs)
	_ = v.BindEnv("response_cache.ttl_secs", EnvCacheTTL)
	_ = v.BindEnv("response_cache.max_entries", EnvCacheMaxEntries)
	_ = v.BindEnv("log.level", EnvLogLevel)
	_ = v.BindEnv("log.max_body", EnvLogMaxBody)

	path := Path(root)
	if fsutil.Exists(fs, path) {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperr.Wrap(apperr.KindConfig, err, "read %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "parse %s", path)
	}
	cfg.normalize()
	if err := apperr.ValidateStruct(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to <root>/config.toml, replacing the file atomically.
func Save(fs afero.Fs, root string, cfg *Config) error {
	if err := apperr.ValidateStruct(cfg); err != nil {
		return err
	}
	v := viper.New()
	v.SetFs(fs)
	if err := v.MergeConfigMap(cfg.toMap()); err != nil {
		return apperr.Wrap(apperr.KindConfig, err, "encode config")
	}

	if err := fs.MkdirAll(root, fsutil.DirPerm); err != nil {
		return apperr.Wrap(apperr.KindIO, err, "create %s", root)
	}
	path := Path(root)
	tmp := path + ".tmp.toml"
	if err := v.WriteConfigAs(tmp); err != nil {
		fs.Remove(tmp)
		return apperr.Wrap(apperr.KindIO, err, "write %s", path)
	}
	if err := fs.Rename(tmp, path); err != nil {
		fs.Remove(tmp)
		return apperr.Wrap(apperr.KindIO, err, "replace %s", path)
	}
	return nil
}

func (c *Config) normalize() {
	if c.APIConfigs == nil {
		c.APIConfigs = map[string]APIConfig{}
	}
	if c.ResponseCache.ExcludeTags == nil {
		c.ResponseCache.ExcludeTags = []string{}
	}
}

// Settings returns the configuration as the nested map written to disk.
func (c *Config) Settings() map[string]any { return c.toMap() }

func (c *Config) toMap() map[string]any {
	apis := map[string]any{}
	for name, a := range c.APIConfigs {
		entry := map[string]any{}
		if a.BaseURLOverride != "" {
			entry["base_url_override"] = a.BaseURLOverride
		}
		if len(a.EnvironmentURLs) > 0 {
			entry["environment_urls"] = stringsToAny(a.EnvironmentURLs)
		}
		if len(a.ServerVariables) > 0 {
			entry["server_variables"] = stringsToAny(a.ServerVariables)
		}
		apis[name] = entry
	}
	return map[string]any{
		"default_timeout_secs": c.DefaultTimeoutSecs,
		"retry": map[string]any{
			"max_attempts":     c.Retry.MaxAttempts,
			"initial_delay_ms": c.Retry.InitialDelayMs,
			"max_delay_ms":     c.Retry.MaxDelayMs,
		},
		"response_cache": map[string]any{
			"enabled":        c.ResponseCache.Enabled,
			"ttl_secs":       c.ResponseCache.TTLSecs,
			"max_entries":    c.ResponseCache.MaxEntries,
			"allow_mutating": c.ResponseCache.AllowMutating,
			"exclude_tags":   c.ResponseCache.ExcludeTags,
		},
		"log": map[string]any{
			"level":    c.Log.Level,
			"max_body": c.Log.MaxBody,
		},
		"api_configs": apis,
	}
}

func stringsToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// API returns the per-API settings for name. Viper lowercases keys, so the
// lookup is case-insensitive.
func (c *Config) API(name string) APIConfig {
	if c == nil {
		return APIConfig{}
	}
	if a, ok := c.APIConfigs[name]; ok {
		return a
	}
	return c.APIConfigs[strings.ToLower(name)]
}

// SetAPI stores per-API settings for name.
func (c *Config) SetAPI(name string, a APIConfig) {
	if c.APIConfigs == nil {
		c.APIConfigs = map[string]APIConfig{}
	}
	delete(c.APIConfigs, name)
	c.APIConfigs[strings.ToLower(name)] = a
}

// RemoveAPI drops per-API settings for name.
func (c *Config) RemoveAPI(name string) {
	delete(c.APIConfigs, name)
	delete(c.APIConfigs, strings.ToLower(name))
}

// APINames returns the configured API names in sorted order.
func (c *Config) APINames() []string {
	names := make([]string, 0, len(c.APIConfigs))
	for n := range c.APIConfigs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RetryPolicy converts the retry section to a retry.Policy.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = c.Retry.MaxAttempts
	p.InitialDelay = time.Duration(c.Retry.InitialDelayMs) * time.Millisecond
	p.MaxDelay = time.Duration(c.Retry.MaxDelayMs) * time.Millisecond
	return p
}

// CacheConfig converts the response_cache section to a respcache.Config.
func (c *Config) CacheConfig() respcache.Config {
	return respcache.Config{
		Enabled:       c.ResponseCache.Enabled,
		TTL:           time.Duration(c.ResponseCache.TTLSecs) * time.Second,
		MaxEntries:    c.ResponseCache.MaxEntries,
		AllowMutating: c.ResponseCache.AllowMutating,
		ExcludeTags:   append([]string(nil), c.ResponseCache.ExcludeTags...),
	}
}

// Timeout returns the default per-call timeout; zero means none.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSecs) * time.Second
}
