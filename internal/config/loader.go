package config

import (
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/meshdecomp/pkg/errors"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "MESHDECOMP"

// Sentinel errors returned (wrapped) by Load.  Match them with errors.Is.
var (
	ErrConfigFileNotFound = errors.New(errors.CodeConfigFileNotFound, "config file not found")
	ErrConfigParseError   = errors.New(errors.CodeConfigParse, "config file could not be parsed")
	ErrConfigValidation   = errors.New(errors.CodeConfigValidation, "config validation failed")
)

var (
	globalMu  sync.RWMutex
	globalCfg *Config
)

// Get returns the Config stored by the last successful Load, or nil.
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalCfg
}

func setGlobal(cfg *Config) {
	globalMu.Lock()
	globalCfg = cfg
	globalMu.Unlock()
}

type loadOptions struct {
	path        string
	searchPaths []string
	overrides   map[string]interface{}
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithConfigPath reads exactly this file.  A missing file is an error.
func WithConfigPath(path string) LoadOption {
	return func(o *loadOptions) { o.path = path }
}

// WithSearchPaths looks for meshdecomp.yaml (or config.yaml) in each
// directory.  Not finding one is not an error.
func WithSearchPaths(dirs ...string) LoadOption {
	return func(o *loadOptions) { o.searchPaths = append(o.searchPaths, dirs...) }
}

// WithOverrides sets keys after file and environment have been merged.
// The CLI uses it for flags.
func WithOverrides(kv map[string]interface{}) LoadOption {
	return func(o *loadOptions) {
		if o.overrides == nil {
			o.overrides = make(map[string]interface{}, len(kv))
		}
		for k, v := range kv {
			o.overrides[k] = v
		}
	}
}

// newViper builds a Viper instance with YAML file type, the MESHDECOMP_ env
// prefix and a "." → "_" key replacer, so decomposition.out_of_range
// resolves to MESHDECOMP_DECOMPOSITION_OUT_OF_RANGE.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

// Load merges, in increasing priority: defaults, the config file, MESHDECOMP_*
// environment variables and overrides.  The result is validated and stored
// for Get.
func Load(opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	v := newViper()
	if err := readFile(v, o); err != nil {
		return nil, err
	}
	for k, val := range o.overrides {
		v.Set(k, val)
	}

	cfg, err := unmarshalAndFinalize(v)
	if err != nil {
		return nil, err
	}
	setGlobal(cfg)
	return cfg, nil
}

// LoadFromFile is Load(WithConfigPath(path)).
func LoadFromFile(path string) (*Config, error) {
	return Load(WithConfigPath(path))
}

// LoadFromEnv builds a Config from MESHDECOMP_* variables and defaults only.
func LoadFromEnv() (*Config, error) {
	return Load()
}

// MustLoad is Load that panics on error, for use in main.
func MustLoad(opts ...LoadOption) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func readFile(v *viper.Viper, o *loadOptions) error {
	if o.path != "" {
		if _, err := os.Stat(o.path); err != nil {
			return ErrConfigFileNotFound.WithDetail(o.path).WithCause(err)
		}
		v.SetConfigFile(o.path)
		if err := v.ReadInConfig(); err != nil {
			return ErrConfigParseError.WithDetail(o.path).WithCause(err)
		}
		return nil
	}

	for _, dir := range o.searchPaths {
		v.AddConfigPath(dir)
	}
	if len(o.searchPaths) == 0 {
		return nil
	}
	for _, name := range []string{"meshdecomp", "config"} {
		v.SetConfigName(name)
		err := v.ReadInConfig()
		if err == nil {
			return nil
		}
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return ErrConfigParseError.WithDetail(v.ConfigFileUsed()).WithCause(err)
		}
	}
	return nil
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, ErrConfigParseError.WithCause(err)
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, ErrConfigValidation.WithCause(err)
	}
	return cfg, nil
}

// Watcher re-reads a config file when it changes on disk.
type Watcher struct {
	v *viper.Viper
}

// Watch starts monitoring path.  onChange receives the newly parsed Config
// and the triggering event; onError receives reload failures and may be
// nil.  Watch returns once the initial read succeeded; viper runs the
// fsnotify loop in its own goroutine.
func Watch(path string, onChange func(*Config, fsnotify.Event), onError func(error), opts ...LoadOption) (*Watcher, error) {
	if path == "" {
		return nil, ErrConfigFileNotFound.WithDetail("watch needs an explicit config file")
	}
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}
	o.path = path
	v := newViper()
	if err := readFile(v, o); err != nil {
		return nil, err
	}

	for k, val := range o.overrides {
		v.Set(k, val)
	}

	w := &Watcher{v: v}
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		setGlobal(cfg)
		onChange(cfg, e)
	})
	v.WatchConfig()
	return w, nil
}

// File is the path being watched.
func (w *Watcher) File() string { return w.v.ConfigFileUsed() }
