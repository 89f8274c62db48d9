package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces every environment variable read by the loader.
const EnvPrefix = "DOCBUDDY_"

// loader implements the Service interface on top of koanf.
type loader struct {
	koanf      *koanf.Koanf
	validator  *validator.Validate
	sources    map[string]SourceType
	mu         sync.RWMutex
	environ    func() []string
	envEnabled bool
}

// LoaderOption customizes a loader.
type LoaderOption func(*loader)

// WithEnviron replaces the process environment, mostly for tests.
func WithEnviron(fn func() []string) LoaderOption {
	return func(l *loader) {
		l.environ = fn
	}
}

// WithoutEnv skips environment variables entirely.
func WithoutEnv() LoaderOption {
	return func(l *loader) {
		l.envEnabled = false
	}
}

// NewService creates a configuration service with validation support.
func NewService(opts ...LoaderOption) Service {
	v, err := newValidator()
	if err != nil {
		panic(fmt.Sprintf("config: register validators: %v", err))
	}
	l := &loader{
		koanf:      koanf.New("."),
		validator:  v,
		sources:    make(map[string]SourceType),
		envEnabled: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load applies defaults, then each source in order, then the environment.
// CLI sources are applied after the environment so flags always win.
func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.koanf = koanf.New(".")
	l.sources = make(map[string]SourceType)
	if err := l.loadDefaults(); err != nil {
		return nil, err
	}
	var late []Source
	for _, source := range sources {
		if source == nil {
			continue
		}
		if source.Type() == SourceCLI {
			late = append(late, source)
			continue
		}
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	if l.envEnabled {
		if err := l.loadEnvironment(); err != nil {
			return nil, err
		}
	}
	for _, source := range late {
		if err := l.loadSource(source); err != nil {
			return nil, err
		}
	}
	return l.unmarshalAndValidate()
}

func (l *loader) loadDefaults() error {
	if err := l.koanf.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return fmt.Errorf("failed to load defaults: %w", err)
	}
	for _, key := range l.koanf.Keys() {
		l.sources[key] = SourceDefault
	}
	return nil
}

func (l *loader) loadEnvironment() error {
	envToPath := EnvPaths()
	opt := env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key string, value string) (string, any) {
			name := strings.TrimPrefix(key, EnvPrefix)
			path, ok := envToPath[name]
			if !ok {
				return "", nil
			}
			return path, value
		},
	}
	if l.environ != nil {
		opt.EnvironFunc = l.environ
	}
	before := l.snapshot()
	if err := l.koanf.Load(env.Provider(".", opt), nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	l.track(before, SourceEnv)
	return nil
}

func (l *loader) loadSource(source Source) error {
	data, err := source.Load()
	if err != nil {
		return fmt.Errorf("failed to load from source %s: %w", source.Type(), err)
	}
	if len(data) == 0 {
		return nil
	}
	before := l.snapshot()
	for key, value := range data {
		if err := l.koanf.Set(key, value); err != nil {
			return fmt.Errorf("failed to set key %s from source %s: %w", key, source.Type(), err)
		}
	}
	l.track(before, source.Type())
	return nil
}

func (l *loader) snapshot() map[string]any {
	out := make(map[string]any, len(l.koanf.Keys()))
	for _, key := range l.koanf.Keys() {
		out[key] = l.koanf.Get(key)
	}
	return out
}

func (l *loader) track(before map[string]any, source SourceType) {
	for _, key := range l.koanf.Keys() {
		prev, existed := before[key]
		if !existed || !reflect.DeepEqual(prev, l.koanf.Get(key)) {
			l.sources[key] = source
		}
	}
}

func (l *loader) unmarshalAndValidate() (*Config, error) {
	var cfg Config
	if err := l.koanf.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks struct tags and cross-field constraints.
func (l *loader) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if err := l.validator.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", describeValidation(err))
	}
	return nil
}

func (l *loader) GetSource(key string) SourceType {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if source, ok := l.sources[key]; ok {
		return source
	}
	return SourceDefault
}
