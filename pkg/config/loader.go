package config

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panduza/pza/pkg/errors"
	"github.com/panduza/pza/pkg/logging"
)

// DefaultEnvPrefix prefixes environment overrides. Nesting uses a double
// underscore: PZA_BROKER__TCP__PORT sets broker.tcp.port.
const DefaultEnvPrefix = "PZA_"

// LoadOption customizes LoadWithDefaults
type LoadOption func(*loadOptions)

type loadOptions struct {
	envPrefix     string
	createMissing bool
}

// WithEnvPrefix changes the environment prefix, empty disables env overrides
func WithEnvPrefix(prefix string) LoadOption {
	return func(o *loadOptions) {
		o.envPrefix = prefix
	}
}

// WithoutCreate leaves a missing file missing
func WithoutCreate() LoadOption {
	return func(o *loadOptions) {
		o.createMissing = false
	}
}

// Load reads the main configuration file, creating it with the defaults
// when it does not exist yet.
func Load(path string, opts ...LoadOption) (*Config, error) {
	cfg, err := LoadWithDefaults(path, Default(), opts...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithDefaults layers, in order: defaults, the file at path, and
// environment overrides, then decodes the result into a new T. A missing
// JSON or JSON5 file is written with the defaults unless WithoutCreate
// is given.
func LoadWithDefaults[T any](path string, defaults *T, opts ...LoadOption) (*T, error) {
	o := loadOptions{envPrefix: DefaultEnvPrefix, createMissing: true}
	for _, opt := range opts {
		opt(&o)
	}

	logger := logging.GetLogger(logging.ComponentConfig)
	k := koanf.New(".")

	// 1. Defaults, round-tripped through JSON so json tags become keys
	if defaults != nil {
		raw, err := sonic.ConfigStd.Marshal(defaults)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to encode defaults")
		}
		if err := k.Load(&rawBytesProvider{bytes: raw}, JSON5Parser()); err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load defaults")
		}
	}

	// 2. The file itself
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}

		if _, statErr := os.Stat(path); statErr == nil {
			if err := k.Load(file.Provider(path), parser); err != nil {
				return nil, errors.Wrapf(err, errors.ErrConfigParse, "failed to load config from %s", path)
			}
			logger.Debug().Str("path", path).Msg("Loaded configuration file")
		} else if os.IsNotExist(statErr) {
			if o.createMissing && isJSONPath(path) && defaults != nil {
				if err := Write(path, defaults); err != nil {
					return nil, err
				}
			} else {
				logger.Debug().Str("path", path).Msg("No configuration file, using defaults")
			}
		} else {
			return nil, errors.Wrapf(statErr, errors.ErrConfigLoad, "failed to stat %s", path)
		}
	}

	// 3. Environment overrides
	if o.envPrefix != "" {
		prefix := o.envPrefix
		err := k.Load(env.Provider(prefix, ".", func(s string) string {
			return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, prefix)), "__", ".")
		}), nil)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigLoad, "failed to load env vars")
		}
	}

	// 4. Unmarshal
	out := new(T)
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           out,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				hexU16HookFunc(),
				durationHookFunc(),
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", out, unmarshalConf); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "failed to unmarshal configuration")
	}

	return out, nil
}

// Write stores v as indented JSON at path, creating parent directories
func Write(path string, v interface{}) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrConfigWrite, "failed to serialize configuration")
	}
	return writeFile(path, append(data, '\n'))
}

// WriteTemplate stores the annotated default configuration at path
func WriteTemplate(path string) error {
	return writeFile(path, templateConfig)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrConfigWrite, "failed to write configuration file %s", path)
	}

	logger := logging.GetLogger(logging.ComponentConfig)
	logger.Info().Str("path", path).Msg("Generated configuration file")
	return nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json5", ".json":
		return JSON5Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unsupported config file format %q", filepath.Ext(path))
	}
}

func isJSONPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".json5" || ext == ".json"
}

// hexU16HookFunc decodes numbers and hex strings into HexU16
func hexU16HookFunc() mapstructure.DecodeHookFuncType {
	hexType := reflect.TypeOf(HexU16(0))
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != hexType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return ParseHexU16(v)
		case float64:
			if v < 0 || v > math.MaxUint16 || v != math.Trunc(v) {
				return nil, errors.Newf(errors.ErrConfigParse, "number %v does not fit in u16", v)
			}
			return HexU16(v), nil
		case int64:
			if v < 0 || v > math.MaxUint16 {
				return nil, errors.Newf(errors.ErrConfigParse, "number %d does not fit in u16", v)
			}
			return HexU16(v), nil
		case int:
			if v < 0 || v > math.MaxUint16 {
				return nil, errors.Newf(errors.ErrConfigParse, "number %d does not fit in u16", v)
			}
			return HexU16(v), nil
		}
		return data, nil
	}
}

// durationHookFunc decodes "3s" strings, or plain numbers as seconds, into Duration
func durationHookFunc() mapstructure.DecodeHookFuncType {
	durType := reflect.TypeOf(Duration(0))
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != durType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrConfigParse, "invalid duration %q", v)
			}
			return Duration(d), nil
		case float64:
			return Duration(v * float64(time.Second)), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		}
		return data, nil
	}
}
