package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix of the environment overrides: NLPRUN_POOL_SIZE sets pool.size.
const EnvPrefix = "NLPRUN"

// NewViper returns a viper instance holding the built-in defaults, with
// environment overrides enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, "", toMap(Default()))
	return v
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok && len(sub) > 0 {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// Load merges the config file at path (skipped when empty) over the
// defaults in v, decodes the result and validates it.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", ErrConfig, path, err)
		}
	}
	return decode(v)
}

// LoadConfig reads YAML from r over the defaults and validates the result.
func LoadConfig(r io.Reader) (*Config, error) {
	v := NewViper()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("%w: parsing yaml: %w", ErrConfig, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Formats accepted by Dump.
var Formats = []string{"yaml", "toml", "json"}

// Dump writes cfg in one of Formats.
func Dump(w io.Writer, cfg Config, format string) error {
	m := toMap(cfg)
	switch format {
	case "", "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	case "toml":
		if err := toml.NewEncoder(w).Encode(m); err != nil {
			return fmt.Errorf("encoding toml: %w", err)
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	default:
		return fmt.Errorf("unsupported format %q, use one of %s", format, strings.Join(Formats, ", "))
	}
}

// toMap converts cfg to the generic form used for viper defaults and dumps.
func toMap(cfg Config) map[string]any {
	b, err := json.Marshal(cfg)
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&m); err != nil {
		panic(err)
	}
	return normalize(m).(map[string]any)
}

// normalize turns whole floats back into integers.
func normalize(x any) any {
	switch v := x.(type) {
	case map[string]any:
		for _, k := range slices.Collect(maps.Keys(v)) {
			v[k] = normalize(v[k])
		}
		return v
	case []any:
		for i := range v {
			v[i] = normalize(v[i])
		}
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v)
		}
		return v
	default:
		return x
	}
}
