// Package config loads superkit settings and lesson parameter overrides.
//
// Precedence, low to high: built-in defaults, the YAML file named by
// --config or SUPERKIT_CONFIG, then SUPERKIT_* environment variables where
// a double underscore nests (SUPERKIT_LOG__LEVEL=debug sets log.level).
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

const (
	EnvPrefix = "SUPERKIT_"
	EnvFile   = EnvPrefix + "CONFIG"

	lessonsKey = "lessons"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Board     BoardConfig     `koanf:"board"`
	HAL       HALConfig       `koanf:"hal"`
	Status    StatusConfig    `koanf:"status"`
	Journal   JournalConfig   `koanf:"journal"`
	Heartbeat HeartbeatConfig `koanf:"heartbeat"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // console|json
}

type BoardConfig struct {
	Sim bool `koanf:"sim"`
}

type HALConfig struct {
	ISRQueueLen  int `koanf:"isr_queue_len"`
	I2CTimeoutMs int `koanf:"i2c_timeout_ms"`
}

type StatusConfig struct {
	Addr       string `koanf:"addr"` // empty disables the server
	RatePerMin int    `koanf:"rate_per_min"`
}

type JournalConfig struct {
	Path string `koanf:"path"` // empty disables the journal
}

type HeartbeatConfig struct {
	IntervalS int `koanf:"interval_s"` // 0 disables
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		Log:       LogConfig{Level: "info", Format: "console"},
		HAL:       HALConfig{ISRQueueLen: 64, I2CTimeoutMs: 50},
		Status:    StatusConfig{RatePerMin: 120},
		Journal:   JournalConfig{Path: "superkit.db"},
		Heartbeat: HeartbeatConfig{IntervalS: 10},
	}
}

// Validate reports every problem found, wrapped in ErrInvalidConfig.
func Validate(c Config) error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil || c.Log.Level == "" {
		errs = append(errs, fmt.Errorf("log.level %q", c.Log.Level))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q: want console or json", c.Log.Format))
	}
	if c.HAL.ISRQueueLen < 1 || c.HAL.ISRQueueLen > 4096 {
		errs = append(errs, fmt.Errorf("hal.isr_queue_len %d: want 1..4096", c.HAL.ISRQueueLen))
	}
	if c.HAL.I2CTimeoutMs < 1 {
		errs = append(errs, fmt.Errorf("hal.i2c_timeout_ms %d: want > 0", c.HAL.I2CTimeoutMs))
	}
	if c.Status.RatePerMin < 0 {
		errs = append(errs, fmt.Errorf("status.rate_per_min %d: want >= 0", c.Status.RatePerMin))
	}
	if c.Heartbeat.IntervalS < 0 {
		errs = append(errs, fmt.Errorf("heartbeat.interval_s %d: want >= 0", c.Heartbeat.IntervalS))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// load reads every source into a fresh koanf instance.
func load(path string) (*koanf.Koanf, Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, Config{}, fmt.Errorf("read env: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := Validate(cfg); err != nil {
		return nil, Config{}, err
	}
	if err := validateLessons(k); err != nil {
		return nil, Config{}, err
	}
	return k, cfg, nil
}

// ResolvePath picks the explicit path, else SUPERKIT_CONFIG. Empty means
// no file.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv(EnvFile)
}

// pinKeys are lesson parameter names that hold a GPIO number.
var pinKeys = map[string]bool{}

func init() {
	for _, k := range []string{
		"pin", "pins", "button", "led", "pin_a", "pin_b", "enable", "dt", "clk", "sw",
		"sdi", "rclk", "srclk", "rs", "e", "d4", "d5", "d6", "d7",
	} {
		pinKeys[k] = true
	}
}

// validateLessons rejects a lesson section that gives one GPIO two roles.
func validateLessons(k *koanf.Koanf) error {
	var errs []error
	for name, raw := range k.Cut(lessonsKey).Raw() {
		sec, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Errorf("lessons.%s: want a mapping", name))
			continue
		}
		seen := map[int]string{}
		for key, v := range sec {
			if !pinKeys[key] {
				continue
			}
			for _, n := range pinValues(v) {
				if prev, dup := seen[n]; dup {
					errs = append(errs, fmt.Errorf("lessons.%s: gpio %d used by both %s and %s", name, n, prev, key))
					continue
				}
				seen[n] = key
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// checkPins walks a params struct by its koanf tags, squashed embeddings
// included, and reports any GPIO held by two pin fields.
func checkPins(section string, params any) error {
	seen := map[int]string{}
	var errs []error
	var walk func(v reflect.Value)
	walk = func(v reflect.Value) {
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return
			}
			v = v.Elem()
		}
		if v.Kind() != reflect.Struct {
			return
		}
		for i := range v.NumField() {
			f := v.Type().Field(i)
			name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
			if f.Anonymous && name == "" {
				walk(v.Field(i))
				continue
			}
			if !pinKeys[name] {
				continue
			}
			for _, n := range fieldInts(v.Field(i)) {
				if prev, dup := seen[n]; dup {
					errs = append(errs, fmt.Errorf("%s: gpio %d used by both %s and %s", section, n, prev, name))
					continue
				}
				seen[n] = name
			}
		}
	}
	walk(reflect.ValueOf(params))
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func fieldInts(v reflect.Value) []int {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return []int{int(v.Int())}
	case reflect.Slice, reflect.Array:
		var out []int
		for i := range v.Len() {
			out = append(out, fieldInts(v.Index(i))...)
		}
		return out
	default:
		return nil
	}
}

func pinValues(v any) []int {
	switch x := v.(type) {
	case int:
		return []int{x}
	case int64:
		return []int{int(x)}
	case float64:
		return []int{int(x)}
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return []int{n}
		}
		return nil
	case []any:
		var out []int
		for _, e := range x {
			out = append(out, pinValues(e)...)
		}
		return out
	default:
		return nil
	}
}
