// Package config loads the daemon and CLI configuration: an optional YAML
// file overlaid by RUSTSIBLE_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/organicnz/rustsible-gui/pkg/lib"
)

const (
	DefaultAddress         = "localhost:50051"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultRetainRuns      = time.Hour
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RUSTSIBLE_"

// TLS holds PEM encoded material, not file paths.
type TLS struct {
	Key  string `yaml:"key"`
	Cert string `yaml:"cert"`
	CA   string `yaml:"ca"`
}

func (t TLS) Complete() bool {
	return strings.TrimSpace(t.Key) != "" && strings.TrimSpace(t.Cert) != "" && strings.TrimSpace(t.CA) != ""
}

type Config struct {
	// Address is where the daemon listens and the CLI dials.
	Address string `yaml:"address" validate:"required,hostname_port"`
	TLS     TLS    `yaml:"tls"`
	// MetricsAddress serves /metrics when set.
	MetricsAddress string `yaml:"metrics_address" validate:"omitempty,hostname_port"`
	// SettingsPath overrides the provisioning settings file location.
	SettingsPath    string        `yaml:"settings"`
	LogLevel        string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	// ReapOnStart runs the startup reaper before serving.
	ReapOnStart bool `yaml:"reap_on_start"`
	// RetainRuns is how long a finished run's events stay readable.
	RetainRuns time.Duration `yaml:"retain_runs" validate:"gt=0"`
}

func Default() Config {
	return Config{
		Address:         DefaultAddress,
		LogLevel:        "info",
		ShutdownTimeout: DefaultShutdownTimeout,
		ReapOnStart:     true,
		RetainRuns:      DefaultRetainRuns,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &lib.InvalidConfigError{Field: fe.Field(), Reason: fmt.Sprintf("failed %q check (value %v)", fe.Tag(), fe.Value())}
	}
	return err
}

// RequireTLS reports an error unless all mTLS material is present.
func (c Config) RequireTLS() error {
	if !c.TLS.Complete() {
		return &lib.InvalidConfigError{
			Field:  "tls",
			Reason: "require " + EnvPrefix + "TLS_KEY, " + EnvPrefix + "TLS_CERT, " + EnvPrefix + "CA_TLS_CERT",
		}
	}
	return nil
}

// Load reads path (skipped when empty), applies the environment and
// validates the result.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := decode(data, &c); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := c.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func decode(data []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	str("ADDRESS", &c.Address)
	str("TLS_KEY", &c.TLS.Key)
	str("TLS_CERT", &c.TLS.Cert)
	str("CA_TLS_CERT", &c.TLS.CA)
	str("METRICS_ADDRESS", &c.MetricsAddress)
	str("SETTINGS", &c.SettingsPath)
	str("LOG_LEVEL", &c.LogLevel)
	c.LogLevel = strings.ToLower(c.LogLevel)

	for name, dst := range map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
		"RETAIN_RUNS":      &c.RetainRuns,
	} {
		v, ok := lookup(EnvPrefix + name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return &lib.InvalidConfigError{Field: EnvPrefix + name, Reason: err.Error()}
		}
		*dst = d
	}

	if v, ok := lookup(EnvPrefix + "REAP_ON_START"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &lib.InvalidConfigError{Field: EnvPrefix + "REAP_ON_START", Reason: err.Error()}
		}
		c.ReapOnStart = b
	}
	return nil
}
