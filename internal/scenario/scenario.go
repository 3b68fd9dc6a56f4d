// Package scenario loads a body catalog together with its event definitions
// from a configuration file.
package scenario

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/catalog"
	"github.com/MashhuMaximilian/Sebaka-Sa-Ditoro-A-celestial-Symphony-sub000/internal/events"
)

//go:embed default.yaml
var defaultYAML []byte

// Scenario is a catalog plus the events defined against it.
type Scenario struct {
	Catalog catalog.Catalog     `mapstructure:",squash"`
	Events  []events.Definition `mapstructure:"events"`
}

// Registry compiles the scenario's events.
func (s Scenario) Registry() (*events.Registry, error) {
	return events.NewRegistry(s.Events)
}

// LoadFile reads a YAML, JSON or TOML scenario. The format follows the file
// extension.
func LoadFile(path string) (Scenario, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Scenario{}, fmt.Errorf("reading scenario %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the embedded default scenario.
func Default() (Scenario, error) {
	s, err := parse(defaultYAML, "yaml")
	if err != nil {
		return Scenario{}, fmt.Errorf("default scenario: %w", err)
	}
	return s, nil
}

// LoadURL fetches and decodes a scenario served over HTTP.
func LoadURL(ctx context.Context, sourceURL string, logger *slog.Logger) (Scenario, error) {
	data, format, err := NewFetcher(sourceURL, logger).Fetch(ctx)
	if err != nil {
		return Scenario{}, err
	}
	s, err := parse(data, format)
	if err != nil {
		return Scenario{}, fmt.Errorf("scenario %s: %w", sourceURL, err)
	}
	return s, nil
}

// Load reads source, which may be a file path or an http(s) URL. An empty
// source is the default scenario.
func Load(ctx context.Context, source string, logger *slog.Logger) (Scenario, error) {
	switch {
	case source == "":
		return Default()
	case isURL(source):
		return LoadURL(ctx, source, logger)
	default:
		return LoadFile(source)
	}
}

func parse(data []byte, format string) (Scenario, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return Scenario{}, fmt.Errorf("reading %s: %w", format, err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	ts := catalog.DefaultTimeScale()
	v.SetDefault("observer", catalog.DefaultObserver)
	v.SetDefault("time.hours_per_day", ts.HoursPerDay)
	v.SetDefault("time.days_per_year", ts.DaysPerYear)
	return v
}

func decode(v *viper.Viper) (Scenario, error) {
	var s Scenario
	if err := v.Unmarshal(&s); err != nil {
		return Scenario{}, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := s.Catalog.Validate(); err != nil {
		return Scenario{}, fmt.Errorf("invalid catalog: %w", err)
	}
	if _, err := s.Registry(); err != nil {
		return Scenario{}, fmt.Errorf("invalid events: %w", err)
	}
	return s, nil
}
