// Package config defines the data structures related to configuration and
// includes functions for loading, validating, and converting the config into
// simulation requests.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/iwvelando/risk-forecast/pkg/constants"
	"github.com/iwvelando/risk-forecast/pkg/distribution"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for risk-forecast.
type Configuration struct {
	Project    Project
	Simulation SimulationConfig
	Sampling   SamplingConfig
	Risks      []Risk
	Repository RepositoryConfig `yaml:"repository,omitempty"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	Output     OutputConfig     `yaml:"output,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, json
}

// RepositoryConfig selects where risks and settings are read from when
// simulating by project revision.
type RepositoryConfig struct {
	Driver string `yaml:"driver,omitempty" validate:"omitempty,oneof=config sqlite"`
	DSN    string `yaml:"dsn,omitempty"`
}

// Project identifies the estimate being analyzed.
type Project struct {
	Name     string
	Revision string
	// Base is the deterministic, risk-free baseline total.
	Base float64
}

// SimulationConfig holds the per-run settings.
type SimulationConfig struct {
	Iterations       int     `validate:"gte=1"`
	TargetPercentile int     `validate:"oneof=50 70 80 85 90 95"`
	Seed             *uint64 `yaml:"seed,omitempty"`
	HistogramBins    int     `validate:"gte=0,lte=10000"`
	CurvePoints      int     `validate:"gte=0,lte=100000"`
	Workers          int     `validate:"gte=0,lte=1024"`
}

// SamplingConfig holds the constants that turn three-point estimates into
// distribution parameters.
type SamplingConfig struct {
	PERTLambda  float64 `validate:"gte=0"`
	NormalZSpan float64 `validate:"gte=0"`
	// NormalFloor clamps normal-like samples from below, except for risks whose
	// p50 is already below it; ignored when AllowNegativeNormal is set.
	NormalFloor         float64
	AllowNegativeNormal bool
}

var validate = validator.New()

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("simulation.iterations", constants.DefaultIterations)
	v.SetDefault("simulation.targetPercentile", constants.DefaultTargetPercentile)
	v.SetDefault("simulation.workers", constants.DefaultWorkers)
	v.SetDefault("sampling.pertLambda", distribution.DefaultPERTLambda)
	v.SetDefault("sampling.normalZSpan", distribution.DefaultNormalZSpan)
	v.SetDefault("repository.driver", constants.RepositoryDriverConfig)
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Validate enforces the structural constraints of the simulation, sampling, and
// repository blocks. Per-risk semantics are validated by the engine so that
// errors carry the offending risk id.
func (c *Configuration) Validate() error {
	if err := validate.Struct(c.Simulation); err != nil {
		return fmt.Errorf("invalid simulation settings: %w", err)
	}
	if err := validate.Struct(c.Sampling); err != nil {
		return fmt.Errorf("invalid sampling settings: %w", err)
	}
	if err := validate.Struct(c.Repository); err != nil {
		return fmt.Errorf("invalid repository settings: %w", err)
	}
	return nil
}
