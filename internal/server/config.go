package server

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/risk-forecast/internal/config"
	"github.com/iwvelando/risk-forecast/pkg/constants"
	"gopkg.in/yaml.v3"
)

const defaultShutdownTimeout = 15 * time.Second

// Config defines runtime parameters for the HTTP server.
type Config struct {
	Address         string               `yaml:"address"`
	MaxRequestSize  string               `yaml:"maxRequestSize"`
	MaxJobs         int                  `yaml:"maxJobs"`
	Workers         int                  `yaml:"workers"`
	ShutdownTimeout time.Duration        `yaml:"shutdownTimeout"`
	Logging         config.LoggingConfig `yaml:"logging"`
	requestBytes    int64
}

// LoadConfig reads the server configuration at path. An empty path or a
// missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read server config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse server config %s: %w", path, err)
			}
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequestSizeBytes returns the request body limit in bytes.
func (c *Config) RequestSizeBytes() int64 {
	return c.requestBytes
}

// SetRequestSizeBytes overrides the request body limit. Non-positive sizes are
// ignored.
func (c *Config) SetRequestSizeBytes(size int64) {
	if size <= 0 {
		return
	}
	c.requestBytes = size
	c.MaxRequestSize = strconv.FormatInt(size, 10)
}

// normalize fills unset fields with defaults and resolves the request limit.
func (c *Config) normalize() error {
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}
	if c.MaxJobs <= 0 {
		c.MaxJobs = constants.DefaultMaxJobs
	}
	if c.Workers <= 0 {
		c.Workers = constants.DefaultWorkers
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}

	size, err := ParseSize(c.MaxRequestSize)
	if err != nil {
		return fmt.Errorf("invalid maxRequestSize: %w", err)
	}
	if size <= 0 {
		size = constants.DefaultMaxRequestSizeBytes
	}
	c.SetRequestSizeBytes(size)
	return nil
}

// sizeUnits are matched in order, so longer suffixes come first.
var sizeUnits = []struct {
	suffix string
	shift  uint
}{
	{"GB", 30}, {"G", 30},
	{"MB", 20}, {"M", 20},
	{"KB", 10}, {"K", 10},
	{"B", 0},
}

// ParseSize converts a byte count with an optional binary unit suffix
// ("512", "256K", "10MB") into bytes. An empty value yields the default
// request limit.
func ParseSize(value string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(value))
	if s == "" {
		return constants.DefaultMaxRequestSizeBytes, nil
	}

	var shift uint
	for _, unit := range sizeUnits {
		if number, ok := strings.CutSuffix(s, unit.suffix); ok {
			s, shift = strings.TrimSpace(number), unit.shift
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", value, err)
	}
	if n > math.MaxInt64>>shift || n < math.MinInt64>>shift {
		return 0, fmt.Errorf("size %q overflows", value)
	}
	return n << shift, nil
}
