package types

import (
	"errors"
	"time"
)

// Config holds backend selection and parameters for opening a Cache.
type Config struct {
	Backend        string        `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir        string        `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	SizeLimitBytes int64         `json:"size_limit_bytes" yaml:"size_limit_bytes" mapstructure:"size_limit_bytes"`
	SweepInterval  time.Duration `json:"sweep_interval" yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Config validation errors.
var (
	ErrBackendEmpty         = errors.New("backend must not be empty")
	ErrBackendUnknown       = errors.New("unknown backend")
	ErrSizeLimitInvalid     = errors.New("size limit must not be negative")
	ErrSweepIntervalInvalid = errors.New("sweep interval must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.SizeLimitBytes < 0 {
		return ErrSizeLimitInvalid
	}
	if c.SweepInterval < 0 {
		return ErrSweepIntervalInvalid
	}
	return nil
}
