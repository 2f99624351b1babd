// Package config loads the ambient operator settings this server
// accepts alongside its mandatory argv contract: an optional YAML file
// of cache/logging/concurrency knobs, validated with struct tags.
package config

import (
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dexgs/user-sites/internal/errs"
)

var envVarNameRegexp = regexp.MustCompile(envVarNamePattern)

// EnvVar is the environment variable pointing at an ambient config file,
// checked when no path is passed explicitly to Load.
const EnvVar = "USERSITES_CONFIG"

// ServerConfig holds every knob this server reads. Port and Upstream
// always come from argv (spec.md §6) and are never read from the YAML
// file; the rest fall back to the defaults internal/state defines when
// the file is absent or a field is left unset.
type ServerConfig struct {
	Port     int    `yaml:"-"`
	Upstream string `yaml:"-"`

	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=console json"`

	MaxConcurrentAccessors int           `yaml:"max_concurrent_accessors" validate:"omitempty,min=1"`
	MaxCacheFileBytes      int64         `yaml:"max_cache_file_bytes" validate:"omitempty,min=0"`
	MaxCacheTotalBytes     int64         `yaml:"max_cache_total_bytes" validate:"omitempty,min=0"`
	HysteresisHold         time.Duration `yaml:"hysteresis_hold" validate:"omitempty,min=0"`
}

var (
	validatorInstance *validator.Validate
	validatorOnce     sync.Once
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInstance = validator.New()
	})
	return validatorInstance
}

// Load reads the ambient YAML config. path may be empty, in which case
// EnvVar is consulted; if neither names a file, Load returns an empty
// ServerConfig with no error — the caller's defaults apply untouched.
// Port and Upstream must be set by the caller from argv after Load
// returns; this function never populates them.
func Load(path string) (ServerConfig, error) {
	var cfg ServerConfig

	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errs.Internal("reading ambient config file", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errs.ErrValidation("parsing ambient config file", err)
	}

	if err := getValidator().Struct(&cfg); err != nil {
		return cfg, errs.ErrValidation("validating ambient config file", err)
	}

	return cfg, nil
}

// envVarNamePattern is the POSIX portable environment variable name
// grammar: a letter or underscore, then letters, digits, or underscores.
const envVarNamePattern = `^[A-Za-z_][A-Za-z0-9_]*$`

// ValidateAllowedVariableName reports whether name is a legal entry in
// an allowed_variables file — spec.md §4.5 only describes the filtering
// rules applied once a name is on the whitelist; this ambient check
// rejects malformed entries before they ever reach that filter.
func ValidateAllowedVariableName(name string) error {
	if err := getValidator().Var(name, "required"); err != nil {
		return errs.ErrValidation("allowed_variables entry is empty", err)
	}

	if !envVarNameRegexp.MatchString(name) {
		return errs.ErrValidation("allowed_variables entry is not a valid environment variable name: "+name, nil)
	}

	return nil
}
