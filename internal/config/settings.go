package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/vk/benchgrid/internal/errdefs"
)

// EnvPrefix prefixes the environment variables overriding settings, e.g.
// BENCHGRID_OUTPUT or BENCHGRID_LOG_LEVEL.
const EnvPrefix = "BENCHGRID"

// Settings are the run options merged from defaults, the optional settings
// file, the environment and the command line.
type Settings struct {
	Profile    string        `mapstructure:"profile"`
	Output     string        `mapstructure:"output"`
	Override   bool          `mapstructure:"override"`
	DryRun     bool          `mapstructure:"dry_run"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Successful bool          `mapstructure:"successful"`
	Retries    int           `mapstructure:"retries"`

	Print       string `mapstructure:"print"`
	PrintFilter string `mapstructure:"print_filter"`
	RunFilter   string `mapstructure:"run_filter"`

	// History enables the timing database; HistoryPath overrides its
	// location inside the output directory.
	History     bool   `mapstructure:"history"`
	HistoryPath string `mapstructure:"history_path"`

	ReportURI       string `mapstructure:"report_uri"`
	HealthcheckPort int    `mapstructure:"healthcheck_port"`

	// SoftTimeout and HardTimeout apply to jobs that do not set their own.
	SoftTimeout time.Duration `mapstructure:"soft_timeout"`
	HardTimeout time.Duration `mapstructure:"hard_timeout"`
	// TimeCoef scales mean+tolerance into a soft timeout.
	TimeCoef float64 `mapstructure:"time_coef"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output", ".benchgrid")
	v.SetDefault("print", "errors")
	v.SetDefault("history", true)
	v.SetDefault("soft_timeout", 0)
	v.SetDefault("hard_timeout", time.Hour)
	v.SetDefault("time_coef", 1.5)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// NewViper returns a viper instance with defaults and environment binding.
// A non-empty settingsFile is read on top of the defaults.
func NewViper(settingsFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if settingsFile != "" {
		v.SetConfigFile(settingsFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errdefs.Config(errors.Wrapf(err, "failed to read settings file %s", settingsFile))
		}
	}
	return v, nil
}

// LoadSettings decodes v into Settings and validates them.
func LoadSettings(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errdefs.Config(errors.Wrap(err, "failed to decode settings"))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings that cannot be checked by their consumers.
func (s *Settings) Validate() error {
	switch {
	case s.Profile == "":
		return errdefs.Config(errors.WithHint(errors.New("no profile given"), "pass --profile <file>"))
	case s.Output == "":
		return errdefs.Configf("output directory must not be empty")
	case s.Retries < 0:
		return errdefs.Configf("retries must be positive, got %d", s.Retries)
	case s.Timeout < 0 || s.SoftTimeout < 0 || s.HardTimeout < 0:
		return errdefs.Configf("timeouts must be positive")
	case s.TimeCoef <= 0:
		return errdefs.Configf("time_coef must be positive, got %g", s.TimeCoef)
	}
	return nil
}
