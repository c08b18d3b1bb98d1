package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty" mapstructure:"level"`
	Format string `json:"format,omitempty" yaml:"format,omitempty" mapstructure:"format"` // console or json
	File   string `json:"file,omitempty" yaml:"file,omitempty" mapstructure:"file"`
}

// Config represents the capis configuration
type Config struct {
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty" mapstructure:"timeout"` // milliseconds, 0 means none
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty" mapstructure:"followRedirects"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty" mapstructure:"maxRedirects"`
	MaxBodyBytes    int               `json:"maxBodyBytes,omitempty" yaml:"maxBodyBytes,omitempty" mapstructure:"maxBodyBytes"`
	Rate            float64           `json:"rate,omitempty" yaml:"rate,omitempty" mapstructure:"rate"` // requests per second, 0 means unpaced
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" mapstructure:"headers"`
	Output          string            `json:"output,omitempty" yaml:"output,omitempty" mapstructure:"output"`
	OutputFile      string            `json:"outputFile,omitempty" yaml:"outputFile,omitempty" mapstructure:"outputFile"`
	Verbose         *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty" mapstructure:"verbose"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty" mapstructure:"noColor"`
	Log             LogConfig         `json:"log,omitempty" yaml:"log,omitempty" mapstructure:"log"`
	History         string            `json:"history,omitempty" yaml:"history,omitempty" mapstructure:"history"`
	MetricsFile     string            `json:"metricsFile,omitempty" yaml:"metricsFile,omitempty" mapstructure:"metricsFile"`
	Schedule        string            `json:"schedule,omitempty" yaml:"schedule,omitempty" mapstructure:"schedule"`
}

// EnvPrefix prefixes every environment override, e.g. CAPIS_TIMEOUT
const EnvPrefix = "CAPIS"

// OutputFormats lists the reporters the run command accepts
var OutputFormats = []string{"console", "json", "junit", "tap"}

// boolPtr returns a pointer to a bool value
func boolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".capis.yaml",
	"capis.yaml",
	".capis.json",
	"capis.json",
}

// LoadConfig loads configuration from the specified path or searches the
// working directory for a config file
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return FindAndLoadConfig(".")
	}
	v, err := fileViper(path)
	if err != nil {
		return nil, err
	}
	return load(v)
}

// FindAndLoadConfig searches for a config file in the given directory.
// Environment overrides apply even when no file is found.
func FindAndLoadConfig(dir string) (*Config, error) {
	v, err := fileViper(findConfigFile(dir))
	if err != nil {
		return nil, err
	}
	return load(v)
}

func findConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// fileViper returns a viper reading path, or only env and defaults when
// path is empty
func fileViper(path string) (*viper.Viper, error) {
	v := newViper()
	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return v, nil
}

// FlagBindings maps config keys to the run command flags that override them
var FlagBindings = map[string]string{
	"rate":         "rate",
	"maxBodyBytes": "max-body-bytes",
	"output":       "output",
	"outputFile":   "output-file",
	"verbose":      "verbose",
	"noColor":      "no-color",
	"history":      "history",
	"metricsFile":  "metrics-file",
	"schedule":     "schedule",
}

// LoadConfigWithFlags layers flags over the file and environment. Only
// flags set on the command line take effect; untouched flags keep the file,
// environment or default value.
func LoadConfigWithFlags(path string, flags *pflag.FlagSet) (*Config, error) {
	if path == "" {
		path = findConfigFile(".")
	}
	v, err := fileViper(path)
	if err != nil {
		return nil, err
	}

	if flags != nil {
		for key, name := range FlagBindings {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	return load(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// keys only reach Unmarshal through AutomaticEnv once viper knows them
	d := DefaultConfig()
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("followRedirects", d.GetFollowRedirects())
	v.SetDefault("maxRedirects", d.MaxRedirects)
	v.SetDefault("maxBodyBytes", d.MaxBodyBytes)
	v.SetDefault("rate", d.Rate)
	v.SetDefault("output", d.Output)
	v.SetDefault("outputFile", d.OutputFile)
	v.SetDefault("verbose", d.GetVerbose())
	v.SetDefault("noColor", d.GetNoColor())
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("history", d.History)
	v.SetDefault("metricsFile", d.MetricsFile)
	v.SetDefault("schedule", d.Schedule)
	return v
}

func load(v *viper.Viper) (*Config, error) {
	config := DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the run command cannot honor
func (c *Config) Validate() error {
	var problems []string

	if c.Timeout < 0 {
		problems = append(problems, "timeout must not be negative")
	}
	if c.MaxRedirects < 0 {
		problems = append(problems, "maxRedirects must not be negative")
	}
	if c.MaxBodyBytes < 0 {
		problems = append(problems, "maxBodyBytes must not be negative")
	}
	if c.Rate < 0 {
		problems = append(problems, "rate must not be negative")
	}
	if c.Output != "" && !isOutputFormat(c.Output) {
		problems = append(problems, fmt.Sprintf("unknown output %q (want one of %s)", c.Output, strings.Join(OutputFormats, ", ")))
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

func isOutputFormat(name string) bool {
	for _, f := range OutputFormats {
		if f == name {
			return true
		}
	}
	return false
}

// SaveConfig saves the configuration to a YAML file
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
