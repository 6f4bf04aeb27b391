// Package config loads photofinder settings from a YAML file, PHOTOFINDER_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"photofinder/utils"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding settings,
// e.g. PHOTOFINDER_SEARCH_LIMIT for search.limit
const EnvPrefix = "PHOTOFINDER"

// Settings holds the resolved configuration
type Settings struct {
	Database string `mapstructure:"database"`
	TrashDir string `mapstructure:"trashdir"`

	Log struct {
		Level   string `mapstructure:"level"`
		File    string `mapstructure:"file"`
		Console bool   `mapstructure:"console"`
	} `mapstructure:"log"`

	Duplicates struct {
		Threshold uint `mapstructure:"threshold"`
	} `mapstructure:"duplicates"`

	Search struct {
		Model string `mapstructure:"model"`
		Limit int    `mapstructure:"limit"`
	} `mapstructure:"search"`

	Trash struct {
		MaxAgeDays int `mapstructure:"maxagedays"`
	} `mapstructure:"trash"`

	Scan struct {
		// Workers is the size of the hashing pool; 0 picks one from the CPU count
		Workers int `mapstructure:"workers"`
	} `mapstructure:"scan"`
}

// New returns a viper instance with defaults and environment bindings
func New() *viper.Viper {
	v := viper.New()
	setDefaultConfig(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("database", utils.GetDefaultDatabasePath())
	v.SetDefault("trashdir", utils.GetDefaultTrashDir())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.console", true)

	v.SetDefault("duplicates.threshold", 10)

	v.SetDefault("search.model", "")
	v.SetDefault("search.limit", 20)

	v.SetDefault("trash.maxagedays", 30)

	v.SetDefault("scan.workers", 0)
}

// DefaultConfigPaths lists the directories searched for config.yaml
func DefaultConfigPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "photofinder"))
	}
	return paths
}

// Load reads configFile, or config.yaml from the default paths when
// configFile is empty, and returns validated settings. A missing default
// config file is not an error.
func Load(v *viper.Viper, configFile string) (*Settings, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range DefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// ValidateSettings checks value ranges
func ValidateSettings(s *Settings) error {
	var errs []error
	if s.Database == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	if s.TrashDir == "" {
		errs = append(errs, errors.New("trash directory is empty"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(s.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if s.Search.Limit <= 0 {
		errs = append(errs, fmt.Errorf("search.limit must be positive, got %d", s.Search.Limit))
	}
	if s.Trash.MaxAgeDays < 0 {
		errs = append(errs, fmt.Errorf("trash.maxagedays must not be negative, got %d", s.Trash.MaxAgeDays))
	}
	if s.Scan.Workers < 0 {
		errs = append(errs, fmt.Errorf("scan.workers must not be negative, got %d", s.Scan.Workers))
	}
	return errors.Join(errs...)
}
