// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	AppName       = "raudio"
	ConfigType    = "yaml"
	DefaultConfig = `# raudio demo CLI configuration

# Backend selection: "malgo", "portaudio", "null", or "" to auto-select
backend: ""

# Device settings
device_index: -1       # -1 for the backend's default device
sample_rate: 48000      # Stream sample rate in Hz
channels: 2             # Number of channels
format: "float32"       # int16, int24, int32, float32, float64
buffer_size: 512        # Frames per period

# Demo tone generator
tone_frequency: 440     # Sine frequency in Hz for the "tone" subcommand
`
)

// Settings holds the demo CLI's configuration, the subset of a stream's
// open parameters a user is likely to want to set from a config file or
// flag rather than hard-code into a host program.
type Settings struct {
	Backend     string  `mapstructure:"backend"`
	DeviceIndex int     `mapstructure:"device_index"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Channels    int     `mapstructure:"channels"`
	Format      string  `mapstructure:"format"`
	BufferSize  int     `mapstructure:"buffer_size"`

	ToneFrequency float64 `mapstructure:"tone_frequency"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/raudio/
func Init() error {
	viper.SetDefault("backend", "")
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 48000)
	viper.SetDefault("channels", 2)
	viper.SetDefault("format", "float32")
	viper.SetDefault("buffer_size", 512)
	viper.SetDefault("tone_frequency", 440)

	viper.SetConfigType(ConfigType)

	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings.
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges.
func (s *Settings) Validate() error {
	var errs []error

	if s.SampleRate < 4000 || s.SampleRate > 384000 {
		errs = append(errs, fmt.Errorf("sample_rate must be between 4000 and 384000 Hz, got %v", s.SampleRate))
	}
	if s.Channels < 1 || s.Channels > 32 {
		errs = append(errs, fmt.Errorf("channels must be between 1 and 32, got %d", s.Channels))
	}
	if s.BufferSize < 16 || s.BufferSize > 16384 {
		errs = append(errs, fmt.Errorf("buffer_size must be between 16 and 16384, got %d", s.BufferSize))
	}

	if s.ToneFrequency <= 0 || s.ToneFrequency >= s.SampleRate/2 {
		errs = append(errs, fmt.Errorf("tone_frequency (%v Hz) must be positive and less than Nyquist frequency (%v Hz)", s.ToneFrequency, s.SampleRate/2))
	}

	validFormats := map[string]bool{
		"int16": true, "int24": true, "int32": true,
		"float32": true, "float64": true,
	}
	if !validFormats[s.Format] {
		errs = append(errs, fmt.Errorf("format must be one of int16, int24, int32, float32, float64, got %q", s.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
