package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	Defaults DefaultsConfig `mapstructure:"defaults"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Play     PlayConfig     `mapstructure:"play"`
	Upload   UploadConfig   `mapstructure:"upload"`
}

// DefaultsConfig holds conversion defaults shared by several commands
type DefaultsConfig struct {
	Sensor   string `mapstructure:"sensor"`
	Encoding string `mapstructure:"encoding"`
	MinSize  int    `mapstructure:"min_size"`
}

// WatchConfig configures the background conversion loop
type WatchConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Workers   int           `mapstructure:"workers"`
	OutputDir string        `mapstructure:"output_dir"`
	StateFile string        `mapstructure:"state_file"`
}

// PlayConfig configures terminal replay
type PlayConfig struct {
	Speed     float64       `mapstructure:"speed"`
	IdleLimit time.Duration `mapstructure:"idle_limit"`
}

// UploadConfig points at an asciicast upload endpoint
type UploadConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Token    string `mapstructure:"token"`
}

// DefaultUploadURL is the public asciinema endpoint
const DefaultUploadURL = "https://asciinema.org/api/asciicasts"

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format: "ndjson",
		Defaults: DefaultsConfig{
			Encoding: "json",
			MinSize:  300,
		},
		Watch: WatchConfig{
			Interval: 10 * time.Second,
			Workers:  4,
		},
		Play: PlayConfig{
			Speed: 1.0,
		},
		Upload: UploadConfig{
			URL: DefaultUploadURL,
		},
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("TTYCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("format", "TTYCAST_FORMAT")
	v.BindEnv("quiet", "TTYCAST_QUIET")
	v.BindEnv("verbose", "TTYCAST_VERBOSE")
	v.BindEnv("defaults.sensor", "TTYCAST_SENSOR")
	v.BindEnv("upload.username", "TTYCAST_UPLOAD_USERNAME")
	v.BindEnv("upload.token", "TTYCAST_UPLOAD_TOKEN")

	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("defaults.sensor", cfg.Defaults.Sensor)
	v.SetDefault("defaults.encoding", cfg.Defaults.Encoding)
	v.SetDefault("defaults.min_size", cfg.Defaults.MinSize)
	v.SetDefault("watch.interval", cfg.Watch.Interval)
	v.SetDefault("watch.workers", cfg.Watch.Workers)
	v.SetDefault("watch.output_dir", cfg.Watch.OutputDir)
	v.SetDefault("watch.state_file", cfg.Watch.StateFile)
	v.SetDefault("play.speed", cfg.Play.Speed)
	v.SetDefault("play.idle_limit", cfg.Play.IdleLimit)
	v.SetDefault("upload.url", cfg.Upload.URL)
	v.SetDefault("upload.username", cfg.Upload.Username)
	v.SetDefault("upload.token", cfg.Upload.Token)
	return v
}

// searchPaths lists config directories, lowest precedence first.
func searchPaths() []string {
	paths := []string{"/etc/ttycast/"}
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "ttycast"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	return append(paths, ".")
}

var configNames = []string{"ttycast", ".ttycast", ".ttycastrc"}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := newViper()

	for _, name := range configNames {
		v.SetConfigName(name)
		for _, p := range searchPaths() {
			v.AddConfigPath(p)
		}
		err := v.ReadInConfig()
		if err == nil {
			break
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error occurred
			return nil, err
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFile returns the path to the config file that would be loaded
func ConfigFile() string {
	for _, name := range configNames {
		v := viper.New()
		v.SetConfigType("yaml")
		v.SetConfigName(name)
		for _, p := range searchPaths() {
			v.AddConfigPath(p)
		}
		if err := v.ReadInConfig(); err == nil {
			return v.ConfigFileUsed()
		}
	}
	return ""
}

// DefaultStateFile is where watch records converted capture hashes
func DefaultStateFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ttycast", "watch-state.json"), nil
}
