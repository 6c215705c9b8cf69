// Package config loads runtime settings from defaults, an optional YAML
// file, an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/justestif/go-spotify-listening-stats/internal/auth"
	"github.com/justestif/go-spotify-listening-stats/internal/dataset"
	"github.com/justestif/go-spotify-listening-stats/internal/history"
	"github.com/justestif/go-spotify-listening-stats/internal/playlists"
)

// EnvPrefix prefixes every environment override, e.g. LISTENING_STATS_DATA_DIR.
const EnvPrefix = "LISTENING_STATS"

// Config is the full runtime configuration.
type Config struct {
	Data struct {
		Dir            string   `mapstructure:"dir"`
		HistoryPattern string   `mapstructure:"history_pattern"`
		PlaylistFile   string   `mapstructure:"playlist_file"`
		Excluded       []string `mapstructure:"excluded_playlists"`
		Watch          bool     `mapstructure:"watch"`
	} `mapstructure:"data"`
	Cache struct {
		Dir        string        `mapstructure:"dir"`
		DatasetTTL time.Duration `mapstructure:"dataset_ttl"`
	} `mapstructure:"cache"`
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Spotify struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		TrackLimit   int    `mapstructure:"track_limit"`
	} `mapstructure:"spotify"`
}

// Options say where to look for optional files.
type Options struct {
	ConfigFile string // explicit YAML file; empty searches for listening-stats.yaml
	EnvFile    string // .env file; empty means ".env"
}

// Load builds the configuration. Missing optional files are not errors.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Credentials are read without the prefix.
	if err := v.BindEnv("spotify.client_id", auth.EnvClientID); err != nil {
		return nil, fmt.Errorf("binding client id: %w", err)
	}
	if err := v.BindEnv("spotify.client_secret", auth.EnvClientSecret); err != nil {
		return nil, fmt.Errorf("binding client secret: %w", err)
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("listening-stats")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Cache.DatasetTTL <= 0 {
		return nil, fmt.Errorf("cache.dataset_ttl must be positive, got %s", cfg.Cache.DatasetTTL)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.history_pattern", history.DefaultPattern)
	v.SetDefault("data.playlist_file", playlists.DefaultFile)
	v.SetDefault("data.excluded_playlists", playlists.DefaultExcluded)
	v.SetDefault("data.watch", true)

	v.SetDefault("cache.dir", ".cache")
	v.SetDefault("cache.dataset_ttl", dataset.DefaultTTL)

	v.SetDefault("server.addr", "127.0.0.1:8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")
	v.SetDefault("spotify.track_limit", 0)
}

// Credentials returns the Spotify app credentials.
func (c *Config) Credentials() auth.Credentials {
	return auth.Credentials{
		ClientID:     c.Spotify.ClientID,
		ClientSecret: c.Spotify.ClientSecret,
	}
}

// Dataset returns the export file locations.
func (c *Config) Dataset() dataset.Config {
	return dataset.Config{
		DataDir:        c.Data.Dir,
		HistoryPattern: c.Data.HistoryPattern,
		PlaylistFile:   c.Data.PlaylistFile,
		Excluded:       c.Data.Excluded,
	}
}

// ConfigureLogger applies the log level and format to l.
func (c *Config) ConfigureLogger(l *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	l.SetLevel(level)

	switch strings.ToLower(c.Log.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}
