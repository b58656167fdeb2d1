package player

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fsnotify/fsnotify"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LoadConfig builds the effective configuration: defaults, then the viper
// config file, then environment variables. The caller is expected to have
// pointed viper at its config file already.
func LoadConfig() (Config, error) {
	cfg := loadConfigFromViper()

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}

	if cfg.CacheDir != "" {
		expanded, err := homedir.Expand(cfg.CacheDir)
		if err != nil {
			return cfg, fmt.Errorf("expanding cache dir: %w", err)
		}
		cfg.CacheDir = expanded
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadConfigFromViper overlays the config file onto defaults. Only keys the
// file actually sets are applied.
func loadConfigFromViper() Config {
	cfg := DefaultConfig()

	if viper.IsSet("engine") {
		cfg.Engine = viper.GetString("engine")
	}
	if viper.IsSet("rate") {
		cfg.Rate = viper.GetFloat64("rate")
	}
	if viper.IsSet("lookahead") {
		cfg.Lookahead = viper.GetInt("lookahead")
	}
	if viper.IsSet("max_paragraph_chars") {
		cfg.MaxParagraphChars = viper.GetInt("max_paragraph_chars")
	}
	if viper.IsSet("sample_rate") {
		cfg.SampleRate = viper.GetInt("sample_rate")
	}
	if viper.IsSet("cache_dir") {
		cfg.CacheDir = viper.GetString("cache_dir")
	}

	if viper.IsSet("remote.api_key") {
		cfg.Remote.APIKey = viper.GetString("remote.api_key")
	}
	if viper.IsSet("remote.model") {
		cfg.Remote.Model = viper.GetString("remote.model")
	}
	if viper.IsSet("remote.voice") {
		cfg.Remote.Voice = viper.GetString("remote.voice")
	}
	if viper.IsSet("remote.timeout") {
		if d, err := time.ParseDuration(viper.GetString("remote.timeout")); err == nil {
			cfg.Remote.Timeout = d
		}
	}

	if viper.IsSet("local.binary") {
		cfg.Local.Binary = viper.GetString("local.binary")
	}
	if viper.IsSet("local.model") {
		cfg.Local.Model = viper.GetString("local.model")
	}
	if viper.IsSet("local.data_dir") {
		cfg.Local.DataDir = viper.GetString("local.data_dir")
	}
	if viper.IsSet("local.speaker_id") {
		cfg.Local.SpeakerID = viper.GetInt("local.speaker_id")
	}

	return cfg
}

// WatchRate re-reads the rate whenever the config file changes and hands the
// clamped value to onChange. Live rate updates apply mid-resource on the
// remote path and from the next utterance on the local one.
func WatchRate(onChange func(rate float64)) {
	viper.OnConfigChange(func(fsnotify.Event) {
		if viper.IsSet("rate") {
			onChange(ClampRate(viper.GetFloat64("rate")))
		}
	})
	viper.WatchConfig()
}
