package player

import (
	"fmt"
	"strings"
	"time"
)

// Rate bounds accepted from configuration. Values outside are clamped, not
// rejected, so a stale persisted rate never blocks playback.
const (
	MinRate = 0.5
	MaxRate = 3.0
)

// Engine names accepted in configuration.
const (
	EngineRemote = "remote"
	EngineLocal  = "local"
	EngineMock   = "mock"
)

// Config contains all playback engine configuration options.
type Config struct {
	// Engine selects the preferred synthesis backend: remote, local or mock.
	// The remote engine additionally requires a credential; without one the
	// selection falls back to local.
	Engine string `yaml:"engine" env:"LECTERN_ENGINE"`

	// Rate is the playback rate multiplier, persisted across sessions by
	// the caller and loaded as the initial rate.
	Rate float64 `yaml:"rate" env:"LECTERN_RATE"`

	// Lookahead is how many paragraphs ahead of the current position are
	// kept warm in the render cache.
	Lookahead int `yaml:"lookahead" env:"LECTERN_LOOKAHEAD"`

	// MaxParagraphChars is the synthesis request ceiling. Paragraphs above
	// it are reported, never silently skipped.
	MaxParagraphChars int `yaml:"max_paragraph_chars" env:"LECTERN_MAX_PARAGRAPH_CHARS"`

	// SampleRate of the output device.
	SampleRate int `yaml:"sample_rate" env:"LECTERN_SAMPLE_RATE"`

	// CacheDir overrides where rendered audio is spilled. Empty means the
	// user cache directory.
	CacheDir string `yaml:"cache_dir" env:"LECTERN_CACHE_DIR"`

	Remote RemoteConfig `yaml:"remote"`
	Local  LocalConfig  `yaml:"local"`
}

// RemoteConfig contains network synthesis settings.
type RemoteConfig struct {
	APIKey  string        `yaml:"api_key" env:"LECTERN_REMOTE_API_KEY"`
	Model   string        `yaml:"model" env:"LECTERN_REMOTE_MODEL"`
	Voice   string        `yaml:"voice" env:"LECTERN_REMOTE_VOICE"`
	Timeout time.Duration `yaml:"timeout" env:"LECTERN_REMOTE_TIMEOUT"`
}

// LocalConfig contains on-device synthesis settings for the piper binary.
type LocalConfig struct {
	Binary    string `yaml:"binary" env:"LECTERN_LOCAL_BINARY"`
	Model     string `yaml:"model" env:"LECTERN_LOCAL_MODEL"`
	DataDir   string `yaml:"data_dir" env:"LECTERN_LOCAL_DATA_DIR"`
	SpeakerID int    `yaml:"speaker_id" env:"LECTERN_LOCAL_SPEAKER_ID"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Engine:            EngineRemote,
		Rate:              1.0,
		Lookahead:         2,
		MaxParagraphChars: 4096,
		SampleRate:        44100,
		Remote: RemoteConfig{
			Model:   "tts-1",
			Voice:   "onyx",
			Timeout: 30 * time.Second,
		},
		Local: LocalConfig{
			Binary: "piper",
			Model:  "en_US-lessac-medium",
		},
	}
}

// ClampRate bounds a rate multiplier into the supported range.
func ClampRate(rate float64) float64 {
	if rate < MinRate {
		return MinRate
	}
	if rate > MaxRate {
		return MaxRate
	}
	return rate
}

// Validate normalizes the configuration, clamping numeric fields and
// rejecting unknown engine names.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Engine)) {
	case EngineRemote, EngineLocal, EngineMock:
		c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	case "":
		c.Engine = EngineRemote
	default:
		return fmt.Errorf("unknown engine %q: use %s, %s or %s", c.Engine, EngineRemote, EngineLocal, EngineMock)
	}

	c.Rate = ClampRate(c.Rate)

	if c.Lookahead < 0 {
		c.Lookahead = 0
	}
	if c.Lookahead > 10 {
		c.Lookahead = 10
	}
	if c.MaxParagraphChars <= 0 {
		c.MaxParagraphChars = 4096
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 44100
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = 30 * time.Second
	}
	return nil
}

// HasCredential reports whether the remote engine can authenticate.
func (c *Config) HasCredential() bool {
	return strings.TrimSpace(c.Remote.APIKey) != ""
}
