// Package config provides the configuration structure for epub-narrator.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultServiceURL      = "http://localhost:8000"
	DefaultVoice           = "bm_daniel"
	DefaultSpeed           = 1.0
	DefaultSplitPattern    = `\n\n+`
	DefaultTimeoutSeconds  = 300
	DefaultMinChapterChars = 50
	DefaultBitrateKbps     = 64
	DefaultOutputDir       = "audiobook"
)

// Validation limits.
const (
	maxSpeed       = 4.0
	minBitrateKbps = 8
	maxBitrateKbps = 320
)

// Static validation errors.
var (
	ErrVoiceEmpty         = errors.New("voice cannot be empty")
	ErrSpeedRange         = errors.New("speed must be greater than 0 and at most 4.0")
	ErrSplitPattern       = errors.New("split pattern is not a valid regular expression")
	ErrMinChapterChars    = errors.New("min chapter chars must be non-negative")
	ErrBitrateRange       = errors.New("bitrate must be between 8 and 320 kbit/s")
	ErrTimeoutNonPositive = errors.New("timeout seconds must be positive")
	ErrOutputDirEmpty     = errors.New("output directory cannot be empty")
)

// BookConfig holds the input-book settings.
type BookConfig struct {
	InputPath       string `toml:"input_path"`
	MinChapterChars int    `toml:"min_chapter_chars"`
}

// TTSConfig holds the settings for the speech synthesis service.
type TTSConfig struct {
	ServiceURL     string  `toml:"service_url"`
	Voice          string  `toml:"voice"`
	Speed          float64 `toml:"speed"`
	SplitPattern   string  `toml:"split_pattern"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// OutputConfig holds the settings for produced audio files.
type OutputConfig struct {
	Dir         string `toml:"dir"`
	TagAudio    bool   `toml:"tag_audio"`
	PlayAudio   bool   `toml:"play_audio"`
	BitrateKbps int    `toml:"bitrate_kbps"`
}

// LoggingConfig holds the configuration for file logging.
type LoggingConfig struct {
	LogDir string `toml:"log_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Book    BookConfig    `toml:"book"`
	TTS     TTSConfig     `toml:"tts"`
	Output  OutputConfig  `toml:"output"`
	Logging LoggingConfig `toml:"logging"`
}

// Default returns a configuration populated with every default value.
// A configuration file is optional; the defaults describe a complete run.
func Default() *Config {
	return &Config{
		Book: BookConfig{
			InputPath:       "",
			MinChapterChars: DefaultMinChapterChars,
		},
		TTS: TTSConfig{
			ServiceURL:     DefaultServiceURL,
			Voice:          DefaultVoice,
			Speed:          DefaultSpeed,
			SplitPattern:   DefaultSplitPattern,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Output: OutputConfig{
			Dir:         DefaultOutputDir,
			TagAudio:    false,
			PlayAudio:   false,
			BitrateKbps: DefaultBitrateKbps,
		},
		Logging: LoggingConfig{
			LogDir: os.TempDir(),
		},
	}
}

// Load returns the default configuration, overlaid with values from the TOML
// file at path when path is non-empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	err = toml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.TTS.Voice == "" {
		return ErrVoiceEmpty
	}

	if c.TTS.Speed <= 0 || c.TTS.Speed > maxSpeed {
		return fmt.Errorf("%w: got %.2f", ErrSpeedRange, c.TTS.Speed)
	}

	_, compileErr := regexp.Compile(c.TTS.SplitPattern)
	if compileErr != nil {
		return fmt.Errorf("%w: %q", ErrSplitPattern, c.TTS.SplitPattern)
	}

	if c.TTS.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: got %d", ErrTimeoutNonPositive, c.TTS.TimeoutSeconds)
	}

	if c.Book.MinChapterChars < 0 {
		return fmt.Errorf("%w: got %d", ErrMinChapterChars, c.Book.MinChapterChars)
	}

	if c.Output.Dir == "" {
		return ErrOutputDirEmpty
	}

	if c.Output.BitrateKbps < minBitrateKbps || c.Output.BitrateKbps > maxBitrateKbps {
		return fmt.Errorf("%w: got %d", ErrBitrateRange, c.Output.BitrateKbps)
	}

	return nil
}
