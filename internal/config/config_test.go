// Package config_test tests the configuration loading for epub-narrator.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/epub-narrator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultServiceURL, cfg.TTS.ServiceURL)
	assert.Equal(t, config.DefaultVoice, cfg.TTS.Voice)
	assert.InEpsilon(t, config.DefaultSpeed, cfg.TTS.Speed, 0.001)
	assert.Equal(t, config.DefaultSplitPattern, cfg.TTS.SplitPattern)
	assert.Equal(t, config.DefaultMinChapterChars, cfg.Book.MinChapterChars)
	assert.Equal(t, config.DefaultBitrateKbps, cfg.Output.BitrateKbps)
	assert.False(t, cfg.Output.TagAudio)
	assert.False(t, cfg.Output.PlayAudio)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	tomlData := `
[book]
input_path = "books/woman-in-white.epub"
min_chapter_chars = 80

[tts]
service_url = "http://127.0.0.1:9000"
voice = "af_heart"
speed = 1.25
split_pattern = '\n\n+'
timeout_seconds = 120

[output]
dir = "out"
tag_audio = true
play_audio = false
bitrate_kbps = 96
`

	path := filepath.Join(t.TempDir(), "project.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlData), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "books/woman-in-white.epub", cfg.Book.InputPath)
	assert.Equal(t, 80, cfg.Book.MinChapterChars)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.TTS.ServiceURL)
	assert.Equal(t, "af_heart", cfg.TTS.Voice)
	assert.InEpsilon(t, 1.25, cfg.TTS.Speed, 0.001)
	assert.Equal(t, 120, cfg.TTS.TimeoutSeconds)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.True(t, cfg.Output.TagAudio)
	assert.Equal(t, 96, cfg.Output.BitrateKbps)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{
			name:    "empty voice",
			mutate:  func(cfg *config.Config) { cfg.TTS.Voice = "" },
			wantErr: config.ErrVoiceEmpty,
		},
		{
			name:    "zero speed",
			mutate:  func(cfg *config.Config) { cfg.TTS.Speed = 0 },
			wantErr: config.ErrSpeedRange,
		},
		{
			name:    "excessive speed",
			mutate:  func(cfg *config.Config) { cfg.TTS.Speed = 5.0 },
			wantErr: config.ErrSpeedRange,
		},
		{
			name:    "broken split pattern",
			mutate:  func(cfg *config.Config) { cfg.TTS.SplitPattern = "([" },
			wantErr: config.ErrSplitPattern,
		},
		{
			name:    "negative min chars",
			mutate:  func(cfg *config.Config) { cfg.Book.MinChapterChars = -1 },
			wantErr: config.ErrMinChapterChars,
		},
		{
			name:    "empty output dir",
			mutate:  func(cfg *config.Config) { cfg.Output.Dir = "" },
			wantErr: config.ErrOutputDirEmpty,
		},
		{
			name:    "bitrate too low",
			mutate:  func(cfg *config.Config) { cfg.Output.BitrateKbps = 4 },
			wantErr: config.ErrBitrateRange,
		},
		{
			name:    "non-positive timeout",
			mutate:  func(cfg *config.Config) { cfg.TTS.TimeoutSeconds = 0 },
			wantErr: config.ErrTimeoutNonPositive,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			testCase.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}
