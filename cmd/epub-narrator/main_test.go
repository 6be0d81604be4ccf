package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/epub-narrator/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// defaultTestFlags mirrors parseFlags with no arguments given: every
// overriding flag left at its sentinel.
func defaultTestFlags() appFlags {
	return appFlags{
		input:      unsetString,
		output:     unsetString,
		voice:      unsetString,
		speed:      unsetNumber,
		config:     "",
		minChars:   unsetNumber,
		serviceURL: unsetString,
		tag:        false,
		play:       false,
		verbose:    false,
	}
}

func TestExecuteNoInputPath(t *testing.T) {
	t.Parallel()

	outputDir := filepath.Join(t.TempDir(), "audiobook")

	flags := defaultTestFlags()
	flags.output = outputDir

	// No input configured: a printed message and a clean return, with no
	// side effects on the filesystem.
	require.NoError(t, execute(flags))

	_, err := os.Stat(outputDir)
	require.True(t, os.IsNotExist(err))
}

func TestExecuteMissingInputFile(t *testing.T) {
	t.Parallel()

	outputDir := filepath.Join(t.TempDir(), "audiobook")

	flags := defaultTestFlags()
	flags.input = filepath.Join(t.TempDir(), "absent.epub")
	flags.output = outputDir

	require.NoError(t, execute(flags))

	_, err := os.Stat(outputDir)
	require.True(t, os.IsNotExist(err))
}

func TestLoadConfigAppliesFlagOverrides(t *testing.T) {
	t.Parallel()

	flags := defaultTestFlags()
	flags.input = "book.epub"
	flags.output = "narrated"
	flags.voice = "af_heart"
	flags.speed = 1.5
	flags.minChars = 120
	flags.serviceURL = "http://127.0.0.1:9000"
	flags.tag = true
	flags.play = true

	cfg, err := loadConfig(flags)
	require.NoError(t, err)

	assert.Equal(t, "book.epub", cfg.Book.InputPath)
	assert.Equal(t, "narrated", cfg.Output.Dir)
	assert.Equal(t, "af_heart", cfg.TTS.Voice)
	assert.InEpsilon(t, 1.5, cfg.TTS.Speed, 0.001)
	assert.Equal(t, 120, cfg.Book.MinChapterChars)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.TTS.ServiceURL)
	assert.True(t, cfg.Output.TagAudio)
	assert.True(t, cfg.Output.PlayAudio)
}

func TestLoadConfigKeepsDefaultsWhenFlagsUnset(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(defaultTestFlags())
	require.NoError(t, err)

	assert.Equal(t, config.DefaultVoice, cfg.TTS.Voice)
	assert.Equal(t, config.DefaultOutputDir, cfg.Output.Dir)
	assert.Equal(t, config.DefaultMinChapterChars, cfg.Book.MinChapterChars)
	assert.False(t, cfg.Output.TagAudio)
}

func TestLoadConfigRejectsInvalidSpeed(t *testing.T) {
	t.Parallel()

	flags := defaultTestFlags()
	flags.speed = 9.0

	_, err := loadConfig(flags)
	require.ErrorIs(t, err, config.ErrSpeedRange)
}
