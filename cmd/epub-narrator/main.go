// Command epub-narrator converts an EPUB book into per-chapter spoken audio
// files using a speech synthesis HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/book-expert/epub-narrator/internal/config"
	"github.com/book-expert/epub-narrator/internal/pipeline"
	"github.com/book-expert/logger"
)

// Flag names.
const (
	flagInput      = "input"
	flagOutput     = "output"
	flagVoice      = "voice"
	flagSpeed      = "speed"
	flagTag        = "tag"
	flagPlay       = "play"
	flagConfig     = "config"
	flagMinChars   = "min-chars"
	flagServiceURL = "service-url"
	flagVerbose    = "verbose"
)

// Flag descriptions.
const (
	flagInputDesc      = "Path to the input EPUB file"
	flagOutputDesc     = "Directory for generated audio files"
	flagVoiceDesc      = "Synthesis voice identifier"
	flagSpeedDesc      = "Speech speed multiplier (1.0 is normal)"
	flagTagDesc        = "Produce tagged .m4b files instead of plain .wav"
	flagPlayDesc       = "Play each chapter through the default audio device"
	flagConfigDesc     = "Path to a TOML configuration file"
	flagMinCharsDesc   = "Minimum chapter length in characters; shorter items are dropped"
	flagServiceURLDesc = "Base URL of the speech synthesis service"
	flagVerboseDesc    = "Enable verbose logging"
)

// Error and log messages.
const (
	errFailedToLoadConfig = "failed to load configuration: %w"
	errInvalidConfig      = "invalid configuration: %w"
	errFailedToInitLogger = "failed to initialize logger: %w"

	msgNoInputFile = "No input file provided. Use -%s to name an EPUB file.\n"

	logNarratorInitialized = "epub-narrator initialized (input: %s, output: %s)"
)

// Log file names.
const (
	logFileNameDefault = "epub-narrator.log"
	logFileNameVerbose = "epub-narrator-verbose.log"
)

// Sentinel values for flags left at their defaults, so only flags the user
// actually set override the configuration file.
const (
	unsetString = "\x00unset"
	unsetNumber = -1
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	input      string
	output     string
	voice      string
	speed      float64
	config     string
	minChars   int
	serviceURL string
	tag        bool
	play       bool
	verbose    bool
}

func main() {
	err := run()
	if err != nil {
		// The logger might not be initialized yet, so use the standard
		// log package.
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	return execute(parseFlags())
}

// execute carries out one narration run for the given flag values.
func execute(flags appFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// A missing input file is not an error condition for a narration tool:
	// report it and exit cleanly with nothing touched.
	if cfg.Book.InputPath == "" {
		fmt.Printf(msgNoInputFile, flagInput)

		return nil
	}

	if _, statErr := os.Stat(cfg.Book.InputPath); os.IsNotExist(statErr) {
		fmt.Printf("Input file %q does not exist.\n", cfg.Book.InputPath)

		return nil
	}

	log, err := newLogger(cfg, flags.verbose)
	if err != nil {
		return err
	}
	defer log.Close()

	log.Info(logNarratorInitialized, cfg.Book.InputPath, cfg.Output.Dir)

	narrator, err := pipeline.New(cfg, log)
	if err != nil {
		return err
	}

	return narrator.Run(context.Background())
}

// parseFlags defines and parses command-line flags, returning them in a
// struct.
func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.input, flagInput, unsetString, flagInputDesc)
	flag.StringVar(&flags.output, flagOutput, unsetString, flagOutputDesc)
	flag.StringVar(&flags.voice, flagVoice, unsetString, flagVoiceDesc)
	flag.Float64Var(&flags.speed, flagSpeed, unsetNumber, flagSpeedDesc)
	flag.StringVar(&flags.serviceURL, flagServiceURL, unsetString, flagServiceURLDesc)
	flag.IntVar(&flags.minChars, flagMinChars, unsetNumber, flagMinCharsDesc)
	flag.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flag.BoolVar(&flags.tag, flagTag, false, flagTagDesc)
	flag.BoolVar(&flags.play, flagPlay, false, flagPlayDesc)
	flag.BoolVar(&flags.verbose, flagVerbose, false, flagVerboseDesc)
	flag.Parse()

	return flags
}

// loadConfig loads the configuration file (or defaults) and applies the flags
// the user set on top of it.
func loadConfig(flags appFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.config)
	if err != nil {
		return nil, fmt.Errorf(errFailedToLoadConfig, err)
	}

	applyFlagOverrides(cfg, flags)

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf(errInvalidConfig, err)
	}

	return cfg, nil
}

// applyFlagOverrides copies set flag values into the configuration.
// Command-line flags take precedence over the configuration file.
func applyFlagOverrides(cfg *config.Config, flags appFlags) {
	if flags.input != unsetString {
		cfg.Book.InputPath = flags.input
	}

	if flags.output != unsetString {
		cfg.Output.Dir = flags.output
	}

	if flags.voice != unsetString {
		cfg.TTS.Voice = flags.voice
	}

	if flags.speed != unsetNumber {
		cfg.TTS.Speed = flags.speed
	}

	if flags.serviceURL != unsetString {
		cfg.TTS.ServiceURL = flags.serviceURL
	}

	if flags.minChars != unsetNumber {
		cfg.Book.MinChapterChars = flags.minChars
	}

	if flags.tag {
		cfg.Output.TagAudio = true
	}

	if flags.play {
		cfg.Output.PlayAudio = true
	}
}

// newLogger creates the file logger in the configured log directory.
func newLogger(cfg *config.Config, verbose bool) (*logger.Logger, error) {
	logFileName := logFileNameDefault
	if verbose {
		logFileName = logFileNameVerbose
	}

	fileLogger, err := logger.New(cfg.Logging.LogDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf(errFailedToInitLogger, err)
	}

	return fileLogger, nil
}
