// Package pipeline orchestrates the narration run: load the book, extract
// chapters, synthesize each one, assemble its audio, and encode the output
// file. Processing is strictly sequential; each chapter completes before the
// next begins, and no state is shared across chapters.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/epub-narrator/internal/audio"
	"github.com/book-expert/epub-narrator/internal/book"
	"github.com/book-expert/epub-narrator/internal/config"
	"github.com/book-expert/epub-narrator/internal/encode"
	"github.com/book-expert/epub-narrator/internal/tts"
	"github.com/book-expert/logger"
)

const healthCheckTimeout = 10 * time.Second

// Progress output formats. These lines are the pipeline's console contract;
// structured logging goes to the log file in parallel.
const (
	bannerBook       = "Narrating %q by %s: %d chapter(s)\n"
	bannerChapter    = "\n=== Chapter %d/%d: %s ===\n"
	lineSegment      = "  segment %d: %s (%d samples)\n"
	lineChapterDone  = "  wrote %s (%s of audio)\n"
	lineChapterEmpty = "  no audio produced, chapter skipped\n"
	bannerDone       = "\nDone. %d file(s) written to %s\n"
	previewLength    = 48
)

// Player plays one assembled chapter out loud. It is optional; a nil Player
// disables playback.
type Player interface {
	Play(samples []int) error
}

// HealthChecker verifies the synthesis service is reachable before the run
// starts.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Pipeline runs the whole narration sequence for one book.
type Pipeline struct {
	cfg     *config.Config
	log     *logger.Logger
	synth   *tts.Synthesizer
	health  HealthChecker
	encoder encode.ChapterEncoder
	player  Player
}

// New wires the production pipeline from configuration: an HTTP synthesis
// client, the configured encoder variant, and optional playback.
func New(cfg *config.Config, log *logger.Logger) (*Pipeline, error) {
	client := tts.NewHTTPClient(
		cfg.TTS.ServiceURL,
		time.Duration(cfg.TTS.TimeoutSeconds)*time.Second,
	)

	synth, err := tts.NewSynthesizer(client, cfg.TTS.Voice, cfg.TTS.Speed, cfg.TTS.SplitPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	encoder, err := newEncoder(cfg, log)
	if err != nil {
		return nil, err
	}

	var player Player
	if cfg.Output.PlayAudio {
		player = audio.NewPlayer()
	}

	return &Pipeline{
		cfg:     cfg,
		log:     log,
		synth:   synth,
		health:  client,
		encoder: encoder,
		player:  player,
	}, nil
}

// NewWithComponents wires a pipeline from pre-built components. Primarily
// for tests; health check and playback are skipped when nil.
func NewWithComponents(
	cfg *config.Config,
	log *logger.Logger,
	synth *tts.Synthesizer,
	encoder encode.ChapterEncoder,
	player Player,
) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		log:     log,
		synth:   synth,
		health:  nil,
		encoder: encoder,
		player:  player,
	}
}

// newEncoder selects the output variant: plain WAV or tagged M4B.
func newEncoder(cfg *config.Config, log *logger.Logger) (encode.ChapterEncoder, error) {
	if !cfg.Output.TagAudio {
		return encode.NewWAVEncoder(cfg.Output.Dir), nil
	}

	encoder, err := encode.NewM4BEncoder(cfg.Output.Dir, cfg.Output.BitrateKbps, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create tagged encoder: %w", err)
	}

	return encoder, nil
}

// Run executes the full narration sequence. Any failure past the initial
// book load aborts the run; chapters written so far are left in place.
func (p *Pipeline) Run(ctx context.Context) error {
	loaded, err := book.Load(p.cfg.Book.InputPath)
	if err != nil {
		return err
	}

	defer func() {
		closeErr := loaded.Close()
		if closeErr != nil {
			p.log.Warn("Failed to close book: %v", closeErr)
		}
	}()

	extractor := book.NewExtractor(p.cfg.Book.MinChapterChars, p.log)

	chapters, err := extractor.Extract(loaded)
	if err != nil {
		return err
	}

	meta := loaded.Metadata()

	fmt.Printf(bannerBook, meta.Title, meta.Author, len(chapters))
	p.log.Info("Loaded %q: %d retained chapter(s)", p.cfg.Book.InputPath, len(chapters))

	if len(chapters) == 0 {
		fmt.Printf(bannerDone, 0, p.cfg.Output.Dir)

		return nil
	}

	err = p.checkServiceHealth(ctx)
	if err != nil {
		return err
	}

	err = EnsureDir(p.cfg.Output.Dir)
	if err != nil {
		return err
	}

	written := 0

	for _, chapter := range chapters {
		wrote, chapterErr := p.processChapter(ctx, chapter, meta, len(chapters))
		if chapterErr != nil {
			return fmt.Errorf("chapter %d failed: %w", chapter.Number, chapterErr)
		}

		if wrote {
			written++
		}
	}

	fmt.Printf(bannerDone, written, p.cfg.Output.Dir)
	p.log.System("Run complete: %d file(s) written to %s", written, p.cfg.Output.Dir)

	return nil
}

// checkServiceHealth fails fast when the synthesis service is unreachable.
func (p *Pipeline) checkServiceHealth(ctx context.Context) error {
	if p.health == nil {
		return nil
	}

	healthCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	err := p.health.HealthCheck(healthCtx)
	if err != nil {
		return fmt.Errorf("synthesis service health check failed: %w", err)
	}

	return nil
}

// processChapter voices one chapter, assembles its audio, optionally plays
// it, and encodes the output file. It reports whether a file was written:
// a chapter whose synthesis yields no segments is skipped with a warning,
// not an error.
func (p *Pipeline) processChapter(
	ctx context.Context,
	chapter book.Chapter,
	meta book.Metadata,
	totalChapters int,
) (bool, error) {
	fmt.Printf(bannerChapter, chapter.Number, totalChapters, chapter.Title)

	buffers, err := p.collectSegments(ctx, chapter)
	if err != nil {
		return false, err
	}

	if len(buffers) == 0 {
		fmt.Print(lineChapterEmpty)
		p.log.Warn("Chapter %d (%s) produced no audio segments, skipping", chapter.Number, chapter.Title)

		return false, nil
	}

	samples := audio.Assemble(buffers)

	if p.player != nil {
		playErr := p.player.Play(samples)
		if playErr != nil {
			return false, fmt.Errorf("playback failed: %w", playErr)
		}
	}

	outputPath, err := p.encoder.Encode(ctx, samples, encode.Tags{
		Album:       meta.Title,
		TrackTitle:  fmt.Sprintf("Chapter %d: %s", chapter.Number, chapter.Title),
		Artist:      meta.Author,
		Date:        meta.Date,
		TrackNumber: chapter.Number,
		TrackTotal:  totalChapters,
	})
	if err != nil {
		return false, err
	}

	duration := FormatDuration(audio.DurationSeconds(samples))
	fmt.Printf(lineChapterDone, outputPath, duration)
	p.log.Info("Chapter %d encoded to %s (%s)", chapter.Number, outputPath, duration)

	return true, nil
}

// collectSegments consumes the chapter's segment stream to completion. The
// stream is forward-only; the assembled chapter needs every segment, so
// partial consumption is never valid.
func (p *Pipeline) collectSegments(ctx context.Context, chapter book.Chapter) ([][]int, error) {
	stream := p.synth.Synthesize(ctx, chapter.Text)

	var buffers [][]int

	for index := 1; ; index++ {
		segment, more, err := stream.Next()
		if err != nil {
			return nil, err
		}

		if !more {
			return buffers, nil
		}

		fmt.Printf(lineSegment, index, preview(segment.Text), len(segment.Samples))
		p.log.Info(
			"Chapter %d segment %d: %d samples, phonemes: %s",
			chapter.Number,
			index,
			len(segment.Samples),
			segment.Phonemes,
		)

		buffers = append(buffers, segment.Samples)
	}
}

// preview shortens segment text for progress lines.
func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}

	return string(runes[:previewLength]) + "..."
}
