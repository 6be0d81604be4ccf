package tts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/book-expert/epub-narrator/internal/audio"
	"github.com/book-expert/epub-narrator/internal/tts/text"
)

// ErrStreamConsumed is returned when Next is called on an exhausted stream.
// Segment streams are forward-only and cannot be restarted.
var ErrStreamConsumed = errors.New("segment stream already consumed")

// SpeechClient generates WAV audio for one segment of text. *HTTPClient is
// the production implementation; tests substitute fakes.
type SpeechClient interface {
	GenerateSpeech(ctx context.Context, req Request) ([]byte, error)
}

// Segment is one voiced slice of chapter text: the normalized text that was
// sent to the service, its phoneme rendering, and the decoded sample buffer.
type Segment struct {
	Text     string
	Phonemes string
	Samples  []int
}

// Synthesizer splits chapter text into paragraphs and voices them one at a
// time. Segmentation is the synthesizer's own responsibility; callers hand
// over whole chapters.
type Synthesizer struct {
	client       SpeechClient
	preprocessor *text.Preprocessor
	splitPattern *regexp.Regexp
	voice        string
	speed        float64
}

// NewSynthesizer creates a synthesizer for the given voice and speed.
// splitPattern is the regular expression defining paragraph boundaries
// (typically `\n\n+`).
func NewSynthesizer(
	client SpeechClient,
	voice string,
	speed float64,
	splitPattern string,
) (*Synthesizer, error) {
	compiled, err := regexp.Compile(splitPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid split pattern %q: %w", splitPattern, err)
	}

	return &Synthesizer{
		client:       client,
		preprocessor: text.NewPreprocessor(),
		splitPattern: compiled,
		voice:        voice,
		speed:        speed,
	}, nil
}

// Synthesize returns a forward-only stream over the chapter's segments.
// Audio is generated lazily, one segment per Next call; the caller must
// consume the full stream before assembling the chapter.
func (s *Synthesizer) Synthesize(ctx context.Context, chapterText string) *SegmentStream {
	return &SegmentStream{
		synthesizer: s,
		ctx:         ctx,
		pending:     s.splitParagraphs(chapterText),
	}
}

// splitParagraphs applies the split pattern and discards blank results. Text
// with no paragraph breaks yields a single unit.
func (s *Synthesizer) splitParagraphs(chapterText string) []string {
	parts := s.splitPattern.Split(chapterText, -1)

	paragraphs := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}

	return paragraphs
}

// SegmentStream is a one-shot iterator over a chapter's voiced segments.
type SegmentStream struct {
	synthesizer *Synthesizer
	ctx         context.Context //nolint:containedctx // stream is scoped to one chapter's synthesis call
	pending     []string
	position    int
	exhausted   bool
}

// Next voices the next paragraph. It returns ok=false once every segment has
// been produced; calling Next again after that is an error.
func (st *SegmentStream) Next() (Segment, bool, error) {
	if st.position >= len(st.pending) {
		if st.exhausted {
			return Segment{}, false, ErrStreamConsumed
		}

		st.exhausted = true

		return Segment{}, false, nil
	}

	paragraph := st.pending[st.position]
	st.position++

	segment, err := st.synthesizer.voiceSegment(st.ctx, paragraph)
	if err != nil {
		return Segment{}, false, fmt.Errorf(
			"segment %d failed: %w", st.position, err,
		)
	}

	return segment, true, nil
}

// Remaining reports how many paragraphs have not been voiced yet.
func (st *SegmentStream) Remaining() int {
	return len(st.pending) - st.position
}

// voiceSegment normalizes one paragraph, requests its audio, and decodes the
// response into a sample buffer.
func (s *Synthesizer) voiceSegment(ctx context.Context, paragraph string) (Segment, error) {
	normalized := s.preprocessor.Normalize(paragraph)

	wavData, err := s.client.GenerateSpeech(ctx, Request{
		Text:  normalized,
		Voice: s.voice,
		Speed: s.speed,
	})
	if err != nil {
		return Segment{}, fmt.Errorf("failed to generate speech: %w", err)
	}

	samples, err := audio.DecodeWAV(wavData)
	if err != nil {
		return Segment{}, fmt.Errorf("failed to decode service audio: %w", err)
	}

	return Segment{
		Text:     normalized,
		Phonemes: s.preprocessor.Phonemes(normalized),
		Samples:  samples,
	}, nil
}
