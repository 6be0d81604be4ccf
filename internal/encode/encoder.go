// Package encode persists assembled chapter audio: either as a plain WAV
// file or as an AAC-in-MP4 audiobook file carrying the full tag set.
package encode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/book-expert/epub-narrator/internal/audio"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/simonhull/audiometa"
)

// Output naming and tagging constants.
const (
	wavFileFormat = "chapter_%02d.wav"
	m4bFileFormat = "chapter_%02d.m4b"

	genreAudiobook = "Audiobook"

	// iTunes media-type atom value for audiobooks.
	mediaTypeAudiobook = "2"

	provenanceComment = "Generated by epub-narrator"
)

// ErrTagMismatch is returned when the tags read back from an encoded file do
// not match what was written.
var ErrTagMismatch = errors.New("encoded file tags do not match")

// Tags is the metadata attached to one tagged chapter file.
type Tags struct {
	Album       string
	TrackTitle  string
	Artist      string
	Date        string
	TrackNumber int
	TrackTotal  int
}

// ChapterEncoder writes one chapter's assembled samples to its output file
// and returns the written path.
type ChapterEncoder interface {
	Encode(ctx context.Context, samples []int, tags Tags) (string, error)
}

// WAVEncoder writes chapters as plain, untagged waveform files.
type WAVEncoder struct {
	outputDir string
}

// NewWAVEncoder creates an encoder writing chapter_NN.wav files into
// outputDir.
func NewWAVEncoder(outputDir string) *WAVEncoder {
	return &WAVEncoder{outputDir: outputDir}
}

// Encode writes the sample buffer to chapter_NN.wav. Tags are accepted for
// interface symmetry but a plain waveform container carries none of them.
func (e *WAVEncoder) Encode(_ context.Context, samples []int, tags Tags) (string, error) {
	outputPath := filepath.Join(e.outputDir, fmt.Sprintf(wavFileFormat, tags.TrackNumber))

	err := audio.WriteWAV(outputPath, samples)
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	return outputPath, nil
}

// M4BEncoder writes chapters as AAC-in-MP4 audiobook files with full tags.
// Encoding is delegated to ffmpeg; the binary is resolved once at
// construction so a missing installation fails before any synthesis work.
type M4BEncoder struct {
	log         *logger.Logger
	outputDir   string
	ffmpegPath  string
	bitrateKbps int
}

// NewM4BEncoder creates a tagged encoder writing chapter_NN.m4b files into
// outputDir at the given AAC bitrate.
func NewM4BEncoder(outputDir string, bitrateKbps int, log *logger.Logger) (*M4BEncoder, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found, required for tagged output: %w", err)
	}

	return &M4BEncoder{
		log:         log,
		outputDir:   outputDir,
		ffmpegPath:  ffmpegPath,
		bitrateKbps: bitrateKbps,
	}, nil
}

// Encode writes the samples to a transient WAV file, re-encodes it to an
// AAC audiobook container with the tag set, and verifies the result by
// reading the tags back. The intermediate file is removed on every exit
// path, including encoding and tagging failures.
func (e *M4BEncoder) Encode(ctx context.Context, samples []int, tags Tags) (string, error) {
	intermediatePath := filepath.Join(e.outputDir, "narrate-"+uuid.NewString()+".wav")

	err := audio.WriteWAV(intermediatePath, samples)
	if err != nil {
		return "", fmt.Errorf("failed to write intermediate WAV: %w", err)
	}

	defer func() {
		removeErr := os.Remove(intermediatePath)
		if removeErr != nil {
			e.log.Warn("Failed to remove intermediate file %q: %v", intermediatePath, removeErr)
		}
	}()

	outputPath := filepath.Join(e.outputDir, fmt.Sprintf(m4bFileFormat, tags.TrackNumber))

	args := e.buildFFmpegArgs(intermediatePath, outputPath, tags)

	// #nosec G204 -- ffmpegPath is resolved via LookPath at construction
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %w - output: %s", err, string(output))
	}

	err = e.verifyTags(outputPath, tags)
	if err != nil {
		return "", err
	}

	return outputPath, nil
}

// buildFFmpegArgs assembles the encode-and-tag invocation: AAC in an MP4
// (ipod) container at the configured bitrate, with the audiobook tag set.
func (e *M4BEncoder) buildFFmpegArgs(inputPath, outputPath string, tags Tags) []string {
	args := []string{
		"-y",
		"-i", inputPath,
		"-c:a", "aac",
		"-b:a", strconv.Itoa(e.bitrateKbps) + "k",
		"-f", "ipod",
		"-metadata", "album=" + tags.Album,
		"-metadata", "title=" + tags.TrackTitle,
		"-metadata", "artist=" + tags.Artist,
		"-metadata", "album_artist=" + tags.Artist,
		"-metadata", "genre=" + genreAudiobook,
		"-metadata", "comment=" + provenanceComment,
		"-metadata", fmt.Sprintf("track=%d/%d", tags.TrackNumber, tags.TrackTotal),
		"-metadata", "media_type=" + mediaTypeAudiobook,
	}

	if tags.Date != "" {
		args = append(args, "-metadata", "date="+tags.Date)
	}

	return append(args, outputPath)
}

// verifyTags reads the encoded file back and checks the tag fields the
// container must carry. A file that encodes but cannot be read back, or
// whose tags differ, is an encode failure.
func (e *M4BEncoder) verifyTags(path string, tags Tags) error {
	file, err := audiometa.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read back encoded file %q: %w", path, err)
	}

	defer func() { _ = file.Close() }()

	if file.Tags.Album != tags.Album ||
		file.Tags.Title != tags.TrackTitle ||
		file.Tags.Artist != tags.Artist {
		return fmt.Errorf(
			"%w: got album=%q title=%q artist=%q",
			ErrTagMismatch,
			file.Tags.Album,
			file.Tags.Title,
			file.Tags.Artist,
		)
	}

	e.log.Info("Encoded %s (%s)", path, file.Audio.Duration)

	return nil
}
