// Package audio provides sample-buffer handling for the narration pipeline:
// WAV decoding and encoding, chapter assembly, and local playback.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// The synthesis service produces mono 16-bit PCM at a fixed rate. Every
// buffer in the pipeline shares these parameters.
const (
	SampleRate = 24000
	Channels   = 1
	BitDepth   = 16
)

const filePermissions = 0o600

// Static errors.
var (
	ErrInvalidWAV          = errors.New("invalid WAV data")
	ErrUnexpectedFormat    = errors.New("unexpected audio format")
	ErrEmptySampleBuffer   = errors.New("empty sample buffer")
	ErrNoSamplesInResponse = errors.New("WAV data contains no samples")
)

// DecodeWAV parses WAV bytes and returns the raw sample buffer. The data
// must be mono 16-bit PCM at the pipeline sample rate; anything else is an
// error, because buffers from different formats cannot be concatenated.
func DecodeWAV(data []byte) ([]int, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode WAV data: %w", err)
	}

	if buf.Format.SampleRate != SampleRate || buf.Format.NumChannels != Channels {
		return nil, fmt.Errorf(
			"%w: got %d Hz / %d channels, want %d Hz / %d channels",
			ErrUnexpectedFormat,
			buf.Format.SampleRate,
			buf.Format.NumChannels,
			SampleRate,
			Channels,
		)
	}

	if buf.SourceBitDepth != BitDepth {
		return nil, fmt.Errorf(
			"%w: got %d-bit samples, want %d-bit",
			ErrUnexpectedFormat,
			buf.SourceBitDepth,
			BitDepth,
		)
	}

	if len(buf.Data) == 0 {
		return nil, ErrNoSamplesInResponse
	}

	return buf.Data, nil
}

// Assemble concatenates the ordered per-segment sample buffers of one
// chapter into a single waveform, preserving segment order.
func Assemble(buffers [][]int) []int {
	total := 0
	for _, buf := range buffers {
		total += len(buf)
	}

	combined := make([]int, 0, total)
	for _, buf := range buffers {
		combined = append(combined, buf...)
	}

	return combined
}

// WriteWAV writes the sample buffer to path as a mono 16-bit PCM WAV file.
func WriteWAV(path string, samples []int) error {
	if len(samples) == 0 {
		return ErrEmptySampleBuffer
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}

	encoder := wav.NewEncoder(file, SampleRate, BitDepth, Channels, 1)

	buf := &gaudio.IntBuffer{
		Format: &gaudio.Format{
			NumChannels: Channels,
			SampleRate:  SampleRate,
		},
		Data:           samples,
		SourceBitDepth: BitDepth,
	}

	writeErr := encoder.Write(buf)
	closeErr := encoder.Close()
	fileErr := file.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to write WAV samples: %w", writeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to finalize WAV file: %w", closeErr)
	}

	if fileErr != nil {
		return fmt.Errorf("failed to close WAV file: %w", fileErr)
	}

	return nil
}

// DurationSeconds returns the playing time of a sample buffer.
func DurationSeconds(samples []int) float64 {
	return float64(len(samples)) / float64(SampleRate)
}
