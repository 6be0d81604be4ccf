package audio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const playbackBufferSize = 1024

// int16 full-scale divisor for float32 conversion.
const sampleScale = 32768.0

// Player plays assembled chapter audio on the default output device. It is
// used for the optional read-along mode; playback is synchronous, matching
// the pipeline's strictly sequential contract.
type Player struct{}

// NewPlayer returns a Player for the default output device.
func NewPlayer() *Player {
	return &Player{}
}

// Play blocks until the whole sample buffer has been written to the output
// stream.
func (p *Player) Play(samples []int) error {
	if len(samples) == 0 {
		return ErrEmptySampleBuffer
	}

	err := portaudio.Initialize()
	if err != nil {
		return fmt.Errorf("failed to initialize audio output: %w", err)
	}

	defer func() { _ = portaudio.Terminate() }()

	buffer := make([]float32, playbackBufferSize)

	stream, err := portaudio.OpenDefaultStream(
		0,
		Channels,
		float64(SampleRate),
		playbackBufferSize,
		&buffer,
	)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}

	defer func() { _ = stream.Close() }()

	err = stream.Start()
	if err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	defer func() { _ = stream.Stop() }()

	for position := 0; position < len(samples); position += playbackBufferSize {
		for i := range buffer {
			if position+i < len(samples) {
				buffer[i] = float32(samples[position+i]) / sampleScale
			} else {
				buffer[i] = 0
			}
		}

		writeErr := stream.Write()
		if writeErr != nil {
			return fmt.Errorf("failed to write to output stream: %w", writeErr)
		}
	}

	return nil
}
