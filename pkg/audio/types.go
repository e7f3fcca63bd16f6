package audio

import "time"

// Discord voice transport format. Decoders produce frames in this format so
// adapters can encode them to Opus without resampling.
const (
	SampleRate  = 48000
	Channels    = 2
	FrameSizeMs = 20

	// FrameSamples is the number of samples per channel in one frame (960).
	FrameSamples = SampleRate * FrameSizeMs / 1000

	// FrameBytes is the PCM byte length of one frame:
	// 960 samples × 2 channels × 2 bytes = 3840.
	FrameBytes = FrameSamples * Channels * 2
)

// AudioFrame is a single frame of PCM audio flowing from a decoder to a
// voice connection.
type AudioFrame struct {
	// PCM audio data, interleaved little-endian int16.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels: 2 for Discord stereo output.
	Channels int

	// Timestamp marks the frame's position relative to stream start.
	Timestamp time.Duration
}
