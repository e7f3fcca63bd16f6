// Package stream turns a remote audio stream URL into a sequence of PCM
// [audio.AudioFrame] values ready for a voice connection.
//
// The production implementation, [Decoder], runs one ffmpeg process per
// pipeline. Pipelines report their end through a [Handle]: Done is closed
// once the pipeline has fully stopped and Err distinguishes a clean end from
// a failure.
package stream

import (
	"context"

	"github.com/MrWong99/airwave/pkg/audio"
)

// Handle controls a running pipeline.
//
// Implementations must be safe for concurrent use.
type Handle interface {
	// Done is closed after the pipeline has stopped producing frames and all
	// of its resources are released.
	Done() <-chan struct{}

	// Err reports why the pipeline ended. It is only meaningful after Done is
	// closed. A clean end of stream and an explicit Stop both yield nil.
	Err() error

	// Stop terminates the pipeline. It is idempotent and does not wait for
	// Done.
	Stop()
}

// Pipeline starts decode pipelines.
type Pipeline interface {
	// Start begins decoding url and writing frames to out. It returns once
	// audio is flowing, or an error if the stream could not produce any. ctx
	// bounds the whole lifetime of the pipeline: cancelling it stops the
	// pipeline the same way Stop does.
	Start(ctx context.Context, url string, out chan<- audio.AudioFrame) (Handle, error)
}
