package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/airwave/pkg/audio"
)

// DefaultFFmpegPath is the ffmpeg binary looked up on PATH.
const DefaultFFmpegPath = "ffmpeg"

// DefaultStartTimeout bounds how long Start waits for the first frame.
const DefaultStartTimeout = 30 * time.Second

const stderrTailBytes = 2048

// Compile-time interface assertion.
var _ Pipeline = (*Decoder)(nil)

// Decoder is a [Pipeline] backed by an ffmpeg child process that reconnects
// on transient upstream errors and emits 48 kHz stereo s16le PCM.
type Decoder struct {
	path         string
	startTimeout time.Duration

	// command builds the child process. Overridden in tests.
	command func(ctx context.Context, path string, args ...string) *exec.Cmd
}

// DecoderOption configures a [Decoder].
type DecoderOption func(*Decoder)

// WithFFmpegPath sets the ffmpeg executable.
func WithFFmpegPath(p string) DecoderOption {
	return func(d *Decoder) {
		if p != "" {
			d.path = p
		}
	}
}

// WithStartTimeout sets how long Start waits for ffmpeg to produce audio.
func WithStartTimeout(t time.Duration) DecoderOption {
	return func(d *Decoder) {
		if t > 0 {
			d.startTimeout = t
		}
	}
}

// NewDecoder returns a Decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		path:         DefaultFFmpegPath,
		startTimeout: DefaultStartTimeout,
		command:      exec.CommandContext,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Args returns the ffmpeg arguments used to decode url.
func Args(url string) []string {
	return []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-analyzeduration", "5000000",
		"-probesize", "5000000",
		"-i", url,
		"-vn",
		"-loglevel", "warning",
		"-f", "s16le",
		"-ar", fmt.Sprint(audio.SampleRate),
		"-ac", fmt.Sprint(audio.Channels),
		"pipe:1",
	}
}

// Start launches ffmpeg for url and streams frames to out until the process
// exits, Stop is called or ctx is cancelled.
//
// Start returns once the first frame has been decoded. A stream that exits
// or stays silent for the start timeout before that is reported as an error,
// so an unreachable URL fails here rather than as an immediate termination.
func (d *Decoder) Start(ctx context.Context, url string, out chan<- audio.AudioFrame) (Handle, error) {
	procCtx, cancel := context.WithCancel(ctx)
	cmd := d.command(procCtx, d.path, Args(url)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stream: stdout pipe: %w", err)
	}
	tail := &tailBuffer{max: stderrTailBytes}
	cmd.Stderr = tail

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("stream: start ffmpeg: %w", err)
	}

	h := &processHandle{
		cancel:  cancel,
		done:    make(chan struct{}),
		started: make(chan struct{}),
	}
	go h.run(procCtx, cmd, stdout, out, tail, url)

	timer := time.NewTimer(d.startTimeout)
	defer timer.Stop()
	select {
	case <-h.started:
		return h, nil
	case <-h.done:
		select {
		case <-h.started:
			// A short stream can end right after its first frames.
			return h, nil
		default:
		}
		if err := h.Err(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("stream: %s ended before producing audio", url)
	case <-timer.C:
		h.Stop()
		<-h.done
		return nil, fmt.Errorf("stream: no audio from %s within %s", url, d.startTimeout)
	case <-ctx.Done():
		h.Stop()
		<-h.done
		return nil, ctx.Err()
	}
}

// processHandle is the [Handle] of one ffmpeg process.
type processHandle struct {
	cancel context.CancelFunc
	done   chan struct{}

	// started is closed once the first frame was read.
	started   chan struct{}
	startOnce sync.Once

	mu      sync.Mutex
	stopped bool
	err     error
}

func (h *processHandle) Done() <-chan struct{} { return h.done }

func (h *processHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *processHandle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.cancel()
}

func (h *processHandle) run(ctx context.Context, cmd *exec.Cmd, stdout io.Reader, out chan<- audio.AudioFrame, tail *tailBuffer, url string) {
	defer close(h.done)
	defer h.cancel()

	first := func() { h.startOnce.Do(func() { close(h.started) }) }
	readErr := pump(ctx, bufio.NewReaderSize(stdout, audio.FrameBytes*4), out, first)
	if readErr != nil {
		// Unblock ffmpeg if we stopped reading early.
		h.cancel()
	}
	waitErr := cmd.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case h.stopped || ctx.Err() != nil:
		h.err = nil
	case waitErr != nil:
		h.err = &ExitError{URL: url, Err: waitErr, Stderr: tail.String()}
	case readErr != nil:
		h.err = fmt.Errorf("stream: read pcm: %w", readErr)
	}
	slog.Debug("stream: ffmpeg exited", "url", url, "stopped", h.stopped, "error", h.err)
}

// pump copies whole frames from r to out, calling first once the first frame
// has been read. It returns nil at EOF.
func pump(ctx context.Context, r io.Reader, out chan<- audio.AudioFrame, first func()) error {
	var pos time.Duration
	for {
		buf := make([]byte, audio.FrameBytes)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if pos == 0 {
				first()
			}
			frame := audio.AudioFrame{
				Data:       buf[:n],
				SampleRate: audio.SampleRate,
				Channels:   audio.Channels,
				Timestamp:  pos,
			}
			select {
			case out <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}
			pos += audio.FrameSizeMs * time.Millisecond
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// ExitError reports an ffmpeg process that exited unsuccessfully.
type ExitError struct {
	URL    string
	Err    error
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("stream: ffmpeg for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("stream: ffmpeg for %s: %v: %s", e.URL, e.Err, e.Stderr)
}

func (e *ExitError) Unwrap() error { return e.Err }

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
