package stream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/airwave/pkg/audio"
)

// TestHelperProcess is not a real test. It is re-executed by the decoder
// tests as a stand-in for ffmpeg.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("AIRWAVE_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("AIRWAVE_HELPER_MODE") {
	case "frames":
		_, _ = os.Stdout.Write(make([]byte, audio.FrameBytes*3+100))
		os.Exit(0)
	case "fail":
		fmt.Fprint(os.Stderr, "Connection refused")
		os.Exit(1)
	case "drop":
		_, _ = os.Stdout.Write(make([]byte, audio.FrameBytes))
		time.Sleep(50 * time.Millisecond)
		fmt.Fprint(os.Stderr, "Connection reset by peer")
		os.Exit(1)
	case "empty":
		os.Exit(0)
	case "silent":
		time.Sleep(time.Minute)
	case "hang":
		for {
			_, _ = os.Stdout.Write(make([]byte, audio.FrameBytes))
			time.Sleep(10 * time.Millisecond)
		}
	}
	os.Exit(2)
}

func helperDecoder(mode string, opts ...DecoderOption) *Decoder {
	d := NewDecoder(opts...)
	d.command = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "AIRWAVE_HELPER_PROCESS=1", "AIRWAVE_HELPER_MODE="+mode)
		return cmd
	}
	return d
}

func waitDone(t *testing.T, h Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pipeline to finish")
	}
}

func TestArgs(t *testing.T) {
	t.Parallel()

	args := Args("http://radio.example/stream")
	i := slices.Index(args, "-i")
	if i < 0 || args[i+1] != "http://radio.example/stream" {
		t.Fatalf("input url not passed after -i: %v", args)
	}
	for _, want := range []string{"-reconnect", "-vn", "s16le", "48000", "pipe:1"} {
		if !slices.Contains(args, want) {
			t.Errorf("args missing %q", want)
		}
	}
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("last arg = %q, want pipe:1", args[len(args)-1])
	}
}

func TestDecoder_CleanEnd(t *testing.T) {
	t.Parallel()

	out := make(chan audio.AudioFrame, 16)
	h, err := helperDecoder("frames").Start(context.Background(), "http://x", out)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, h)

	if err := h.Err(); err != nil {
		t.Errorf("Err = %v, want nil for clean end", err)
	}
	if got := len(out); got != 4 {
		t.Fatalf("frames = %d, want 4", got)
	}
	first := <-out
	if len(first.Data) != audio.FrameBytes || first.SampleRate != audio.SampleRate {
		t.Errorf("unexpected first frame: len=%d rate=%d", len(first.Data), first.SampleRate)
	}
}

func TestDecoder_FailureBeforeAudio(t *testing.T) {
	t.Parallel()

	h, err := helperDecoder("fail").Start(context.Background(), "http://x", make(chan audio.AudioFrame, 1))
	if h != nil {
		t.Fatal("Start returned a handle for a stream that never produced audio")
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want *ExitError", err)
	}
	if !strings.Contains(exitErr.Error(), "Connection refused") {
		t.Errorf("error %q does not carry stderr tail", exitErr.Error())
	}
}

func TestDecoder_EmptyStream(t *testing.T) {
	t.Parallel()

	if _, err := helperDecoder("empty").Start(context.Background(), "http://x", make(chan audio.AudioFrame, 1)); err == nil {
		t.Fatal("expected error for a stream without audio")
	}
}

func TestDecoder_StartTimeout(t *testing.T) {
	t.Parallel()

	d := helperDecoder("silent", WithStartTimeout(100*time.Millisecond))
	start := time.Now()
	_, err := d.Start(context.Background(), "http://x", make(chan audio.AudioFrame, 1))
	if err == nil || !strings.Contains(err.Error(), "no audio") {
		t.Fatalf("err = %v, want start timeout", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Start did not honour the start timeout")
	}
}

func TestDecoder_FailureAfterAudio(t *testing.T) {
	t.Parallel()

	out := make(chan audio.AudioFrame, 4)
	h, err := helperDecoder("drop").Start(context.Background(), "http://x", out)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, h)

	var exitErr *ExitError
	if !errors.As(h.Err(), &exitErr) {
		t.Fatalf("Err = %v, want *ExitError", h.Err())
	}
	if !strings.Contains(exitErr.Error(), "Connection reset") {
		t.Errorf("error %q does not carry stderr tail", exitErr.Error())
	}
}

func TestDecoder_Stop(t *testing.T) {
	t.Parallel()

	out := make(chan audio.AudioFrame, 1)
	h, err := helperDecoder("hang").Start(context.Background(), "http://x", out)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-out
	h.Stop()
	h.Stop()
	waitDone(t, h)
	if err := h.Err(); err != nil {
		t.Errorf("Err after Stop = %v, want nil", err)
	}
}

func TestDecoder_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	h, err := helperDecoder("hang").Start(ctx, "http://x", make(chan audio.AudioFrame))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	waitDone(t, h)
	if err := h.Err(); err != nil {
		t.Errorf("Err after cancel = %v, want nil", err)
	}
}

func TestDecoder_MissingBinary(t *testing.T) {
	t.Parallel()

	d := NewDecoder(WithFFmpegPath("/nonexistent/ffmpeg-airwave"))
	if _, err := d.Start(context.Background(), "http://x", make(chan audio.AudioFrame)); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestTailBuffer(t *testing.T) {
	t.Parallel()

	tb := &tailBuffer{max: 8}
	_, _ = tb.Write([]byte("hello "))
	_, _ = tb.Write([]byte("world"))
	if got := tb.String(); got != "lo world" {
		t.Errorf("tail = %q, want %q", got, "lo world")
	}
}
