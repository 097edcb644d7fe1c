package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// StreamConstraints declare the capture profile requested from a device. The
// live recorder deliberately asks for a low-resolution, low-frame-rate
// portrait stream with processed audio; the result is an intermediate
// recording meant for transcoding, not direct delivery.
type StreamConstraints struct {
	Width            int
	Height           int
	FrameRate        int
	PortraitHint     bool
	NoiseSuppression bool
}

// DefaultConstraints is the capture profile used for live recordings.
var DefaultConstraints = StreamConstraints{
	Width:            480,
	Height:           640,
	FrameRate:        15,
	PortraitHint:     true,
	NoiseSuppression: true,
}

// Stream is a live device stream handle. Chunks delivers recorded data until
// the stream ends or is stopped; Stop releases every underlying track and is
// safe to call from any exit path, repeatedly.
type Stream interface {
	Chunks() <-chan []byte
	Stop() error
	Err() error
}

// Device acquires a constrained capture stream. Implementations map
// acquisition failures (no device, no permission) to an error the live
// recorder surfaces as CameraAccessDenied.
type Device interface {
	OpenStream(ctx context.Context, constraints StreamConstraints) (Stream, error)
}

// FFmpegDeviceConfig selects the capture inputs driven by the local ffmpeg
// binary.
type FFmpegDeviceConfig struct {
	BinPath     string
	VideoInput  string // e.g. /dev/video0
	AudioInput  string // e.g. ALSA/Pulse device name, empty to skip audio
	InputFormat string // e.g. v4l2, avfoundation
}

// FFmpegDevice records from a local capture device by running ffmpeg with the
// requested constraints and streaming WebM output back over a pipe.
type FFmpegDevice struct {
	cfg FFmpegDeviceConfig
}

// NewFFmpegDevice constructs an FFmpegDevice with defaults suitable for
// Linux (v4l2 + /dev/video0).
func NewFFmpegDevice(cfg FFmpegDeviceConfig) *FFmpegDevice {
	if strings.TrimSpace(cfg.BinPath) == "" {
		cfg.BinPath = "ffmpeg"
	}
	if strings.TrimSpace(cfg.VideoInput) == "" {
		cfg.VideoInput = "/dev/video0"
	}
	if strings.TrimSpace(cfg.InputFormat) == "" {
		cfg.InputFormat = "v4l2"
	}
	return &FFmpegDevice{cfg: cfg}
}

// OpenStream starts the capture process. The stream targets a low-bitrate
// VP8/Opus WebM intermediate suited for the subsequent transcode.
func (d *FFmpegDevice) OpenStream(ctx context.Context, constraints StreamConstraints) (Stream, error) {
	args := []string{
		"-f", d.cfg.InputFormat,
		"-framerate", strconv.Itoa(constraints.FrameRate),
		"-video_size", fmt.Sprintf("%dx%d", constraints.Width, constraints.Height),
		"-i", d.cfg.VideoInput,
	}
	if d.cfg.AudioInput != "" {
		args = append(args, "-f", "alsa", "-i", d.cfg.AudioInput)
		if constraints.NoiseSuppression {
			args = append(args, "-af", "highpass=f=200,afftdn")
		}
		args = append(args, "-c:a", "libopus", "-b:a", "48k", "-ac", "1")
	} else {
		args = append(args, "-an")
	}
	args = append(args,
		"-c:v", "libvpx",
		"-b:v", "600k",
		"-deadline", "realtime",
		"-f", "webm",
		"pipe:1",
	)

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, d.cfg.BinPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open capture pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start capture: %w", err)
	}

	stream := &processStream{
		cancel: cancel,
		chunks: make(chan []byte, 16),
	}
	stream.wait = func() error { return cmd.Wait() }
	go stream.drain(stdout)
	return stream, nil
}

// processStream adapts a capture process's stdout into the Stream contract.
type processStream struct {
	cancel context.CancelFunc
	wait   func() error
	chunks chan []byte

	mu      sync.Mutex
	stopped bool
	err     error
}

func (s *processStream) drain(r io.Reader) {
	defer close(s.chunks)
	reader := bufio.NewReader(r)
	buf := make([]byte, 64<<10)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.chunks <- chunk
		}
		if err != nil {
			if err != io.EOF {
				s.setErr(fmt.Errorf("read capture stream: %w", err))
			}
			return
		}
	}
}

func (s *processStream) Chunks() <-chan []byte {
	return s.chunks
}

// Stop terminates the capture process and waits for it to exit, releasing the
// device. Idempotent.
func (s *processStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	// The exit status is uninteresting here: stopping the capture kills the
	// process, which reports a non-zero exit on most platforms.
	s.wait()
	return nil
}

func (s *processStream) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *processStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
