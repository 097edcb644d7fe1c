// Package probe reads the playback duration of a raw media blob without
// decoding or rendering it.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"clipflow/internal/models"
)

const defaultProbeTimeout = 15 * time.Second

// MetadataReader reports the playback duration in seconds of the media at the
// given path. Implementations must not decode frames; reading container
// metadata is sufficient.
type MetadataReader interface {
	ReadDuration(ctx context.Context, path string) (float64, error)
}

// DurationProbe writes the blob to a temporary file, reads its duration
// through a MetadataReader, and removes the temporary file on success and
// failure alike.
type DurationProbe struct {
	reader  MetadataReader
	tempDir string
	timeout time.Duration
}

// Option adjusts DurationProbe construction.
type Option func(*DurationProbe)

// WithMetadataReader swaps the default ffprobe-backed reader, primarily for
// tests.
func WithMetadataReader(reader MetadataReader) Option {
	return func(p *DurationProbe) {
		if reader != nil {
			p.reader = reader
		}
	}
}

// WithTempDir places temporary probe files under dir instead of the system
// default.
func WithTempDir(dir string) Option {
	return func(p *DurationProbe) {
		p.tempDir = strings.TrimSpace(dir)
	}
}

// New constructs a DurationProbe backed by ffprobe unless overridden.
func New(opts ...Option) *DurationProbe {
	probe := &DurationProbe{
		reader:  ffprobeReader{},
		timeout: defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(probe)
	}
	return probe
}

// Duration resolves the playback duration in seconds of the provided blob.
// It fails with models.ErrDurationUnavailable when metadata cannot be read.
// The temporary file backing the probe is always removed before returning.
func (p *DurationProbe) Duration(ctx context.Context, data []byte) (float64, error) {
	file, err := os.CreateTemp(p.tempDir, "clipflow-probe-*.bin")
	if err != nil {
		return 0, fmt.Errorf("%w: create probe file: %v", models.ErrDurationUnavailable, err)
	}
	path := file.Name()
	defer os.Remove(path)

	if _, err := file.Write(data); err != nil {
		file.Close()
		return 0, fmt.Errorf("%w: write probe file: %v", models.ErrDurationUnavailable, err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("%w: close probe file: %v", models.ErrDurationUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	seconds, err := p.reader.ReadDuration(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrDurationUnavailable, err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%w: non-positive duration %f", models.ErrDurationUnavailable, seconds)
	}
	return seconds, nil
}

type ffprobeReader struct{}

func (ffprobeReader) ReadDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return 0, fmt.Errorf("ffprobe: %s", detail)
		}
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	raw := strings.TrimSpace(stdout.String())
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	return seconds, nil
}
