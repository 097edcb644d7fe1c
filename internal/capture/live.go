package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"clipflow/internal/models"
)

// IntermediateMimeType is the low-bitrate container live recordings target.
// It is an intermediate for the transcoder, not a delivery format.
const IntermediateMimeType = "video/webm"

// LiveRecorderConfig wires a LiveRecorder to its capture device.
type LiveRecorderConfig struct {
	Device      Device
	Constraints StreamConstraints
	Logger      *slog.Logger
}

// LiveRecorder produces a MediaAsset by recording a constrained device
// stream. It buffers recorded chunks internally and concatenates them into a
// single blob on Stop. The recorder owns the device stream exclusively while
// active and releases it on every exit path: Stop, Close, or replacement by a
// new Start.
type LiveRecorder struct {
	device      Device
	constraints StreamConstraints
	logger      *slog.Logger

	mu        sync.Mutex
	stream    Stream
	chunks    [][]byte
	collected chan struct{}
}

// NewLiveRecorder constructs a LiveRecorder using DefaultConstraints unless
// overridden.
func NewLiveRecorder(cfg LiveRecorderConfig) *LiveRecorder {
	constraints := cfg.Constraints
	if constraints == (StreamConstraints{}) {
		constraints = DefaultConstraints
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LiveRecorder{
		device:      cfg.Device,
		constraints: constraints,
		logger:      logger,
	}
}

// Start acquires the device stream and begins buffering chunks. Any stream
// already held is stopped first so a superseded recording never leaks its
// tracks. Acquisition failure surfaces as CameraAccessDenied.
func (r *LiveRecorder) Start(ctx context.Context) error {
	r.releaseCurrent()

	stream, err := r.device.OpenStream(ctx, r.constraints)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrCameraAccessDenied, err)
	}

	r.mu.Lock()
	r.stream = stream
	r.chunks = nil
	r.collected = make(chan struct{})
	collected := r.collected
	r.mu.Unlock()

	go func() {
		defer close(collected)
		for chunk := range stream.Chunks() {
			r.mu.Lock()
			r.chunks = append(r.chunks, chunk)
			r.mu.Unlock()
		}
	}()

	r.logger.Info("recording started",
		"width", r.constraints.Width,
		"height", r.constraints.Height,
		"framerate", r.constraints.FrameRate,
	)
	return nil
}

// Stop releases the stream, waits for buffered chunks to settle, and returns
// the concatenated recording as a MediaAsset.
func (r *LiveRecorder) Stop() (models.MediaAsset, error) {
	r.mu.Lock()
	stream := r.stream
	collected := r.collected
	r.stream = nil
	r.mu.Unlock()

	if stream == nil {
		return models.MediaAsset{}, fmt.Errorf("no recording in progress")
	}
	stream.Stop()
	if collected != nil {
		<-collected
	}

	r.mu.Lock()
	chunks := r.chunks
	r.chunks = nil
	r.collected = nil
	r.mu.Unlock()

	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total == 0 {
		if err := stream.Err(); err != nil {
			return models.MediaAsset{}, fmt.Errorf("recording produced no data: %w", err)
		}
		return models.MediaAsset{}, fmt.Errorf("recording produced no data")
	}

	data := make([]byte, 0, total)
	for _, chunk := range chunks {
		data = append(data, chunk...)
	}
	r.logger.Info("recording stopped", "size_bytes", total, "chunks", len(chunks))
	return models.MediaAsset{
		Data:      data,
		MimeType:  IntermediateMimeType,
		SizeBytes: int64(total),
		Source:    models.SourceLiveRecording,
	}, nil
}

// Close releases any held stream without producing an asset. It is the
// teardown path and is safe to call at any time.
func (r *LiveRecorder) Close() {
	r.releaseCurrent()
}

func (r *LiveRecorder) releaseCurrent() {
	r.mu.Lock()
	stream := r.stream
	collected := r.collected
	r.stream = nil
	r.chunks = nil
	r.collected = nil
	r.mu.Unlock()

	if stream != nil {
		stream.Stop()
		if collected != nil {
			<-collected
		}
	}
}
