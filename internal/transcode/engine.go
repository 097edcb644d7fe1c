// Package transcode converts an arbitrary input media blob into the
// normalized MP4 delivery format. Conversion never fails hard: when the
// sandboxed runtime cannot produce a real re-encode, the engine re-labels the
// original bytes with the delivery MIME type instead, so the pipeline always
// has something to upload.
package transcode

import (
	"context"
	"log/slog"
	"sync"

	"clipflow/internal/models"
	"clipflow/internal/observability/metrics"
)

// DeliveryMimeType is the normalized container type every conversion reports,
// including fallback re-labels. A fallback result may therefore carry bytes
// that do not match the declared type; callers detect that via UsedFallback.
const DeliveryMimeType = "video/mp4"

// EngineConfig wires the engine's runtime and instrumentation.
type EngineConfig struct {
	Runtime  Runtime
	Logger   *slog.Logger
	Recorder *metrics.Recorder
}

// Engine is a reference-counted front over a lazily-loaded runtime. The
// runtime is initialized at most once per engine lifetime; every holder calls
// Release when done and the last release tears the runtime down.
type Engine struct {
	runtime  Runtime
	logger   *slog.Logger
	recorder *metrics.Recorder

	mu   sync.Mutex
	refs int
}

// NewEngine constructs an Engine holding one reference.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.Default()
	}
	return &Engine{
		runtime:  cfg.Runtime,
		logger:   logger,
		recorder: recorder,
		refs:     1,
	}
}

// Acquire adds a reference to the engine so another pipeline instance can
// share the loaded runtime.
func (e *Engine) Acquire() *Engine {
	e.mu.Lock()
	e.refs++
	e.mu.Unlock()
	return e
}

// Release drops a reference; the last release closes the runtime.
func (e *Engine) Release() error {
	e.mu.Lock()
	if e.refs > 0 {
		e.refs--
	}
	closing := e.refs == 0
	e.mu.Unlock()
	if !closing || e.runtime == nil {
		return nil
	}
	return e.runtime.Close()
}

// Convert produces a TranscodeResult for the asset. A failure at any step --
// runtime load, input write, command execution, or output read -- falls back
// to re-labeling the original bytes with the delivery type. The failure is
// logged and counted but never surfaced to the caller.
func (e *Engine) Convert(ctx context.Context, asset models.MediaAsset) models.TranscodeResult {
	e.recorder.ConversionStarted()

	output, err := e.convert(ctx, asset.Data)
	if err != nil {
		e.logger.Warn("transcode failed, substituting original bytes",
			"error", err,
			"input_mime", asset.MimeType,
			"input_bytes", asset.SizeBytes,
		)
		e.recorder.ConversionFinished(true)
		return models.TranscodeResult{
			Data:         asset.Data,
			MimeType:     DeliveryMimeType,
			UsedFallback: true,
		}
	}

	e.recorder.ConversionFinished(false)
	return models.TranscodeResult{
		Data:         output,
		MimeType:     DeliveryMimeType,
		UsedFallback: false,
	}
}

func (e *Engine) convert(ctx context.Context, input []byte) ([]byte, error) {
	if err := e.runtime.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return e.runtime.Convert(ctx, input)
}
