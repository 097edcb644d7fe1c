package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipflow/internal/capture"
	"clipflow/internal/models"
	"clipflow/internal/narrate"
	"clipflow/internal/observability/metrics"
	"clipflow/internal/persist"
	"clipflow/internal/probe"
	"clipflow/internal/signing"
	"clipflow/internal/transcode"
	"clipflow/internal/uploader"
)

// DefaultMaxDurationSeconds is the validation-gate ceiling for this workflow.
const DefaultMaxDurationSeconds = 31

// Config wires the pipeline's collaborators. FileSource, Probe, Engine,
// Signatures, Uploader, and Persistence are required; Recorder is optional
// and enables the live-recording entry point.
type Config struct {
	FileSource  *capture.FileSource
	Recorder    *capture.LiveRecorder
	Probe       *probe.DurationProbe
	Engine      *transcode.Engine
	Signatures  *signing.Client
	Uploader    *uploader.Uploader
	Persistence *persist.Client

	MaxDurationSeconds float64
	// AutoStartLive starts the upload immediately after a live recording
	// validates, instead of waiting for an explicit StartUpload.
	AutoStartLive bool

	OnStage func(narrate.Stage)
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

// Pipeline sequences capture, validation, transcoding, signed-upload
// negotiation, upload, and persistence for one asset at a time. It owns the
// overall state machine and is the single contract presentation layers
// consume.
//
// Scheduling is strictly sequential: every step completes before the next
// starts, and a new attempt is refused while the pipeline is not in Idle,
// Selecting, or a terminal state. The narrator runs concurrently but writes
// narration state only.
type Pipeline struct {
	fileSource  *capture.FileSource
	liveSource  *capture.LiveRecorder
	probe       *probe.DurationProbe
	engine      *transcode.Engine
	signatures  *signing.Client
	uploader    *uploader.Uploader
	persistence *persist.Client
	narrator    *narrate.Narrator
	logger      *slog.Logger
	recorder    *metrics.Recorder

	maxSeconds    float64
	autoStartLive bool

	mu               sync.Mutex
	state            State
	asset            *models.MediaAsset
	failure          *Failure
	reference        *models.RemoteReference
	attemptStartedAt time.Time
	closed           bool
}

// New validates the configuration and constructs an idle Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.FileSource == nil {
		return nil, fmt.Errorf("file source is required")
	}
	if cfg.Probe == nil {
		return nil, fmt.Errorf("duration probe is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("transcode engine is required")
	}
	if cfg.Signatures == nil {
		return nil, fmt.Errorf("signature client is required")
	}
	if cfg.Uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if cfg.Persistence == nil {
		return nil, fmt.Errorf("persistence client is required")
	}
	maxSeconds := cfg.MaxDurationSeconds
	if maxSeconds <= 0 {
		maxSeconds = DefaultMaxDurationSeconds
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}
	return &Pipeline{
		fileSource:    cfg.FileSource,
		liveSource:    cfg.Recorder,
		probe:         cfg.Probe,
		engine:        cfg.Engine,
		signatures:    cfg.Signatures,
		uploader:      cfg.Uploader,
		persistence:   cfg.Persistence,
		narrator:      narrate.New(cfg.OnStage),
		logger:        logger,
		recorder:      recorder,
		maxSeconds:    maxSeconds,
		autoStartLive: cfg.AutoStartLive,
		state:         StateIdle,
	}, nil
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Asset returns the held MediaAsset, if any.
func (p *Pipeline) Asset() (models.MediaAsset, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.asset == nil {
		return models.MediaAsset{}, false
	}
	return *p.asset, true
}

// Failure returns the terminal failure of the last attempt, if the pipeline
// is in the Errored state.
func (p *Pipeline) Failure() (*Failure, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateErrored || p.failure == nil {
		return nil, false
	}
	return p.failure, true
}

// Reference returns the RemoteReference of the last successful attempt while
// the pipeline is in the Succeeded state.
func (p *Pipeline) Reference() (models.RemoteReference, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateSucceeded || p.reference == nil {
		return models.RemoteReference{}, false
	}
	return *p.reference, true
}

// Narration returns the most recent narration stage label.
func (p *Pipeline) Narration() narrate.Stage {
	return p.narrator.Current()
}

// SelectFile runs the file entry point: capture, probe, validation. On
// success the asset is held and the pipeline waits in Selecting for an
// explicit StartUpload.
func (p *Pipeline) SelectFile(ctx context.Context, path string) error {
	return p.selectAsset(ctx, func() (models.MediaAsset, error) {
		return p.fileSource.Open(path)
	})
}

// AcceptDrop runs the drag-and-drop entry point; only the first candidate is
// considered.
func (p *Pipeline) AcceptDrop(ctx context.Context, candidates ...capture.Candidate) error {
	return p.selectAsset(ctx, func() (models.MediaAsset, error) {
		return p.fileSource.Accept(candidates...)
	})
}

// StartRecording begins a live device recording. The pipeline must be in
// Idle, Selecting, or a terminal state.
func (p *Pipeline) StartRecording(ctx context.Context) error {
	if p.liveSource == nil {
		return fmt.Errorf("no capture device configured")
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("pipeline is closed")
	}
	if p.state.active() {
		p.mu.Unlock()
		return fmt.Errorf("an ingestion attempt is already in progress")
	}
	p.state = StateSelecting
	p.mu.Unlock()

	if err := p.liveSource.Start(ctx); err != nil {
		p.fail(err)
		return err
	}
	return nil
}

// StopRecording finalizes the live recording, validates it, and -- when
// AutoStartLive is set -- immediately starts the upload.
func (p *Pipeline) StopRecording(ctx context.Context) error {
	if p.liveSource == nil {
		return fmt.Errorf("no capture device configured")
	}
	if err := p.selectAsset(ctx, p.liveSource.Stop); err != nil {
		return err
	}
	if p.autoStartLive {
		return p.StartUpload(ctx)
	}
	return nil
}

// selectAsset captures an asset, probes its duration, and runs the
// validation gate. A validated asset is held with the pipeline back in
// Selecting; any failure moves to Errored with no asset held.
func (p *Pipeline) selectAsset(ctx context.Context, produce func() (models.MediaAsset, error)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("pipeline is closed")
	}
	if p.state.active() {
		p.mu.Unlock()
		return fmt.Errorf("an ingestion attempt is already in progress")
	}
	p.state = StateSelecting
	p.asset = nil
	p.failure = nil
	p.reference = nil
	p.mu.Unlock()

	asset, err := produce()
	if err != nil {
		p.fail(err)
		return err
	}

	p.setState(StateValidating)
	seconds, err := p.probe.Duration(ctx, asset.Data)
	if err != nil {
		p.fail(err)
		return err
	}
	asset.DurationSeconds = seconds

	if result := p.validate(seconds); !result.OK {
		err := &models.DurationExceededError{MaxSeconds: p.maxSeconds, ActualSeconds: seconds}
		p.fail(err)
		return err
	}

	p.mu.Lock()
	p.asset = &asset
	p.state = StateSelecting
	p.mu.Unlock()
	p.logger.Info("asset validated",
		"source", asset.Source,
		"duration_seconds", seconds,
		"size_bytes", asset.SizeBytes,
	)
	return nil
}

// validate applies the duration ceiling. It is synchronous and side-effect
// free given a duration value.
func (p *Pipeline) validate(seconds float64) models.ValidationResult {
	result := models.ValidationResult{
		OK:         seconds <= p.maxSeconds,
		MaxSeconds: p.maxSeconds,
		MaxBytes:   p.fileSource.MaxSizeBytes(),
	}
	if !result.OK {
		result.Reason = models.ReasonDurationExceeded
	}
	return result
}

// StartUpload runs one upload attempt over the held asset: Converting,
// RequestingSignature, Uploading, Persisting, Succeeded. Credentials are
// fetched fresh inside the attempt and the transcode result is handed to the
// uploader exactly once. On failure the asset is preserved so the caller is
// not forced to re-select; on success all working state is cleared.
func (p *Pipeline) StartUpload(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("pipeline is closed")
	}
	if p.state.active() {
		p.mu.Unlock()
		return fmt.Errorf("an ingestion attempt is already in progress")
	}
	if p.asset == nil {
		p.mu.Unlock()
		return fmt.Errorf("no validated asset to upload")
	}
	asset := *p.asset
	p.state = StateConverting
	p.attemptStartedAt = time.Now()
	startedAt := p.attemptStartedAt
	p.mu.Unlock()

	p.recorder.AttemptStarted()
	p.narrator.Start(startedAt)
	defer p.narrator.Stop()

	result := p.engine.Convert(ctx, asset)
	if result.UsedFallback {
		p.logger.Warn("conversion used fallback substitution", "source", asset.Source)
	}

	p.setState(StateRequestingSignature)
	creds, err := p.signatures.Fetch(ctx)
	if err != nil {
		p.recorder.ObserveSignature("denied")
		p.fail(err)
		return err
	}
	p.recorder.ObserveSignature("issued")

	p.setState(StateUploading)
	uploadSize := int64(len(result.Data))
	reference, err := p.uploader.Upload(ctx, result, creds)
	// Ownership of the transcode result passed to the uploader above; it is
	// never reused, so a failed upload restarts from Converting with fresh
	// credentials.
	result = models.TranscodeResult{}
	if err != nil {
		p.recorder.ObserveUpload("rejected", 0)
		p.fail(err)
		return err
	}
	p.recorder.ObserveUpload("accepted", uploadSize)

	p.setState(StatePersisting)
	if err := p.persistence.Commit(ctx, reference); err != nil {
		p.recorder.ObservePersist("failed")
		// The remote object exists but is unreferenced from here on; no
		// compensating deletion is attempted.
		p.fail(err)
		return err
	}
	p.recorder.ObservePersist("committed")

	p.mu.Lock()
	p.state = StateSucceeded
	p.asset = nil
	p.failure = nil
	p.reference = &reference
	p.mu.Unlock()
	p.recorder.AttemptFinished(string(asset.Source), "succeeded")
	p.logger.Info("ingestion succeeded", "public_id", reference.PublicID)
	return nil
}

// Reset returns the pipeline to Idle from any non-active state, clearing the
// held asset, the failure record, and any live stream.
func (p *Pipeline) Reset() error {
	p.mu.Lock()
	if p.state.active() {
		p.mu.Unlock()
		return fmt.Errorf("cannot reset while an attempt is in progress")
	}
	p.state = StateIdle
	p.asset = nil
	p.failure = nil
	p.reference = nil
	p.mu.Unlock()

	if p.liveSource != nil {
		p.liveSource.Close()
	}
	p.narrator.Stop()
	return nil
}

// Close tears the pipeline down: the device stream is released, the narrator
// stopped, and the engine reference dropped. In-flight network calls are not
// aborted; they complete and their results are discarded.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.asset = nil
	p.failure = nil
	p.reference = nil
	p.state = StateIdle
	p.mu.Unlock()

	if p.liveSource != nil {
		p.liveSource.Close()
	}
	p.narrator.Stop()
	return p.engine.Release()
}

func (p *Pipeline) setState(next State) {
	p.mu.Lock()
	p.state = next
	p.mu.Unlock()
}

// fail records a terminal failure. The asset survives failures that happen
// after validation so the user can retry without re-selecting; selection and
// validation failures leave no asset behind.
func (p *Pipeline) fail(err error) {
	reason := classify(err)
	failure := &Failure{
		Reason:  reason,
		Message: userMessage(reason, err),
		Err:     err,
	}

	p.mu.Lock()
	source := "unknown"
	if p.asset != nil {
		source = string(p.asset.Source)
	}
	switch reason {
	case ReasonInvalidSourceType, ReasonSourceTooLarge, ReasonDurationUnavailable,
		ReasonDurationExceeded, ReasonCameraAccessDenied:
		p.asset = nil
	}
	p.state = StateErrored
	p.failure = failure
	p.mu.Unlock()

	p.recorder.AttemptFinished(source, string(reason))
	p.logger.Error("ingestion attempt failed", "reason", reason, "error", err)
}
