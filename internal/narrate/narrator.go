// Package narrate maps elapsed wall-clock time since an upload attempt began
// to a human-readable stage label. The narration is intentionally decoupled
// from real step boundaries: it may say "uploading" while the pipeline is
// still converting. It is approximate UX messaging, never a progress
// guarantee, because the underlying operations report no fine-grained
// progress at all.
package narrate

import (
	"sync"
	"time"
)

// Stage is a cosmetic narration label.
type Stage string

const (
	StagePreparing  Stage = "preparing"
	StageConverting Stage = "converting"
	StageUploading  Stage = "uploading"
	StageProcessing Stage = "processing"
	StageFinalizing Stage = "finalizing"
)

// StageForElapsed maps elapsed time to a stage label using the fixed
// breakpoints at 5, 15, 30, and 45 seconds.
func StageForElapsed(elapsed time.Duration) Stage {
	seconds := elapsed.Seconds()
	switch {
	case seconds < 5:
		return StagePreparing
	case seconds < 15:
		return StageConverting
	case seconds < 30:
		return StageUploading
	case seconds < 45:
		return StageProcessing
	default:
		return StageFinalizing
	}
}

// Narrator drives a one-second ticker while an attempt is active and reports
// stage labels through the OnStage callback. It writes narration state only;
// it never touches pipeline state, so it cannot race the pipeline's own
// transitions.
type Narrator struct {
	onStage func(Stage)
	now     func() time.Time

	mu      sync.Mutex
	current Stage
	stop    chan struct{}
	done    chan struct{}
}

// Option adjusts Narrator construction.
type Option func(*Narrator)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(n *Narrator) {
		if now != nil {
			n.now = now
		}
	}
}

// New constructs a Narrator. onStage may be nil; Current still tracks the
// latest label.
func New(onStage func(Stage), opts ...Option) *Narrator {
	narrator := &Narrator{
		onStage: onStage,
		now:     time.Now,
		current: StagePreparing,
	}
	for _, opt := range opts {
		opt(narrator)
	}
	return narrator
}

// Start begins ticking against the provided attempt start timestamp. A
// narrator already running is stopped first. The initial stage is published
// immediately so callers see a label before the first tick.
func (n *Narrator) Start(startedAt time.Time) {
	n.Stop()

	n.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	n.stop = stop
	n.done = done
	n.mu.Unlock()

	n.publish(StageForElapsed(n.now().Sub(startedAt)))

	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				n.publish(StageForElapsed(n.now().Sub(startedAt)))
			}
		}
	}()
}

// Stop halts the ticker and releases its resources. Safe to call repeatedly
// and when the narrator never started.
func (n *Narrator) Stop() {
	n.mu.Lock()
	stop := n.stop
	done := n.done
	n.stop = nil
	n.done = nil
	n.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Current returns the most recently published stage label.
func (n *Narrator) Current() Stage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Narrator) publish(stage Stage) {
	n.mu.Lock()
	changed := stage != n.current
	n.current = stage
	callback := n.onStage
	n.mu.Unlock()

	if changed && callback != nil {
		callback(stage)
	}
}
