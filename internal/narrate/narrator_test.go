package narrate

import (
	"testing"
	"time"
)

func TestStageForElapsed(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		want    Stage
	}{
		{0, StagePreparing},
		{4900 * time.Millisecond, StagePreparing},
		{5 * time.Second, StageConverting},
		{14 * time.Second, StageConverting},
		{15 * time.Second, StageUploading},
		{29 * time.Second, StageUploading},
		{30 * time.Second, StageProcessing},
		{44 * time.Second, StageProcessing},
		{45 * time.Second, StageFinalizing},
		{2 * time.Minute, StageFinalizing},
	}
	for _, tc := range cases {
		if got := StageForElapsed(tc.elapsed); got != tc.want {
			t.Errorf("StageForElapsed(%s) = %s, want %s", tc.elapsed, got, tc.want)
		}
	}
}

func TestNarratorPublishesOnChangeOnly(t *testing.T) {
	var published []Stage
	now := time.Now()
	narrator := New(func(stage Stage) {
		published = append(published, stage)
	}, WithClock(func() time.Time { return now }))

	narrator.publish(StageForElapsed(0))
	narrator.publish(StageForElapsed(time.Second))
	narrator.publish(StageForElapsed(6 * time.Second))
	narrator.publish(StageForElapsed(7 * time.Second))
	narrator.publish(StageForElapsed(16 * time.Second))

	want := []Stage{StageConverting, StageUploading}
	if len(published) != len(want) {
		t.Fatalf("expected %d callbacks, got %d (%v)", len(want), len(published), published)
	}
	for i := range want {
		if published[i] != want[i] {
			t.Fatalf("callback %d = %s, want %s", i, published[i], want[i])
		}
	}
	if narrator.Current() != StageUploading {
		t.Fatalf("Current() = %s, want %s", narrator.Current(), StageUploading)
	}
}

func TestNarratorStartPublishesImmediately(t *testing.T) {
	clock := time.Now()
	stages := make(chan Stage, 1)
	narrator := New(func(stage Stage) {
		select {
		case stages <- stage:
		default:
		}
	}, WithClock(func() time.Time { return clock }))
	defer narrator.Stop()

	// An attempt that started twenty seconds ago lands in "uploading" before
	// the first tick.
	narrator.Start(clock.Add(-20 * time.Second))

	select {
	case stage := <-stages:
		if stage != StageUploading {
			t.Fatalf("initial stage = %s, want %s", stage, StageUploading)
		}
	case <-time.After(time.Second):
		t.Fatal("expected an immediate stage publication")
	}
}

func TestNarratorStopIsIdempotent(t *testing.T) {
	narrator := New(nil)
	narrator.Stop()
	narrator.Start(time.Now())
	narrator.Stop()
	narrator.Stop()
}
