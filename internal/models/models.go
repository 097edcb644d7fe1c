package models

import (
	"fmt"
	"time"
)

// SourceKind distinguishes how a MediaAsset entered the pipeline.
type SourceKind string

const (
	SourceFileSelect    SourceKind = "file-select"
	SourceLiveRecording SourceKind = "live-recording"
)

// MediaAsset is the in-memory raw video captured or selected, prior to
// transcoding. It is immutable once validated and discarded on reset or
// successful persistence.
type MediaAsset struct {
	Data            []byte
	MimeType        string
	SizeBytes       int64
	DurationSeconds float64
	Source          SourceKind
}

// ReasonCode identifies why a validation gate rejected an asset.
type ReasonCode string

const (
	ReasonNone             ReasonCode = ""
	ReasonDurationExceeded ReasonCode = "duration-exceeded"
	ReasonSourceTooLarge   ReasonCode = "source-too-large"
	ReasonInvalidType      ReasonCode = "invalid-source-type"
)

// ValidationResult is derived per asset and never stored.
type ValidationResult struct {
	OK         bool
	Reason     ReasonCode
	MaxSeconds float64
	MaxBytes   int64
}

// TranscodeResult is owned by the pipeline for the lifetime of one upload
// attempt. UsedFallback reports that the engine re-labeled the original bytes
// instead of producing a real re-encode; callers use it for diagnostics only.
type TranscodeResult struct {
	Data         []byte
	MimeType     string
	UsedFallback bool
}

// UploadCredentials authorize exactly one direct upload to object storage.
// They are fetched fresh for every attempt and never cached or replayed.
type UploadCredentials struct {
	APIKey    string
	Signature string
	Timestamp int64
	Cloud     string
}

// RemoteReference is the durable pointer to the uploaded asset, the only
// artifact that survives the pipeline.
type RemoteReference struct {
	URL      string `json:"secure_url"`
	PublicID string `json:"public_id"`
}

// VideoReference is the committed application record for an uploaded video.
type VideoReference struct {
	ID        string    `json:"id"`
	URL       string    `json:"videoUrl"`
	PublicID  string    `json:"publicId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FormatClock renders a duration in seconds as M:SS, the form used by
// user-facing validation messages. Fractional seconds round up so a 31.2s
// video reports as 0:32 rather than appearing to meet a 31s ceiling.
func FormatClock(seconds float64) string {
	total := int64(seconds)
	if float64(total) < seconds {
		total++
	}
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
