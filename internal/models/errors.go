package models

import (
	"errors"
	"fmt"
)

// Sentinel failures surfaced by the ingestion pipeline. Every one of them is
// terminal for the current attempt; there is no automatic retry anywhere.
var (
	ErrInvalidSourceType   = errors.New("invalid source type")
	ErrSourceTooLarge      = errors.New("source too large")
	ErrDurationUnavailable = errors.New("duration unavailable")
	ErrCameraAccessDenied  = errors.New("camera access denied")
	ErrPersistFailed       = errors.New("persist failed")
)

// DurationExceededError reports a validation-gate rejection. Message renders
// both the ceiling and the actual duration as M:SS.
type DurationExceededError struct {
	MaxSeconds    float64
	ActualSeconds float64
}

func (e *DurationExceededError) Error() string {
	return fmt.Sprintf(
		"video is too long. Maximum duration is %s. Your video is %s.",
		FormatClock(e.MaxSeconds), FormatClock(e.ActualSeconds),
	)
}

// SignatureDeniedError reports a backend-refused signature request. The
// backend's embedded error field is carried verbatim; the client never
// retries it automatically.
type SignatureDeniedError struct {
	Reason string
}

func (e *SignatureDeniedError) Error() string {
	if e.Reason == "" {
		return "signature denied"
	}
	return fmt.Sprintf("signature denied: %s", e.Reason)
}

// UploadRejectedError carries the object-storage HTTP status and the response
// body read as diagnostic text.
type UploadRejectedError struct {
	Status int
	Body   string
}

func (e *UploadRejectedError) Error() string {
	return fmt.Sprintf("upload rejected with status %d: %s", e.Status, e.Body)
}
