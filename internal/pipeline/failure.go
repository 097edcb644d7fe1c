package pipeline

import (
	"errors"

	"clipflow/internal/models"
)

// FailureReason classifies a terminal attempt failure. TranscodeFailed is
// deliberately absent: transcode failures are always recovered internally by
// the fallback substitution and never surface here.
type FailureReason string

const (
	ReasonInvalidSourceType   FailureReason = "invalid-source-type"
	ReasonSourceTooLarge      FailureReason = "source-too-large"
	ReasonDurationUnavailable FailureReason = "duration-unavailable"
	ReasonDurationExceeded    FailureReason = "duration-exceeded"
	ReasonSignatureDenied     FailureReason = "signature-denied"
	ReasonUploadRejected      FailureReason = "upload-rejected"
	ReasonPersistFailed       FailureReason = "persist-failed"
	ReasonCameraAccessDenied  FailureReason = "camera-access-denied"
	ReasonUnknown             FailureReason = "unknown"
)

// Failure is the terminal error record for one attempt. Message is suitable
// for direct display; Err retains the underlying cause for diagnostics.
type Failure struct {
	Reason  FailureReason
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func classify(err error) FailureReason {
	var durationErr *models.DurationExceededError
	var signatureErr *models.SignatureDeniedError
	var uploadErr *models.UploadRejectedError
	switch {
	case errors.Is(err, models.ErrInvalidSourceType):
		return ReasonInvalidSourceType
	case errors.Is(err, models.ErrSourceTooLarge):
		return ReasonSourceTooLarge
	case errors.Is(err, models.ErrDurationUnavailable):
		return ReasonDurationUnavailable
	case errors.As(err, &durationErr):
		return ReasonDurationExceeded
	case errors.As(err, &signatureErr):
		return ReasonSignatureDenied
	case errors.As(err, &uploadErr):
		return ReasonUploadRejected
	case errors.Is(err, models.ErrPersistFailed):
		return ReasonPersistFailed
	case errors.Is(err, models.ErrCameraAccessDenied):
		return ReasonCameraAccessDenied
	default:
		return ReasonUnknown
	}
}

func userMessage(reason FailureReason, err error) string {
	switch reason {
	case ReasonInvalidSourceType:
		return "Please choose a video file."
	case ReasonSourceTooLarge:
		return "File is too large. The maximum size is 30 MB."
	case ReasonDurationUnavailable:
		return "We could not read your video. Please try a different file."
	case ReasonDurationExceeded:
		// The gate's message already names both the ceiling and the actual
		// duration; pass it through untouched.
		return err.Error()
	case ReasonSignatureDenied:
		return "Upload could not be authorized. Please try again."
	case ReasonUploadRejected:
		return "Upload failed. Please try again."
	case ReasonPersistFailed:
		return "Your video was uploaded but could not be saved. Please try again."
	case ReasonCameraAccessDenied:
		return "Camera access was denied. Please allow camera access and try again."
	default:
		return "Something went wrong. Please try again."
	}
}
