package capture

import (
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"clipflow/internal/models"
)

// DefaultMaxFileBytes is the enforced file-selection ceiling. The user-facing
// rejection message states 30 MB; the enforced value is 100 MiB. The mismatch
// is carried over intact from the original product copy.
const DefaultMaxFileBytes = 100 << 20

const sizeLimitMessage = "File is too large. The maximum size is 30 MB."

// Candidate is one dropped or picked file offered to the file source.
type Candidate struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileSourceConfig adjusts file-selection policy.
type FileSourceConfig struct {
	MaxSizeBytes int64
	Logger       *slog.Logger
}

// FileSource produces a MediaAsset from a user-chosen file. Non-video content
// types and oversized files are rejected immediately, before any probe,
// transcode, or network call.
type FileSource struct {
	maxBytes int64
	logger   *slog.Logger
}

// NewFileSource constructs a FileSource with the configured size ceiling.
func NewFileSource(cfg FileSourceConfig) *FileSource {
	maxBytes := cfg.MaxSizeBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{maxBytes: maxBytes, logger: logger}
}

// MaxSizeBytes exposes the enforced ceiling.
func (s *FileSource) MaxSizeBytes() int64 {
	return s.maxBytes
}

// Open selects the file at path. The declared content type is derived from
// the file extension; size is checked before the content is read.
func (s *FileSource) Open(path string) (models.MediaAsset, error) {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if err := s.checkType(contentType); err != nil {
		return models.MediaAsset{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := s.checkSize(info.Size()); err != nil {
		return models.MediaAsset{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.MediaAsset{}, fmt.Errorf("read %s: %w", path, err)
	}
	return s.asset(data, contentType), nil
}

// Accept takes a drag-and-drop style candidate list and considers only the
// first item; the rest are ignored entirely.
func (s *FileSource) Accept(candidates ...Candidate) (models.MediaAsset, error) {
	if len(candidates) == 0 {
		return models.MediaAsset{}, fmt.Errorf("no file provided")
	}
	first := candidates[0]
	if len(candidates) > 1 {
		s.logger.Debug("ignoring extra dropped files", "ignored", len(candidates)-1)
	}
	if err := s.checkType(first.ContentType); err != nil {
		return models.MediaAsset{}, err
	}
	if err := s.checkSize(int64(len(first.Data))); err != nil {
		return models.MediaAsset{}, err
	}
	return s.asset(first.Data, first.ContentType), nil
}

func (s *FileSource) checkType(contentType string) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/") {
		return fmt.Errorf("%w: %q is not a video type", models.ErrInvalidSourceType, contentType)
	}
	return nil
}

func (s *FileSource) checkSize(size int64) error {
	if size > s.maxBytes {
		return fmt.Errorf("%w: %s", models.ErrSourceTooLarge, sizeLimitMessage)
	}
	return nil
}

func (s *FileSource) asset(data []byte, contentType string) models.MediaAsset {
	return models.MediaAsset{
		Data:      data,
		MimeType:  strings.ToLower(strings.TrimSpace(contentType)),
		SizeBytes: int64(len(data)),
		Source:    models.SourceFileSelect,
	}
}
