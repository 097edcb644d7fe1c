package uploader

import (
	"context"
	"errors"
	"testing"

	"clipflow/internal/models"
	"clipflow/internal/signing"
	"clipflow/internal/testsupport/storagestub"
)

func TestUploadSendsSignedMultipart(t *testing.T) {
	service := storagestub.Start(storagestub.Options{
		Secret:    "secret",
		PublicID:  "clips/abc",
		SecureURL: "https://cdn.example.com/clips/abc.mp4",
	})
	defer service.Close()

	up, err := New(Config{UploadURL: service.URL(), Folder: "clips"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	creds := models.UploadCredentials{
		APIKey:    "key-1",
		Timestamp: 1700000000,
		Signature: signing.SignParams("secret", map[string]string{"folder": "clips"}, 1700000000),
	}
	result := models.TranscodeResult{Data: []byte("mp4-bytes"), MimeType: "video/mp4"}

	reference, err := up.Upload(context.Background(), result, creds)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if reference.PublicID != "clips/abc" {
		t.Fatalf("unexpected public id %q", reference.PublicID)
	}
	if reference.URL != "https://cdn.example.com/clips/abc.mp4" {
		t.Fatalf("unexpected secure url %q", reference.URL)
	}

	uploads := service.Uploads()
	if len(uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(uploads))
	}
	got := uploads[0]
	if got.Folder != "clips" || got.ResourceType != "video" || got.APIKey != "key-1" {
		t.Fatalf("unexpected upload fields %+v", got)
	}
	if got.FileBytes != int64(len(result.Data)) {
		t.Fatalf("expected %d file bytes, got %d", len(result.Data), got.FileBytes)
	}
}

func TestUploadRejectionCarriesStatusAndBody(t *testing.T) {
	service := storagestub.Start(storagestub.Options{
		FailUploads:  1,
		RejectStatus: 420,
		RejectBody:   `{"error":{"message":"rate limited"}}`,
	})
	defer service.Close()

	up, err := New(Config{UploadURL: service.URL()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = up.Upload(context.Background(), models.TranscodeResult{Data: []byte("x")}, models.UploadCredentials{Timestamp: 1})
	var rejected *models.UploadRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected UploadRejectedError, got %v", err)
	}
	if rejected.Status != 420 {
		t.Fatalf("unexpected status %d", rejected.Status)
	}
	if rejected.Body != `{"error":{"message":"rate limited"}}` {
		t.Fatalf("unexpected body %q", rejected.Body)
	}
}

func TestUploadBadSignatureRejected(t *testing.T) {
	service := storagestub.Start(storagestub.Options{Secret: "secret"})
	defer service.Close()

	up, err := New(Config{UploadURL: service.URL(), Folder: "clips"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	creds := models.UploadCredentials{Signature: "forged", Timestamp: 1}
	_, err = up.Upload(context.Background(), models.TranscodeResult{Data: []byte("x")}, creds)
	var rejected *models.UploadRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected UploadRejectedError, got %v", err)
	}
	if rejected.Status != 401 {
		t.Fatalf("unexpected status %d", rejected.Status)
	}
}

func TestNewRequiresUploadURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for empty upload URL")
	}
}
