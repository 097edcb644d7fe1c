package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreCreateAndList(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	first, err := store.CreateVideoReference(ctx, "https://cdn/one.mp4", "clips/one")
	if err != nil {
		t.Fatalf("CreateVideoReference: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("reference missing generated fields: %+v", first)
	}
	if _, err := store.CreateVideoReference(ctx, "https://cdn/two.mp4", "clips/two"); err != nil {
		t.Fatalf("CreateVideoReference: %v", err)
	}

	refs, err := store.ListVideoReferences(ctx)
	if err != nil {
		t.Fatalf("ListVideoReferences: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 references, got %d", len(refs))
	}
	if refs[0].CreatedAt.After(refs[1].CreatedAt) {
		t.Fatal("references must come back in creation order")
	}
}

func TestMemoryStoreRejectsEmptyFields(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.CreateVideoReference(context.Background(), "", "clips/one"); err == nil {
		t.Fatal("empty videoUrl must be rejected")
	}
	if _, err := store.CreateVideoReference(context.Background(), "https://cdn/one.mp4", ""); err == nil {
		t.Fatal("empty publicId must be rejected")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ref, err := store.CreateVideoReference(ctx, "https://cdn/one.mp4", "clips/one")
	if err != nil {
		t.Fatalf("CreateVideoReference: %v", err)
	}

	if err := store.DeleteVideoReference(ctx, ref.ID, "clips/other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mismatched publicId must be ErrNotFound, got %v", err)
	}
	if err := store.DeleteVideoReference(ctx, ref.ID, ref.PublicID); err != nil {
		t.Fatalf("DeleteVideoReference: %v", err)
	}
	if err := store.DeleteVideoReference(ctx, ref.ID, ref.PublicID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete must be ErrNotFound, got %v", err)
	}
}

func TestMemoryRegistrySingleUse(t *testing.T) {
	registry := NewMemoryRegistry()
	defer registry.Close()
	ctx := context.Background()

	if err := registry.Reserve(ctx, "sig-1", time.Minute); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := registry.Reserve(ctx, "sig-1", time.Minute); !errors.Is(err, ErrSignatureReplayed) {
		t.Fatalf("expected ErrSignatureReplayed, got %v", err)
	}
	if err := registry.Reserve(ctx, "sig-2", time.Minute); err != nil {
		t.Fatalf("a distinct signature must reserve cleanly: %v", err)
	}
}

func TestMemoryRegistryExpiry(t *testing.T) {
	registry := NewMemoryRegistry()
	ctx := context.Background()

	if err := registry.Reserve(ctx, "sig-1", -time.Second); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	// The earlier reservation already expired, so the signature is free again.
	if err := registry.Reserve(ctx, "sig-1", time.Minute); err != nil {
		t.Fatalf("expired reservation must not block reuse: %v", err)
	}
}

func TestMemoryRegistryRequiresSignature(t *testing.T) {
	registry := NewMemoryRegistry()
	if err := registry.Reserve(context.Background(), "", time.Minute); err == nil {
		t.Fatal("empty signature must be rejected")
	}
}
