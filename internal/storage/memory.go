package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"clipflow/internal/models"
)

// MemoryStore is the in-memory VideoRepository used for development and
// tests.
type MemoryStore struct {
	mu         sync.RWMutex
	references map[string]models.VideoReference
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{references: make(map[string]models.VideoReference)}
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) CreateVideoReference(ctx context.Context, url, publicID string) (models.VideoReference, error) {
	if url == "" || publicID == "" {
		return models.VideoReference{}, fmt.Errorf("videoUrl and publicId are required")
	}
	ref := models.VideoReference{
		ID:        newID(),
		URL:       url,
		PublicID:  publicID,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.references[ref.ID] = ref
	s.mu.Unlock()
	return ref, nil
}

func (s *MemoryStore) DeleteVideoReference(ctx context.Context, id, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.references[id]
	if !ok || existing.PublicID != publicID {
		return ErrNotFound
	}
	delete(s.references, id)
	return nil
}

func (s *MemoryStore) ListVideoReferences(ctx context.Context) ([]models.VideoReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]models.VideoReference, 0, len(s.references))
	for _, ref := range s.references {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		return refs[i].CreatedAt.Before(refs[j].CreatedAt)
	})
	return refs, nil
}

func (s *MemoryStore) Close() {}

// MemoryRegistry is the in-memory SignatureRegistry. Entries expire lazily
// on the next Reserve call that touches them.
type MemoryRegistry struct {
	mu     sync.Mutex
	issued map[string]time.Time
}

// NewMemoryRegistry constructs an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{issued: make(map[string]time.Time)}
}

func (r *MemoryRegistry) Ping(ctx context.Context) error { return nil }

func (r *MemoryRegistry) Reserve(ctx context.Context, signature string, ttl time.Duration) error {
	if signature == "" {
		return fmt.Errorf("signature is required")
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if expires, ok := r.issued[signature]; ok && now.Before(expires) {
		return ErrSignatureReplayed
	}
	r.issued[signature] = now.Add(ttl)
	return nil
}

func (r *MemoryRegistry) Close() {}

func newID() string {
	var buffer [12]byte
	if _, err := rand.Read(buffer[:]); err != nil {
		return fmt.Sprintf("ref-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buffer[:])
}
