package serverutil

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

// fakeService blocks in Start until Shutdown releases it.
type fakeService struct {
	startErr    error
	shutdownErr error

	mu       sync.Mutex
	started  bool
	shutdown bool
	release  chan struct{}
}

func newFakeService() *fakeService {
	return &fakeService{release: make(chan struct{})}
}

func (s *fakeService) Start() error {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	<-s.release
	return http.ErrServerClosed
}

func (s *fakeService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
	close(s.release)
	return s.shutdownErr
}

func (s *fakeService) wasShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func TestRunShutsDownOnContextCancel(t *testing.T) {
	service := newFakeService()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, Config{Service: service}) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if !service.wasShutdown() {
		t.Fatal("Shutdown must run on context cancellation")
	}
}

func TestRunReturnsStartError(t *testing.T) {
	service := newFakeService()
	service.startErr = errors.New("listen tcp: address in use")

	err := Run(context.Background(), Config{Service: service})
	if !errors.Is(err, service.startErr) {
		t.Fatalf("expected start error, got %v", err)
	}
	if service.wasShutdown() {
		t.Fatal("Shutdown must not run when Start fails immediately")
	}
}

func TestRunTreatsServerClosedAsClean(t *testing.T) {
	service := newFakeService()
	service.startErr = http.ErrServerClosed

	if err := Run(context.Background(), Config{Service: service}); err != nil {
		t.Fatalf("ErrServerClosed must map to nil, got %v", err)
	}
}

func TestRunSurfacesShutdownError(t *testing.T) {
	service := newFakeService()
	service.shutdownErr = errors.New("drain failed")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, Config{Service: service})
	if !errors.Is(err, service.shutdownErr) {
		t.Fatalf("expected shutdown error, got %v", err)
	}
}

func TestRunRequiresService(t *testing.T) {
	if err := Run(context.Background(), Config{}); err == nil {
		t.Fatal("Run without a service must fail")
	}
}
