// Package testsupport provides in-memory fakes for the pipeline's hardware
// and process boundaries: the capture device, the transcoder runtime, and the
// media metadata reader.
package testsupport

import (
	"context"
	"sync"

	"clipflow/internal/capture"
)

// DeviceStub is a capture.Device whose stream yields a fixed set of chunks
// and then idles until stopped.
type DeviceStub struct {
	ChunkData [][]byte
	OpenErr   error
	StreamErr error

	mu      sync.Mutex
	opens   int
	streams []*StreamStub
}

// OpenStream returns a stream over the configured chunks, or OpenErr.
func (d *DeviceStub) OpenStream(ctx context.Context, constraints capture.StreamConstraints) (capture.Stream, error) {
	d.mu.Lock()
	d.opens++
	d.mu.Unlock()
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	stream := &StreamStub{
		ch:  make(chan []byte, len(d.ChunkData)+1),
		err: d.StreamErr,
	}
	for _, chunk := range d.ChunkData {
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		stream.ch <- buf
	}
	d.mu.Lock()
	d.streams = append(d.streams, stream)
	d.mu.Unlock()
	return stream, nil
}

// Opens reports how many times a stream was acquired.
func (d *DeviceStub) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Streams returns every stream handed out, stopped or not.
func (d *DeviceStub) Streams() []*StreamStub {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*StreamStub, len(d.streams))
	copy(out, d.streams)
	return out
}

// StreamStub is the capture.Stream returned by DeviceStub.
type StreamStub struct {
	ch  chan []byte
	err error

	mu      sync.Mutex
	stopped bool
}

func (s *StreamStub) Chunks() <-chan []byte {
	return s.ch
}

// Stop is idempotent; the first call closes the chunk channel.
func (s *StreamStub) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.ch)
	return nil
}

func (s *StreamStub) Err() error {
	return s.err
}

// Stopped reports whether Stop was called.
func (s *StreamStub) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// RuntimeStub is a transcode.Runtime with scripted behaviour. The zero value
// loads successfully and echoes its input with the Prefix prepended.
type RuntimeStub struct {
	LoadErr    error
	ConvertErr error
	// Output overrides the conversion result; when nil the input is returned
	// with Prefix prepended.
	Output []byte
	Prefix []byte

	mu       sync.Mutex
	loads    int
	converts int
	closed   bool
}

func (r *RuntimeStub) EnsureLoaded(ctx context.Context) error {
	r.mu.Lock()
	r.loads++
	r.mu.Unlock()
	return r.LoadErr
}

func (r *RuntimeStub) Convert(ctx context.Context, input []byte) ([]byte, error) {
	r.mu.Lock()
	r.converts++
	r.mu.Unlock()
	if r.ConvertErr != nil {
		return nil, r.ConvertErr
	}
	if r.Output != nil {
		out := make([]byte, len(r.Output))
		copy(out, r.Output)
		return out, nil
	}
	out := make([]byte, 0, len(r.Prefix)+len(input))
	out = append(out, r.Prefix...)
	out = append(out, input...)
	return out, nil
}

func (r *RuntimeStub) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Loads reports how many times EnsureLoaded ran.
func (r *RuntimeStub) Loads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

// Converts reports how many conversions ran.
func (r *RuntimeStub) Converts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.converts
}

// Closed reports whether the runtime was torn down.
func (r *RuntimeStub) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// MetadataStub is a probe.MetadataReader returning a fixed duration or error.
type MetadataStub struct {
	Seconds float64
	Err     error

	mu    sync.Mutex
	reads int
}

func (m *MetadataStub) ReadDuration(ctx context.Context, path string) (float64, error) {
	m.mu.Lock()
	m.reads++
	m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Seconds, nil
}

// Reads reports how many probes ran.
func (m *MetadataStub) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}
