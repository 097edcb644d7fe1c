package transcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	runtimeScriptName = "transcode.sh"
	runtimeBinaryName = "ffmpeg-core.bin"

	defaultFetchTimeout   = 2 * time.Minute
	defaultConvertTimeout = 5 * time.Minute
)

// Runtime is the narrow interface the engine drives: load once, convert many.
type Runtime interface {
	// EnsureLoaded initializes the runtime. It is safe to call repeatedly;
	// only the first successful call performs work.
	EnsureLoaded(ctx context.Context) error
	// Convert re-encodes the input blob into the delivery format.
	Convert(ctx context.Context, input []byte) ([]byte, error)
	// Close releases the runtime's private filesystem.
	Close() error
}

// RuntimeConfig locates the two fixed runtime artifacts and bounds runtime
// operations.
type RuntimeConfig struct {
	// ArtifactBaseURL is the fixed location both artifacts are fetched from.
	ArtifactBaseURL string
	// WorkDir hosts the runtime's private filesystem; a temp dir when empty.
	WorkDir        string
	HTTPClient     *http.Client
	FetchTimeout   time.Duration
	ConvertTimeout time.Duration
}

// sandboxRuntime downloads a wrapper script and a transcoder binary into a
// private directory once per process and thereafter runs a
// write/exec/read cycle inside that directory for every conversion.
type sandboxRuntime struct {
	cfg        RuntimeConfig
	httpClient *http.Client

	mu     sync.Mutex
	loaded bool
	root   string
	script string
}

// NewRuntime constructs the sandboxed transcoder runtime. Nothing is fetched
// until EnsureLoaded runs.
func NewRuntime(cfg RuntimeConfig) (Runtime, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.ArtifactBaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("artifact base URL is required")
	}
	cfg.ArtifactBaseURL = base
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.ConvertTimeout <= 0 {
		cfg.ConvertTimeout = defaultConvertTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &sandboxRuntime{cfg: cfg, httpClient: httpClient}, nil
}

func (r *sandboxRuntime) EnsureLoaded(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}

	root := strings.TrimSpace(r.cfg.WorkDir)
	if root == "" {
		dir, err := os.MkdirTemp("", "clipflow-runtime-")
		if err != nil {
			return fmt.Errorf("create runtime dir: %w", err)
		}
		root = dir
	} else if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create runtime dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	// Both artifacts come from the same fixed base location and are fetched
	// concurrently; either failure aborts the load.
	group, ctx := errgroup.WithContext(ctx)
	scriptPath := filepath.Join(root, runtimeScriptName)
	binaryPath := filepath.Join(root, runtimeBinaryName)
	group.Go(func() error {
		return r.fetchArtifact(ctx, runtimeScriptName, scriptPath, 0o755)
	})
	group.Go(func() error {
		return r.fetchArtifact(ctx, runtimeBinaryName, binaryPath, 0o755)
	})
	if err := group.Wait(); err != nil {
		os.RemoveAll(root)
		return err
	}

	r.root = root
	r.script = scriptPath
	r.loaded = true
	return nil
}

func (r *sandboxRuntime) fetchArtifact(ctx context.Context, name, destination string, mode os.FileMode) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.ArtifactBaseURL+"/"+name, nil)
	if err != nil {
		return fmt.Errorf("create fetch request for %s: %w", name, err)
	}
	response, err := r.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", name, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", name, response.StatusCode)
	}

	file, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", name, err)
	}
	if _, err := io.Copy(file, response.Body); err != nil {
		file.Close()
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	return file.Close()
}

// Convert writes the input into the runtime's private filesystem, invokes the
// fixed transcode command, and reads the produced output back. Conversion
// temp files are removed regardless of outcome.
func (r *sandboxRuntime) Convert(ctx context.Context, input []byte) ([]byte, error) {
	r.mu.Lock()
	if !r.loaded {
		r.mu.Unlock()
		return nil, fmt.Errorf("runtime not loaded")
	}
	root := r.root
	script := r.script
	r.mu.Unlock()

	workDir, err := os.MkdirTemp(root, "convert-")
	if err != nil {
		return nil, fmt.Errorf("create conversion dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.bin")
	outputPath := filepath.Join(workDir, "output.mp4")
	if err := os.WriteFile(inputPath, input, 0o644); err != nil {
		return nil, fmt.Errorf("write conversion input: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.ConvertTimeout)
	defer cancel()

	// Widely-compatible codec, fast preset, fixed quality target, fixed
	// audio bitrate, metadata up front for fast start-of-playback streaming.
	cmd := exec.CommandContext(ctx, script,
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "28",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outputPath,
	)
	cmd.Dir = workDir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("transcode command: %s", detail)
		}
		return nil, fmt.Errorf("transcode command: %w", err)
	}

	output, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("read conversion output: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("conversion produced empty output")
	}
	return output, nil
}

func (r *sandboxRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		return nil
	}
	r.loaded = false
	root := r.root
	r.root = ""
	r.script = ""
	return os.RemoveAll(root)
}
