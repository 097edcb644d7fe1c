// Command clipflow ingests a short video clip from a file or a live device
// recording and uploads it through the full pipeline: validation, transcode,
// signed-upload negotiation, upload, and persistence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clipflow/internal/capture"
	"clipflow/internal/narrate"
	"clipflow/internal/observability/logging"
	"clipflow/internal/persist"
	"clipflow/internal/pipeline"
	"clipflow/internal/probe"
	"clipflow/internal/signing"
	"clipflow/internal/transcode"
	"clipflow/internal/uploader"
)

func main() {
	input := flag.String("input", "", "path to the video file to ingest")
	record := flag.Bool("record", false, "record from the capture device instead of reading a file")
	recordSeconds := flag.Int("record-seconds", 10, "how long to record from the device")
	captureDevice := flag.String("capture-device", "", "device path for live recording (default /dev/video0)")
	backendURL := flag.String("backend-url", "", "base URL of the clipflow backend")
	token := flag.String("token", "", "bearer token for the backend")
	uploadURL := flag.String("upload-url", "", "object-storage upload endpoint")
	artifactBaseURL := flag.String("artifact-base-url", "", "base URL hosting the transcoder runtime artifacts")
	folder := flag.String("folder", "", "remote folder for uploaded clips")
	maxDuration := flag.Float64("max-duration", 0, "maximum clip duration in seconds")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	quiet := flag.Bool("quiet", false, "suppress progress narration")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("CLIPFLOW_LOG_LEVEL")),
		Format: os.Getenv("CLIPFLOW_LOG_FORMAT"),
	})

	backend := firstNonEmpty(*backendURL, os.Getenv("CLIPFLOW_BACKEND_URL"))
	if backend == "" {
		fmt.Fprintln(os.Stderr, "backend URL is required: set --backend-url or CLIPFLOW_BACKEND_URL")
		os.Exit(2)
	}
	upload := firstNonEmpty(*uploadURL, os.Getenv("CLIPFLOW_UPLOAD_URL"))
	if upload == "" {
		fmt.Fprintln(os.Stderr, "upload URL is required: set --upload-url or CLIPFLOW_UPLOAD_URL")
		os.Exit(2)
	}
	artifacts := firstNonEmpty(*artifactBaseURL, os.Getenv("CLIPFLOW_ARTIFACT_BASE_URL"))
	if artifacts == "" {
		fmt.Fprintln(os.Stderr, "artifact base URL is required: set --artifact-base-url or CLIPFLOW_ARTIFACT_BASE_URL")
		os.Exit(2)
	}
	if !*record && strings.TrimSpace(*input) == "" {
		fmt.Fprintln(os.Stderr, "nothing to ingest: pass --input FILE or --record")
		os.Exit(2)
	}

	bearer := firstNonEmpty(*token, os.Getenv("CLIPFLOW_TOKEN"))
	clipFolder := firstNonEmpty(*folder, os.Getenv("CLIPFLOW_FOLDER"))

	signatures, err := signing.NewClient(signing.ClientConfig{
		BaseURL: backend,
		Token:   bearer,
		Folder:  clipFolder,
		Logger:  logging.WithComponent(logger, "signing"),
	})
	if err != nil {
		fatal(err)
	}
	up, err := uploader.New(uploader.Config{
		UploadURL: upload,
		Folder:    clipFolder,
		Logger:    logging.WithComponent(logger, "uploader"),
	})
	if err != nil {
		fatal(err)
	}
	persistence, err := persist.NewClient(persist.ClientConfig{
		BaseURL: backend,
		Token:   bearer,
		Logger:  logging.WithComponent(logger, "persist"),
	})
	if err != nil {
		fatal(err)
	}
	runtime, err := transcode.NewRuntime(transcode.RuntimeConfig{ArtifactBaseURL: artifacts})
	if err != nil {
		fatal(err)
	}
	engine := transcode.NewEngine(transcode.EngineConfig{
		Runtime: runtime,
		Logger:  logging.WithComponent(logger, "transcode"),
	})

	var recorder *capture.LiveRecorder
	if *record {
		device := capture.NewFFmpegDevice(capture.FFmpegDeviceConfig{
			VideoInput: firstNonEmpty(*captureDevice, os.Getenv("CLIPFLOW_CAPTURE_DEVICE")),
			AudioInput: strings.TrimSpace(os.Getenv("CLIPFLOW_CAPTURE_AUDIO")),
		})
		recorder = capture.NewLiveRecorder(capture.LiveRecorderConfig{
			Device: device,
			Logger: logging.WithComponent(logger, "capture"),
		})
	}

	onStage := func(stage narrate.Stage) {
		if !*quiet {
			fmt.Printf("  %s\n", stage)
		}
	}

	flow, err := pipeline.New(pipeline.Config{
		FileSource:         capture.NewFileSource(capture.FileSourceConfig{Logger: logging.WithComponent(logger, "capture")}),
		Recorder:           recorder,
		Probe:              probe.New(),
		Engine:             engine,
		Signatures:         signatures,
		Uploader:           up,
		Persistence:        persistence,
		MaxDurationSeconds: *maxDuration,
		AutoStartLive:      true,
		OnStage:            onStage,
		Logger:             logging.WithComponent(logger, "pipeline"),
	})
	if err != nil {
		fatal(err)
	}
	defer flow.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *record {
		err = runRecording(ctx, flow, *recordSeconds)
	} else {
		if err = flow.SelectFile(ctx, *input); err == nil {
			err = flow.StartUpload(ctx)
		}
	}
	if err != nil {
		if failure, ok := flow.Failure(); ok {
			fmt.Fprintln(os.Stderr, failure.Message)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	reference, ok := flow.Reference()
	if !ok {
		fmt.Fprintln(os.Stderr, "upload finished without a remote reference")
		os.Exit(1)
	}
	fmt.Printf("uploaded %s\n", reference.PublicID)
	fmt.Println(reference.URL)
}

func runRecording(ctx context.Context, flow *pipeline.Pipeline, seconds int) error {
	if seconds <= 0 {
		seconds = 10
	}
	if err := flow.StartRecording(ctx); err != nil {
		return err
	}
	fmt.Printf("recording for %ds (Ctrl-C to stop early)...\n", seconds)
	select {
	case <-time.After(time.Duration(seconds) * time.Second):
	case <-ctx.Done():
	}
	return flow.StopRecording(context.WithoutCancel(ctx))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
