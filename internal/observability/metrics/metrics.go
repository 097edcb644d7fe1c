package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// AttemptLabel identifies a finished ingestion attempt by source kind and
// terminal outcome ("succeeded" or a failure reason).
type AttemptLabel struct {
	Source  string
	Outcome string
}

// Recorder aggregates in-memory metrics counters and gauges for HTTP requests,
// ingestion attempts, transcode conversions, signature issuance, uploads, and
// persistence commits. It coordinates concurrent writers via a RWMutex while
// exposing thread-safe gauges for in-flight work.
type Recorder struct {
	mu                sync.RWMutex
	requestCount      map[requestLabel]uint64
	requestDuration   map[requestLabel]time.Duration
	attempts          map[AttemptLabel]uint64
	transcodeEvents   map[string]uint64
	signatureEvents   map[string]uint64
	uploadEvents      map[string]uint64
	persistEvents     map[string]uint64
	uploadBytes       atomic.Int64
	activeAttempts    atomic.Int64
	activeConversions atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers
// can immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		attempts:        make(map[AttemptLabel]uint64),
		transcodeEvents: make(map[string]uint64),
		signatureEvents: make(map[string]uint64),
		uploadEvents:    make(map[string]uint64),
		persistEvents:   make(map[string]uint64),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// AttemptStarted increments the gauge of in-flight ingestion attempts.
func (r *Recorder) AttemptStarted() {
	r.activeAttempts.Add(1)
}

// AttemptFinished records a terminal attempt outcome keyed by source kind and
// outcome name, and decrements the in-flight gauge.
func (r *Recorder) AttemptFinished(source, outcome string) {
	label := AttemptLabel{Source: normalizeName(source), Outcome: normalizeName(outcome)}
	r.mu.Lock()
	r.attempts[label]++
	r.mu.Unlock()
	r.decrementGauge(&r.activeAttempts)
}

// ConversionStarted increments the gauge of in-flight transcode conversions.
func (r *Recorder) ConversionStarted() {
	r.activeConversions.Add(1)
}

// ConversionFinished records whether the conversion produced a real re-encode
// or fell back to re-labeling the input, and decrements the in-flight gauge.
func (r *Recorder) ConversionFinished(usedFallback bool) {
	event := "encoded"
	if usedFallback {
		event = "fallback"
	}
	r.mu.Lock()
	r.transcodeEvents[event]++
	r.mu.Unlock()
	r.decrementGauge(&r.activeConversions)
}

// ObserveSignature records a signature negotiation outcome ("issued",
// "denied", or a transport failure name).
func (r *Recorder) ObserveSignature(outcome string) {
	normalized := normalizeName(outcome)
	r.mu.Lock()
	r.signatureEvents[normalized]++
	r.mu.Unlock()
}

// ObserveUpload records an upload outcome and, on success, the payload size.
func (r *Recorder) ObserveUpload(outcome string, sizeBytes int64) {
	normalized := normalizeName(outcome)
	r.mu.Lock()
	r.uploadEvents[normalized]++
	r.mu.Unlock()
	if sizeBytes > 0 {
		r.uploadBytes.Add(sizeBytes)
	}
}

// ObservePersist records a persistence commit outcome.
func (r *Recorder) ObservePersist(outcome string) {
	normalized := normalizeName(outcome)
	r.mu.Lock()
	r.persistEvents[normalized]++
	r.mu.Unlock()
}

// ActiveAttempts exposes the current gauge of in-flight ingestion attempts.
func (r *Recorder) ActiveAttempts() int64 {
	return r.activeAttempts.Load()
}

// ActiveConversions exposes the current gauge of in-flight conversions.
func (r *Recorder) ActiveConversions() int64 {
	return r.activeConversions.Load()
}

// UploadBytes exposes the cumulative uploaded payload size in bytes.
func (r *Recorder) UploadBytes() int64 {
	return r.uploadBytes.Load()
}

// AttemptCounts returns a copy of the attempt outcome counters for testing
// and reporting purposes.
func (r *Recorder) AttemptCounts() map[AttemptLabel]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[AttemptLabel]uint64, len(r.attempts))
	for k, v := range r.attempts {
		counts[k] = v
	}
	return counts
}

// TranscodeCounts returns copies of the transcode event counters.
func (r *Recorder) TranscodeCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]uint64, len(r.transcodeEvents))
	for k, v := range r.transcodeEvents {
		counts[k] = v
	}
	return counts
}

// Reset clears all counters and gauges on the recorder. It is intended for
// test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.attempts = make(map[AttemptLabel]uint64)
	r.transcodeEvents = make(map[string]uint64)
	r.signatureEvents = make(map[string]uint64)
	r.uploadEvents = make(map[string]uint64)
	r.persistEvents = make(map[string]uint64)
	r.uploadBytes.Store(0)
	r.activeAttempts.Store(0)
	r.activeConversions.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting
// label sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	attemptLabels := r.sortedAttemptLabels()
	transcodeEvents := sortedKeys(r.transcodeEvents)
	signatureEvents := sortedKeys(r.signatureEvents)
	uploadEvents := sortedKeys(r.uploadEvents)
	persistEvents := sortedKeys(r.persistEvents)

	fmt.Fprintln(w, "# HELP clipflow_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE clipflow_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "clipflow_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP clipflow_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE clipflow_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "clipflow_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP clipflow_attempts_total Finished ingestion attempts by source kind and outcome")
	fmt.Fprintln(w, "# TYPE clipflow_attempts_total counter")
	for _, label := range attemptLabels {
		count := r.attempts[label]
		fmt.Fprintf(w, "clipflow_attempts_total{source=\"%s\",outcome=\"%s\"} %d\n", label.Source, label.Outcome, count)
	}

	fmt.Fprintln(w, "# HELP clipflow_active_attempts Current number of in-flight ingestion attempts")
	fmt.Fprintln(w, "# TYPE clipflow_active_attempts gauge")
	fmt.Fprintf(w, "clipflow_active_attempts %d\n", r.activeAttempts.Load())

	fmt.Fprintln(w, "# HELP clipflow_transcode_conversions_total Transcode conversions by result")
	fmt.Fprintln(w, "# TYPE clipflow_transcode_conversions_total counter")
	for _, event := range transcodeEvents {
		fmt.Fprintf(w, "clipflow_transcode_conversions_total{result=\"%s\"} %d\n", event, r.transcodeEvents[event])
	}

	fmt.Fprintln(w, "# HELP clipflow_transcode_active_conversions Current number of in-flight conversions")
	fmt.Fprintln(w, "# TYPE clipflow_transcode_active_conversions gauge")
	fmt.Fprintf(w, "clipflow_transcode_active_conversions %d\n", r.activeConversions.Load())

	fmt.Fprintln(w, "# HELP clipflow_signature_requests_total Signature negotiations by outcome")
	fmt.Fprintln(w, "# TYPE clipflow_signature_requests_total counter")
	for _, event := range signatureEvents {
		fmt.Fprintf(w, "clipflow_signature_requests_total{outcome=\"%s\"} %d\n", event, r.signatureEvents[event])
	}

	fmt.Fprintln(w, "# HELP clipflow_uploads_total Object-storage uploads by outcome")
	fmt.Fprintln(w, "# TYPE clipflow_uploads_total counter")
	for _, event := range uploadEvents {
		fmt.Fprintf(w, "clipflow_uploads_total{outcome=\"%s\"} %d\n", event, r.uploadEvents[event])
	}

	fmt.Fprintln(w, "# HELP clipflow_upload_bytes_total Cumulative uploaded payload size in bytes")
	fmt.Fprintln(w, "# TYPE clipflow_upload_bytes_total counter")
	fmt.Fprintf(w, "clipflow_upload_bytes_total %d\n", r.uploadBytes.Load())

	fmt.Fprintln(w, "# HELP clipflow_persist_commits_total Persistence commits by outcome")
	fmt.Fprintln(w, "# TYPE clipflow_persist_commits_total counter")
	for _, event := range persistEvents {
		fmt.Fprintf(w, "clipflow_persist_commits_total{outcome=\"%s\"} %d\n", event, r.persistEvents[event])
	}
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedAttemptLabels() []AttemptLabel {
	labels := make([]AttemptLabel, 0, len(r.attempts))
	for label := range r.attempts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Source != labels[j].Source {
			return labels[i].Source < labels[j].Source
		}
		return labels[i].Outcome < labels[j].Outcome
	})
	return labels
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	for {
		current := gauge.Load()
		if current <= 0 {
			return
		}
		if gauge.CompareAndSwap(current, current-1) {
			return
		}
	}
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// AttemptStarted increments the in-flight attempt gauge on the default recorder.
func AttemptStarted() {
	defaultRecorder.AttemptStarted()
}

// AttemptFinished records a terminal attempt outcome on the default recorder.
func AttemptFinished(source, outcome string) {
	defaultRecorder.AttemptFinished(source, outcome)
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
