// Package capture produces the raw MediaAsset the ingestion pipeline
// operates on. Two variants of one capability exist:
//
//   - FileSource accepts a user-chosen file (picker or drag-and-drop). It
//     enforces the content-type and size policy up front so a rejected file
//     never reaches the probe, the transcoder, or the network.
//   - LiveRecorder records a constrained device stream through the Device
//     interface, buffers chunks while recording, and concatenates them into
//     one low-bitrate intermediate blob on stop.
//
// The device stream is a shared mutable resource owned exclusively by the
// recorder while active: it is stopped before a new stream is acquired and on
// teardown, regardless of exit path.
package capture
