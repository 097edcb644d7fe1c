// Package pipeline orchestrates the whole ingestion flow: capture,
// validation, transcoding, signed-upload negotiation, the storage upload,
// and the persistence commit.
//
// The state machine is deliberately unforgiving: every failure is terminal
// for the current attempt and requires an explicit action to restart from
// selection. There is no automatic retry between states, no resumable
// upload, and no compensating deletion when a persistence commit fails after
// a successful upload -- that last case leaves an orphaned remote object and
// is surfaced as PersistFailed.
//
// Timing-based narration runs alongside active attempts (see package
// narrate) but never influences pipeline state.
package pipeline
