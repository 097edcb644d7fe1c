package pipeline

// State enumerates the ingestion pipeline's stages. Transitions are strictly
// sequential; the state machine is the only concurrency control the pipeline
// needs because exactly one attempt may run at a time.
type State string

const (
	StateIdle                State = "idle"
	StateSelecting           State = "selecting"
	StateValidating          State = "validating"
	StateConverting          State = "converting"
	StateRequestingSignature State = "requesting-signature"
	StateUploading           State = "uploading"
	StatePersisting          State = "persisting"
	StateSucceeded           State = "succeeded"
	StateErrored             State = "errored"
)

// Terminal reports whether the state ends an attempt. Terminal states return
// to Idle only on an explicit reset.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateErrored
}

// active reports whether an attempt currently holds the pipeline.
func (s State) active() bool {
	switch s {
	case StateIdle, StateSelecting, StateSucceeded, StateErrored:
		return false
	default:
		return true
	}
}
