package generation

// State is the submission flow status shown to the user.
type State string

const (
	StateIdle       State = "idle"
	StateGenerating State = "generating"
	StatePolling    State = "polling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateError      State = "error"
)

// IsTerminal returns true for completed, failed and error.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateError:
		return true
	default:
		return false
	}
}

// PollState is the whole client-visible state of one submission.
// It is replaced wholesale on every new submission.
type PollState struct {
	Status       State  `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	VideoURL     string `json:"video_url,omitempty"`
}
