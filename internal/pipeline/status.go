package pipeline

import "github.com/sendrec/askvideo/internal/timestamp"

type State string

const (
	StateUninitialized   State = "uninitialized"
	StateProcessingVideo State = "processing_video"
	StateReady           State = "ready"
	StateAwaitingAnswer  State = "awaiting_answer"
	StateListening       State = "listening"
	StateError           State = "error"
)

// Status is the panel's current state plus the text shown next to it.
// Terminal errors disable every input control.
type Status struct {
	State    State  `json:"state"`
	Text     string `json:"text"`
	Terminal bool   `json:"terminal,omitempty"`
}

var (
	statusUninitialized = Status{State: StateUninitialized, Text: "Connecting..."}
	statusProcessing    = Status{State: StateProcessingVideo, Text: "Processing video..."}
	statusReady         = Status{State: StateReady, Text: "Ready"}
	statusThinking      = Status{State: StateAwaitingAnswer, Text: "Thinking..."}
	statusListening     = Status{State: StateListening, Text: "Listening..."}
)

func errorStatus(text string, terminal bool) Status {
	return Status{State: StateError, Text: text, Terminal: terminal}
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation. Markers are parsed once when the
// message is appended.
type Message struct {
	Role    Role
	Text    string
	Markers []timestamp.Marker
}

// MessageView is a message prepared for display.
type MessageView struct {
	Role     Role                `json:"role"`
	Text     string              `json:"text"`
	Segments []timestamp.Segment `json:"segments"`
	HTML     string              `json:"html"`
}

// Snapshot is a consistent copy of the panel's state.
type Snapshot struct {
	Status       Status        `json:"status"`
	InputEnabled bool          `json:"inputEnabled"`
	VideoID      string        `json:"videoId,omitempty"`
	Messages     []MessageView `json:"messages"`
}
