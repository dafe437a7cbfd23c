package voice

import "strings"

type EventKind string

const (
	EventStarted EventKind = "started"
	EventResult  EventKind = "result"
	EventError   EventKind = "error"
	EventEnd     EventKind = "end"
)

// Event is emitted by a running capture. Transcripts are ordered best first.
type Event struct {
	Kind        EventKind `json:"kind"`
	Transcripts []string  `json:"transcripts,omitempty"`
	Code        string    `json:"code,omitempty"`
}

// Transcript returns the best non-empty transcript.
func (e Event) Transcript() string {
	for _, t := range e.Transcripts {
		if t = strings.TrimSpace(t); t != "" {
			return t
		}
	}
	return ""
}
