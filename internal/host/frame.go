package host

import (
	"encoding/json"
	"fmt"
)

type FrameType string

const (
	FrameRequest  FrameType = "req"
	FrameResponse FrameType = "res"
	FrameEvent    FrameType = "event"
)

// Requests sent to the browser shim.
const (
	MethodTabsActive  = "tabs.active"
	MethodPageURL     = "page.url"
	MethodPageSeek    = "page.seek"
	MethodMicAcquire  = "mic.acquire"
	MethodMicRelease  = "mic.release"
	MethodSpeechStart = "speech.start"
	MethodSpeechStop  = "speech.stop"
)

// Events pushed by the browser shim.
const (
	EventHello         = "hello"
	EventTabsUpdated   = "tabs.updated"
	EventTabsRemoved   = "tabs.removed"
	EventSpeechStarted = "speech.started"
	EventSpeechResult  = "speech.result"
	EventSpeechError   = "speech.error"
	EventSpeechEnded   = "speech.ended"
)

// Frame is the single envelope used in both directions on the socket.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// RemoteError is a request the shim answered with ok=false.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("host %s: %s", e.Method, e.Message)
}

type helloPayload struct {
	UserAgent       string `json:"userAgent"`
	SpeechSupported *bool  `json:"speechSupported,omitempty"`
}

type tabPayload struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url,omitempty"`
}

type seekPayload struct {
	TabID int `json:"tabId"`
	Time  int `json:"time"`
}

type seekReply struct {
	Success bool `json:"success"`
}

type micReply struct {
	HandleID string `json:"handleId"`
}

type speechStartPayload struct {
	CaptureID      string `json:"captureId"`
	Lang           string `json:"lang"`
	Continuous     bool   `json:"continuous"`
	InterimResults bool   `json:"interimResults"`
}

type speechEventPayload struct {
	CaptureID   string   `json:"captureId"`
	Transcripts []string `json:"transcripts,omitempty"`
	Code        string   `json:"code,omitempty"`
}
