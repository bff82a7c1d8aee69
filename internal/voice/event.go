package voice

import "context"

type EventType string

const (
	EventCallStart   EventType = "call-start"
	EventCallEnd     EventType = "call-end"
	EventMessage     EventType = "message"
	EventSpeechStart EventType = "speech-start"
	EventSpeechEnd   EventType = "speech-end"
)

// Events lists every event a controller observes on a call.
var Events = []EventType{EventCallStart, EventCallEnd, EventMessage, EventSpeechStart, EventSpeechEnd}

type TranscriptType string

const (
	TranscriptPartial TranscriptType = "partial"
	TranscriptFinal   TranscriptType = "final"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageTypeTranscript is the only message type the controller consumes.
const MessageTypeTranscript = "transcript"

type Message struct {
	Type           string         `json:"type"`
	Role           string         `json:"role"`
	TranscriptType TranscriptType `json:"transcriptType"`
	Transcript     string         `json:"transcript"`
}

type Event struct {
	Type    EventType `json:"event"`
	Message *Message  `json:"message,omitempty"`
}

type Handler func(Event)

// Client starts calls on a hosted voice-session service.
type Client interface {
	Start(ctx context.Context, cfg CallConfig) (Call, error)
}

// Call is a handle to one running voice session.
type Call interface {
	ID() string
	// JoinURL is where the browser joins the audio room. May be empty.
	JoinURL() string
	On(t EventType, h Handler)
	Off(t EventType)
	Stop(ctx context.Context) error
}
