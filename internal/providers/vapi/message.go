package vapi

import (
	"encoding/json"

	"github.com/yoockh/medivoice/internal/voice"
)

// Server message types requested on every assistant.
var ServerMessages = []string{"status-update", "speech-update", "transcript"}

type serverMessage struct {
	Type           string `json:"type"`
	Status         string `json:"status"`
	Role           string `json:"role"`
	TranscriptType string `json:"transcriptType"`
	Transcript     string `json:"transcript"`
	Call           struct {
		ID string `json:"id"`
	} `json:"call"`
}

type envelope struct {
	Message json.RawMessage `json:"message"`
}

// UnwrapWebhook extracts the inner server message and its call id from a
// webhook body.
func UnwrapWebhook(body []byte) (callID string, msg []byte, err error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", nil, err
	}
	if len(env.Message) == 0 {
		return "", nil, errMissingMessage
	}
	var sm serverMessage
	if err := json.Unmarshal(env.Message, &sm); err != nil {
		return "", nil, err
	}
	return sm.Call.ID, env.Message, nil
}

// ParseServerMessage maps a server message onto a controller event. ok is
// false for messages the controller has no transition for.
func ParseServerMessage(raw []byte) (ev voice.Event, ok bool) {
	var sm serverMessage
	if err := json.Unmarshal(raw, &sm); err != nil {
		return voice.Event{}, false
	}

	switch sm.Type {
	case "status-update":
		switch sm.Status {
		case "in-progress":
			return voice.Event{Type: voice.EventCallStart}, true
		case "ended":
			return voice.Event{Type: voice.EventCallEnd}, true
		}
	case "speech-update":
		// speech-start/speech-end track the assistant's voice only
		if sm.Role != voice.RoleAssistant {
			return voice.Event{}, false
		}
		switch sm.Status {
		case "started":
			return voice.Event{Type: voice.EventSpeechStart}, true
		case "stopped":
			return voice.Event{Type: voice.EventSpeechEnd}, true
		}
	case "transcript":
		return voice.Event{
			Type: voice.EventMessage,
			Message: &voice.Message{
				Type:           voice.MessageTypeTranscript,
				Role:           sm.Role,
				TranscriptType: voice.TranscriptType(sm.TranscriptType),
				Transcript:     sm.Transcript,
			},
		}, true
	}
	return voice.Event{}, false
}
