package voice

type State int

const (
	StateNotConnected State = iota
	StateConnected
)

func (s State) String() string {
	if s == StateConnected {
		return "connected"
	}
	return "not_connected"
}

type TranscriptMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type LiveTranscript struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Snapshot is a copy of the controller state safe to hand to other goroutines.
type Snapshot struct {
	State       State               `json:"-"`
	Connected   bool                `json:"connected"`
	CallID      string              `json:"callId,omitempty"`
	JoinURL     string              `json:"joinUrl,omitempty"`
	CurrentRole string              `json:"currentRole,omitempty"`
	Live        *LiveTranscript     `json:"live,omitempty"`
	Messages    []TranscriptMessage `json:"messages"`
}

// machine holds the transcript state. It is not safe for concurrent use.
type machine struct {
	state   State
	speaker string
	live    *LiveTranscript
	log     []TranscriptMessage
}

// apply runs one event through the transition table. It reports whether the
// event was consumed, and the message appended to the log if any.
func (m *machine) apply(ev Event) (appended *TranscriptMessage, ok bool) {
	switch ev.Type {
	case EventCallStart:
		m.state = StateConnected
	case EventCallEnd:
		m.state = StateNotConnected
	case EventSpeechStart:
		m.speaker = RoleAssistant
	case EventSpeechEnd:
		m.speaker = RoleUser
	case EventMessage:
		msg := ev.Message
		if msg == nil || msg.Type != MessageTypeTranscript {
			return nil, false
		}
		switch msg.TranscriptType {
		case TranscriptPartial:
			m.live = &LiveTranscript{Role: msg.Role, Text: msg.Transcript}
			m.speaker = msg.Role
		case TranscriptFinal:
			tm := TranscriptMessage{Role: msg.Role, Text: msg.Transcript}
			m.log = append(m.log, tm)
			m.live = nil
			m.speaker = ""
			return &tm, true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
	return nil, true
}

func (m *machine) snapshot() Snapshot {
	s := Snapshot{
		State:       m.state,
		Connected:   m.state == StateConnected,
		CurrentRole: m.speaker,
		Messages:    make([]TranscriptMessage, len(m.log)),
	}
	copy(s.Messages, m.log)
	if m.live != nil {
		live := *m.live
		s.Live = &live
	}
	return s
}
