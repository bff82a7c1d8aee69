package voice

import "github.com/yoockh/medivoice/internal/models"

const (
	FallbackVoiceID      = "s3://voice-cloning-zero-shot/ai-doctor"
	FallbackSystemPrompt = "You are a helpful medical assistant. Please assist the user with their medical queries."
)

type Transcriber struct {
	Provider string `json:"provider"`
	Language string `json:"language"`
}

type Voice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Model struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Messages []ModelMessage `json:"messages"`
}

// CallConfig is the assistant definition handed to the voice service.
type CallConfig struct {
	Name         string      `json:"name"`
	FirstMessage string      `json:"firstMessage"`
	Transcriber  Transcriber `json:"transcriber"`
	Voice        Voice       `json:"voice"`
	Model        Model       `json:"model"`
}

type CallDefaults struct {
	Name                string
	FirstMessage        string
	TranscriberProvider string
	Language            string
	VoiceProvider       string
	VoiceID             string
	ModelProvider       string
	Model               string
	SystemPrompt        string
}

func DefaultCallDefaults() CallDefaults {
	return CallDefaults{
		Name:                "AI Medical Agent",
		FirstMessage:        "Hello! I'm your AI medical assistant. How can I help you today?",
		TranscriberProvider: "deepgram",
		Language:            "en-US",
		VoiceProvider:       "playht",
		VoiceID:             FallbackVoiceID,
		ModelProvider:       "openai",
		Model:               "gpt-3.5-turbo",
		SystemPrompt:        FallbackSystemPrompt,
	}
}

// BuildCallConfig takes voice and system prompt from the session's doctor,
// falling back to d for anything the doctor leaves empty. details may be nil.
func BuildCallConfig(details *models.SessionDetails, d CallDefaults) CallConfig {
	voiceID := d.VoiceID
	prompt := d.SystemPrompt
	if details != nil && details.SelectedDoctor != nil {
		if v := details.SelectedDoctor.VoiceID; v != "" {
			voiceID = v
		}
		if p := details.SelectedDoctor.AgentPrompt; p != "" {
			prompt = p
		}
	}

	return CallConfig{
		Name:         d.Name,
		FirstMessage: d.FirstMessage,
		Transcriber: Transcriber{
			Provider: d.TranscriberProvider,
			Language: d.Language,
		},
		Voice: Voice{
			Provider: d.VoiceProvider,
			VoiceID:  voiceID,
		},
		Model: Model{
			Provider: d.ModelProvider,
			Model:    d.Model,
			Messages: []ModelMessage{{Role: "system", Content: prompt}},
		},
	}
}
