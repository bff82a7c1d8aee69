package models

// DoctorAgent is a doctor persona: voice, system prompt and display data.
type DoctorAgent struct {
	ID          int    `bson:"id" json:"id"`
	Specialist  string `bson:"specialist" json:"specialist"`
	Description string `bson:"description" json:"description"`
	Image       string `bson:"image" json:"image"`
	AgentPrompt string `bson:"agent_prompt" json:"agentPrompt"`
	VoiceID     string `bson:"voice_id,omitempty" json:"voiceId,omitempty"`
}

var Doctors = []DoctorAgent{
	{
		ID:          1,
		Specialist:  "General Physician",
		Description: "Helps with everyday health concerns and common symptoms.",
		Image:       "/doctor1.png",
		AgentPrompt: "You are a friendly General Physician AI. Greet the user and quickly ask what symptoms they are experiencing. Keep responses short and helpful.",
		VoiceID:     "will",
	},
	{
		ID:          2,
		Specialist:  "Pediatrician",
		Description: "Expert in children's health, from babies to teens.",
		Image:       "/doctor2.png",
		AgentPrompt: "You are a kind Pediatrician AI. Ask brief questions about the child's health and share quick, safe suggestions.",
		VoiceID:     "chris",
	},
	{
		ID:          3,
		Specialist:  "Dermatologist",
		Description: "Handles skin issues like rashes, acne, or infections.",
		Image:       "/doctor3.png",
		AgentPrompt: "You are a knowledgeable Dermatologist AI. Ask short questions about the skin issue and give simple, clear advice.",
		VoiceID:     "sarge",
	},
	{
		ID:          4,
		Specialist:  "Psychologist",
		Description: "Supports mental health and emotional well-being.",
		Image:       "/doctor4.png",
		AgentPrompt: "You are a caring Psychologist AI. Ask how the user is feeling emotionally and give short, supportive tips.",
		VoiceID:     "susan",
	},
	{
		ID:          5,
		Specialist:  "Nutritionist",
		Description: "Provides advice on healthy eating and weight management.",
		Image:       "/doctor5.png",
		AgentPrompt: "You are a motivating Nutritionist AI. Ask about current diet or goals and suggest quick, healthy tips.",
		VoiceID:     "eileen",
	},
}

// DoctorByID returns a copy of the catalog entry.
func DoctorByID(id int) (*DoctorAgent, bool) {
	for i := range Doctors {
		if Doctors[i].ID == id {
			d := Doctors[i]
			return &d, true
		}
	}
	return nil, false
}
