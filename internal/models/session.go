package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionDetails is one consultation session as the dashboard sees it.
type SessionDetails struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID      string             `bson:"session_id" json:"sessionId"` // uuid v4
	Notes          string             `bson:"notes" json:"notes"`
	Report         map[string]any     `bson:"report,omitempty" json:"report"`
	SelectedDoctor *DoctorAgent       `bson:"selected_doctor,omitempty" json:"selectedDoctor"`
	CreatedOn      time.Time          `bson:"created_on" json:"createdOn"`

	ReportedAt *time.Time `bson:"reported_at,omitempty" json:"reportedOn,omitempty"`
}

// SessionSummary is a history-list row.
type SessionSummary struct {
	SessionID  string    `bson:"session_id" json:"sessionId"`
	Notes      string    `bson:"notes" json:"notes"`
	Specialist string    `bson:"-" json:"specialist,omitempty"`
	HasReport  bool      `bson:"-" json:"hasReport"`
	CreatedOn  time.Time `bson:"created_on" json:"createdOn"`
}

func (s *SessionDetails) Summary() SessionSummary {
	out := SessionSummary{
		SessionID: s.SessionID,
		Notes:     s.Notes,
		HasReport: len(s.Report) > 0,
		CreatedOn: s.CreatedOn,
	}
	if s.SelectedDoctor != nil {
		out.Specialist = s.SelectedDoctor.Specialist
	}
	return out
}
