package models

import (
	"time"

	"gorm.io/datatypes"
)

type TranscriptLog struct {
	ID        string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SessionID string         `gorm:"column:session_id;type:uuid;index:idx_transcript_session_seq,priority:1" json:"sessionId"`
	Seq       int64          `gorm:"column:seq;index:idx_transcript_session_seq,priority:2" json:"seq"`
	Role      string         `gorm:"column:role;type:text" json:"role"` // "user" | "assistant"
	Content   string         `gorm:"column:content;type:text" json:"text"`
	Timestamp time.Time      `gorm:"column:timestamp;type:timestamptz" json:"timestamp"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"` // {"call_id": ...}
}

func (TranscriptLog) TableName() string { return "transcript_logs" }
