package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yoockh/medivoice/internal/models"
	"github.com/yoockh/medivoice/internal/providers/llm"
	"github.com/yoockh/medivoice/internal/utils"
)

// ReportSystemPrompt is installed as the report model's system instruction.
const ReportSystemPrompt = `You are an AI medical voice agent that just finished a voice conversation with a user.
Based on the doctor persona and the conversation transcript, write a structured medical report with these fields:
sessionId, agent, user, timestamp, chiefComplaint, summary, symptoms, duration, severity,
medicationsMentioned, recommendations.
symptoms, medicationsMentioned and recommendations are string arrays.
Use "Anonymous" when the user does not give a name. Return only a JSON object.`

type ReportService interface {
	Generate(ctx context.Context, sessionID string) (map[string]any, []models.TranscriptLog, error)
}

type reportService struct {
	sessions    SessionService
	transcripts TranscriptService
	llm         llm.Provider
	now         func() time.Time
}

func NewReportService(sessions SessionService, transcripts TranscriptService, p llm.Provider) ReportService {
	return &reportService{sessions: sessions, transcripts: transcripts, llm: p, now: time.Now}
}

// Generate builds and stores the report for a session. The transcript it was
// built from is returned alongside.
func (s *reportService) Generate(ctx context.Context, sessionID string) (map[string]any, []models.TranscriptLog, error) {
	const op = "ReportService.Generate"

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := s.transcripts.ListBySession(ctx, sessionID, 0)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, utils.E(utils.CodeInvalidArgument, op, "session has no transcript", nil)
	}

	out, err := llm.Collect(ctx, s.llm, BuildReportPrompt(session, rows))
	if err != nil {
		return nil, nil, utils.E(utils.CodeUnavailable, op, "report model failed", err)
	}
	report, err := ParseReport(out)
	if err != nil {
		return nil, nil, utils.E(utils.CodeInternal, op, "report model returned invalid json", err)
	}

	report["sessionId"] = sessionID
	if _, ok := report["timestamp"]; !ok {
		report["timestamp"] = s.now().UTC().Format(time.RFC3339)
	}
	if session.SelectedDoctor != nil {
		report["agent"] = session.SelectedDoctor.Specialist
	}

	if err := s.sessions.SaveReport(ctx, sessionID, report); err != nil {
		return nil, nil, err
	}
	return report, rows, nil
}

func BuildReportPrompt(session *models.SessionDetails, rows []models.TranscriptLog) string {
	var sb strings.Builder
	agent := "General Physician"
	if session.SelectedDoctor != nil && session.SelectedDoctor.Specialist != "" {
		agent = session.SelectedDoctor.Specialist
	}
	fmt.Fprintf(&sb, "Doctor agent: %s\nUser notes: %s\nTranscript:\n", agent, session.Notes)
	for _, r := range rows {
		fmt.Fprintf(&sb, "%s: %s\n", r.Role, r.Content)
	}
	return sb.String()
}

// ParseReport accepts the model output with or without a ```json fence.
func ParseReport(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty report")
	}
	return out, nil
}
