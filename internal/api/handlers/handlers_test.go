package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/medivoice/internal/models"
	"github.com/yoockh/medivoice/internal/utils"
)

func init() { gin.SetMode(gin.TestMode) }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeSessions struct {
	mu      sync.Mutex
	rows    map[string]*models.SessionDetails
	created []string
}

func newFakeSessions(rows ...*models.SessionDetails) *fakeSessions {
	f := &fakeSessions{rows: map[string]*models.SessionDetails{}}
	for _, r := range rows {
		f.rows[r.SessionID] = r
	}
	return f
}

func (f *fakeSessions) Create(ctx context.Context, notes string, doctor *models.DoctorAgent) (*models.SessionDetails, error) {
	if doctor == nil {
		return nil, utils.E(utils.CodeInvalidArgument, "fake.Create", "selectedDoctor is required", nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &models.SessionDetails{SessionID: "sess-new", Notes: notes, SelectedDoctor: doctor, CreatedOn: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	f.rows[s.SessionID] = s
	f.created = append(f.created, notes)
	return s, nil
}

func (f *fakeSessions) Get(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, "fake.Get", "sessionId is required", nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[sessionID]
	if !ok {
		return nil, utils.E(utils.CodeNotFound, "fake.Get", "session not found", nil)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) History(ctx context.Context, limit int64) ([]models.SessionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.SessionSummary{}
	for _, s := range f.rows {
		out = append(out, s.Summary())
	}
	return out, nil
}

func (f *fakeSessions) SaveReport(ctx context.Context, sessionID string, report map[string]any) error {
	return nil
}

type fakeTranscripts struct {
	rows []models.TranscriptLog
}

func (f *fakeTranscripts) Append(ctx context.Context, sessionID, callID, role, content string) (*models.TranscriptLog, error) {
	row := models.TranscriptLog{SessionID: sessionID, Role: role, Content: content}
	f.rows = append(f.rows, row)
	return &row, nil
}

func (f *fakeTranscripts) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error) {
	out := []models.TranscriptLog{}
	for _, r := range f.rows {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func newSessionRouter(s *fakeSessions, tr *fakeTranscripts) *gin.Engine {
	h := NewSessionHandler(s, tr, quietLogger())
	r := gin.New()
	r.POST("/api/session-chat", h.Create)
	r.GET("/api/session-chat", h.Get)
	r.GET("/api/session-chat/history", h.History)
	r.GET("/api/session-chat/:session_id/transcript", h.Transcript)
	r.GET("/api/doctors", h.Doctors)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateSessionWithDoctorID(t *testing.T) {
	s := newFakeSessions()
	r := newSessionRouter(s, &fakeTranscripts{})

	w := do(r, http.MethodPost, "/api/session-chat", `{"notes":"sore throat","doctorId":2}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "sess-new", resp.SessionID)

	got, _ := s.Get(context.Background(), "sess-new")
	want, _ := models.DoctorByID(2)
	require.Equal(t, want.Specialist, got.SelectedDoctor.Specialist)
}

func TestCreateSessionRejectsBadInput(t *testing.T) {
	r := newSessionRouter(newFakeSessions(), &fakeTranscripts{})

	w := do(r, http.MethodPost, "/api/session-chat", `{"doctorId":1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/session-chat", `{"notes":"x","doctorId":999}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/session-chat", `{"notes":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	require.Equal(t, utils.CodeInvalidArgument, apiErr.Code)
}

func TestGetSession(t *testing.T) {
	doc, _ := models.DoctorByID(1)
	s := newFakeSessions(&models.SessionDetails{SessionID: "abc123", Notes: "fever", SelectedDoctor: doc})
	r := newSessionRouter(s, &fakeTranscripts{})

	w := do(r, http.MethodGet, "/api/session-chat?sessionId=abc123", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got models.SessionDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, "fever", got.Notes)
	require.Equal(t, doc.Specialist, got.SelectedDoctor.Specialist)

	require.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/session-chat?sessionId=nope", "").Code)
	require.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/session-chat", "").Code)
}

func TestHistoryAndTranscript(t *testing.T) {
	s := newFakeSessions(&models.SessionDetails{SessionID: "abc123", Notes: "fever"})
	tr := &fakeTranscripts{}
	_, _ = tr.Append(context.Background(), "abc123", "call-1", "user", "I have a fever")
	_, _ = tr.Append(context.Background(), "other", "call-2", "user", "unrelated")
	r := newSessionRouter(s, tr)

	w := do(r, http.MethodGet, "/api/session-chat/history?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Sessions []models.SessionSummary `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Sessions, 1)

	w = do(r, http.MethodGet, "/api/session-chat/abc123/transcript", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		SessionID string                 `json:"sessionId"`
		Messages  []models.TranscriptLog `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "abc123", body.SessionID)
	require.Len(t, body.Messages, 1)
	require.Equal(t, "I have a fever", body.Messages[0].Content)
}

func TestDoctors(t *testing.T) {
	r := newSessionRouter(newFakeSessions(), &fakeTranscripts{})
	w := do(r, http.MethodGet, "/api/doctors", "")
	require.Equal(t, http.StatusOK, w.Code)

	var docs []models.DoctorAgent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	require.Len(t, docs, len(models.Doctors))
}

type fakePublisher struct {
	mu   sync.Mutex
	sent map[string][]string
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, callID string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.sent == nil {
		p.sent = map[string][]string{}
	}
	p.sent[callID] = append(p.sent[callID], string(payload))
	return nil
}

func TestWebhookForwardsByCallID(t *testing.T) {
	pub := &fakePublisher{}
	h := NewWebhookHandler(pub, quietLogger())
	r := gin.New()
	r.POST("/api/vapi/webhook", h.Vapi)

	w := do(r, http.MethodPost, "/api/vapi/webhook", `{"message":{"type":"transcript","role":"user","transcriptType":"final","transcript":"hi","call":{"id":"call-abc"}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, pub.sent["call-abc"], 1)
	require.Contains(t, pub.sent["call-abc"][0], `"transcript":"hi"`)

	// no call id: acknowledged, nothing forwarded
	w = do(r, http.MethodPost, "/api/vapi/webhook", `{"message":{"type":"status-update","status":"ended"}}`)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodPost, "/api/vapi/webhook", `not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookPublishFailure(t *testing.T) {
	pub := &fakePublisher{err: io.ErrClosedPipe}
	h := NewWebhookHandler(pub, quietLogger())
	r := gin.New()
	r.POST("/api/vapi/webhook", h.Vapi)

	w := do(r, http.MethodPost, "/api/vapi/webhook", `{"message":{"type":"status-update","status":"ended","call":{"id":"call-abc"}}}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
