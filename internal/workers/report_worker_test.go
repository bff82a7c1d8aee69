package workers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/medivoice/internal/models"
	"github.com/yoockh/medivoice/internal/utils"
)

type fakeReports struct {
	report map[string]any
	rows   []models.TranscriptLog
	err    error
	calls  []string
}

func (f *fakeReports) Generate(ctx context.Context, sessionID string) (map[string]any, []models.TranscriptLog, error) {
	f.calls = append(f.calls, sessionID)
	return f.report, f.rows, f.err
}

type statusSink struct {
	frames []map[string]any
}

func (s *statusSink) PublishStatus(ctx context.Context, sessionID string, payload []byte) error {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return err
	}
	m["_session"] = sessionID
	s.frames = append(s.frames, m)
	return nil
}

type memArchive struct {
	objects map[string][]byte
}

func (m *memArchive) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.objects[objectName] = b
	return "mem://" + objectName, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestHandleMsgPublishesReport(t *testing.T) {
	reports := &fakeReports{
		report: map[string]any{"summary": "tension headache"},
		rows:   []models.TranscriptLog{{Seq: 1, Role: "user", Content: "I have a headache"}},
	}
	sink := &statusSink{}
	archive := &memArchive{objects: map[string][]byte{}}
	p := &ReportWorkerPool{Reports: reports, Status: sink, Archive: archive, Logger: quietLogger()}

	p.handleMsg(context.Background(), "1-0", map[string]any{"session_id": "abc123", "call_id": "call-1"})

	require.Equal(t, []string{"abc123"}, reports.calls)
	require.Len(t, sink.frames, 2)
	require.Equal(t, "processing", sink.frames[0]["status"])
	require.Equal(t, "report_ready", sink.frames[1]["status"])
	require.Equal(t, "abc123", sink.frames[1]["_session"])
	require.Equal(t, "tension headache", sink.frames[1]["report"].(map[string]any)["summary"])

	obj, ok := archive.objects[ArchiveObjectName("abc123", "call-1")]
	require.True(t, ok)
	require.Contains(t, string(obj), "I have a headache")
}

func TestHandleMsgOutcomes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"no transcript", utils.E(utils.CodeInvalidArgument, "ReportService.Generate", "session has no transcript", nil), "skipped"},
		{"model down", errors.New("quota exceeded"), "failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &statusSink{}
			p := &ReportWorkerPool{Reports: &fakeReports{err: tc.err}, Status: sink, Logger: quietLogger()}

			p.handleMsg(context.Background(), "1-0", map[string]any{"session_id": "abc123"})
			require.Len(t, sink.frames, 2)
			require.Equal(t, tc.want, sink.frames[1]["status"])
		})
	}
}

func TestHandleMsgIgnoresMissingSession(t *testing.T) {
	reports := &fakeReports{}
	p := &ReportWorkerPool{Reports: reports, Status: &statusSink{}, Logger: quietLogger()}

	p.handleMsg(context.Background(), "1-0", map[string]any{"call_id": "call-1"})
	require.Empty(t, reports.calls)
}

func TestArchiveObjectName(t *testing.T) {
	require.Equal(t, "sessions/abc123/call-1.json", ArchiveObjectName("abc123", "call-1"))
	require.Equal(t, "sessions/abc123/latest.json", ArchiveObjectName("abc123", ""))
	require.Equal(t, "session:abc123:status", StatusChannel("abc123"))
}
