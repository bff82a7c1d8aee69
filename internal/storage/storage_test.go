package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingUploader struct {
	name, contentType string
	body              []byte
}

func (r *recordingUploader) Upload(ctx context.Context, objectName, contentType string, rd io.Reader) (string, error) {
	b, err := io.ReadAll(rd)
	if err != nil {
		return "", err
	}
	r.name, r.contentType, r.body = objectName, contentType, b
	return "mem://" + objectName, nil
}

func TestPutJSON(t *testing.T) {
	u := &recordingUploader{}
	path, err := PutJSON(context.Background(), u, "sessions/abc123/report.json", map[string]string{"severity": "mild"})
	require.NoError(t, err)
	require.Equal(t, "mem://sessions/abc123/report.json", path)
	require.Equal(t, "application/json", u.contentType)
	require.JSONEq(t, `{"severity":"mild"}`, string(u.body))
}
