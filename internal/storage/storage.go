package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

// PutJSON stores v as an indented JSON object.
func PutJSON(ctx context.Context, u Uploader, objectName string, v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return u.Upload(ctx, objectName, "application/json", bytes.NewReader(b))
}
