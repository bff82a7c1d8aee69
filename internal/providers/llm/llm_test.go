package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type scripted struct {
	chunks []string
	err    error
}

func (s scripted) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, len(s.chunks))
	errs := make(chan error, 1)
	for _, c := range s.chunks {
		out <- c
	}
	close(out)
	if s.err != nil {
		errs <- s.err
	}
	close(errs)
	return out, errs
}

func (scripted) Close() error { return nil }

func TestCollect(t *testing.T) {
	got, err := Collect(context.Background(), scripted{chunks: []string{`{"summary":`, `"ok"}`}}, "p")
	require.NoError(t, err)
	require.Equal(t, `{"summary":"ok"}`, got)

	_, err = Collect(context.Background(), scripted{chunks: []string{"x"}, err: errors.New("quota")}, "p")
	require.EqualError(t, err, "quota")
}
