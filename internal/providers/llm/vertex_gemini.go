package llm

import (
	"context"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client *vertexgenai.Client
	model  *vertexgenai.GenerativeModel
}

type VertexOptions struct {
	ProjectID string
	Location  string
	Model     string
	// System is sent as the system instruction on every request.
	System string
	// JSON asks the model for an application/json response.
	JSON bool
}

func NewVertexGemini(ctx context.Context, opts VertexOptions) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, opts.ProjectID, opts.Location)
	if err != nil {
		return nil, err
	}

	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}

	m := c.GenerativeModel(opts.Model)
	m.SetTemperature(0.2)
	if opts.System != "" {
		m.SystemInstruction = &vertexgenai.Content{Parts: []vertexgenai.Part{vertexgenai.Text(opts.System)}}
	}
	if opts.JSON {
		m.ResponseMIMEType = "application/json"
	}
	return &VertexGemini{client: c, model: m}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		it := v.model.GenerateContentStream(ctx, vertexgenai.Text(prompt))
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				errs <- err
				return
			}

			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
						select {
						case out <- string(t):
						case <-ctx.Done():
							errs <- ctx.Err()
							return
						}
					}
				}
			}
		}
	}()

	return out, errs
}
