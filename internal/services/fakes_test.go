package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/medivoice/internal/models"
	"github.com/yoockh/medivoice/internal/utils"
	"github.com/yoockh/medivoice/internal/voice"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type memSessionRepo struct {
	mu    sync.Mutex
	rows  map[string]*models.SessionDetails
	gets  int
	fails error
}

func newMemSessionRepo(rows ...*models.SessionDetails) *memSessionRepo {
	r := &memSessionRepo{rows: map[string]*models.SessionDetails{}}
	for _, s := range rows {
		r.rows[s.SessionID] = s
	}
	return r
}

func (r *memSessionRepo) Create(ctx context.Context, s *models.SessionDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fails != nil {
		return r.fails
	}
	cp := *s
	r.rows[s.SessionID] = &cp
	return nil
}

func (r *memSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.fails != nil {
		return nil, r.fails
	}
	s, ok := r.rows[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) ListRecent(ctx context.Context, limit int64) ([]models.SessionDetails, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SessionDetails, 0, len(r.rows))
	for _, s := range r.rows {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedOn.After(out[j].CreatedOn) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memSessionRepo) SetReport(ctx context.Context, sessionID string, report map[string]any, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[sessionID]
	if !ok {
		return utils.ErrNotFound
	}
	s.Report = report
	s.ReportedAt = &at
	return nil
}

type memCache struct {
	mu   sync.Mutex
	vals map[string]any
}

func newMemCache() *memCache { return &memCache{vals: map[string]any{}} }

func (c *memCache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.vals[key]
	if !ok {
		return false, nil
	}
	*(dst.(*models.SessionDetails)) = *(v.(*models.SessionDetails))
	return true, nil
}

func (c *memCache) SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[key] = val
	return nil
}

func (c *memCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.vals, k)
	}
	return nil
}

type memTranscriptRepo struct {
	mu   sync.Mutex
	rows []models.TranscriptLog
}

func (r *memTranscriptRepo) Insert(ctx context.Context, log *models.TranscriptLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *log)
	return nil
}

func (r *memTranscriptRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.TranscriptLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TranscriptLog
	for _, row := range r.rows {
		if row.SessionID == sessionID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memTranscriptRepo) LastSeq(ctx context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var seq int64
	for _, row := range r.rows {
		if row.SessionID == sessionID && row.Seq > seq {
			seq = row.Seq
		}
	}
	return seq, nil
}

type memQueue struct {
	mu   sync.Mutex
	jobs []string
}

func (q *memQueue) Enqueue(ctx context.Context, sessionID, callID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, sessionID+"/"+callID)
	return nil
}

func (q *memQueue) snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.jobs...)
}

type stubCall struct {
	id string

	mu       sync.Mutex
	handlers map[voice.EventType]voice.Handler
	stopped  bool
}

func (c *stubCall) ID() string      { return c.id }
func (c *stubCall) JoinURL() string { return "" }
func (c *stubCall) On(t voice.EventType, h voice.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = h
}
func (c *stubCall) Off(t voice.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, t)
}
func (c *stubCall) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return nil
}

func (c *stubCall) emit(ev voice.Event) {
	c.mu.Lock()
	h := c.handlers[ev.Type]
	c.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

type stubClient struct {
	mu      sync.Mutex
	calls   []*stubCall
	configs []voice.CallConfig
}

func (c *stubClient) Start(ctx context.Context, cfg voice.CallConfig) (voice.Call, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs = append(c.configs, cfg)
	call := &stubCall{id: fmt.Sprintf("call-%d", len(c.calls)+1), handlers: map[voice.EventType]voice.Handler{}}
	c.calls = append(c.calls, call)
	return call, nil
}

type scriptedLLM struct {
	out    string
	prompt string
}

func (s *scriptedLLM) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	s.prompt = prompt
	out := make(chan string, 1)
	errs := make(chan error, 1)
	out <- s.out
	close(out)
	close(errs)
	return out, errs
}

func (s *scriptedLLM) Close() error { return nil }
