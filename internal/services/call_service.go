package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/medivoice/internal/utils"
	"github.com/yoockh/medivoice/internal/voice"
)

// ReportQueue receives ended calls for report generation.
type ReportQueue interface {
	Enqueue(ctx context.Context, sessionID, callID string) error
}

// CallService keeps one call controller per session while at least one view
// of that session is open.
type CallService interface {
	// Acquire returns the session's controller. release must be called when
	// the view goes away; the last release tears the controller down.
	Acquire(sessionID string) (ctrl *voice.Controller, release func())
	StartCall(ctx context.Context, sessionID string) error
	EndCall(ctx context.Context, sessionID string) error
	Shutdown(ctx context.Context)
}

type callRecord struct {
	callID string
	msg    *voice.TranscriptMessage
	ended  bool
}

// recordQueue hands records from controller listeners to the persist
// goroutine. push never blocks, so a slow database cannot stall the controller.
type recordQueue struct {
	mu     sync.Mutex
	items  []callRecord
	closed bool
	wake   chan struct{}
}

func newRecordQueue() *recordQueue {
	return &recordQueue{wake: make(chan struct{}, 1)}
}

func (q *recordQueue) push(r callRecord) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, r)
	q.mu.Unlock()
	q.signal()
}

func (q *recordQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *recordQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// next blocks until a record is queued. ok is false once the queue is closed
// and drained.
func (q *recordQueue) next() (r callRecord, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			r = q.items[0]
			q.items[0] = callRecord{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return r, true
		}
		if q.closed {
			q.mu.Unlock()
			return callRecord{}, false
		}
		q.mu.Unlock()
		<-q.wake
	}
}

type callEntry struct {
	ctrl    *voice.Controller
	refs    int
	records *recordQueue
	done    chan struct{}

	closeOnce sync.Once
}

type callService struct {
	sessions    SessionService
	transcripts TranscriptService
	reports     ReportQueue
	client      voice.Client
	defaults    voice.CallDefaults
	log         *logrus.Logger
	opTimeout   time.Duration

	mu     sync.Mutex
	active map[string]*callEntry
}

type CallServiceDeps struct {
	Sessions    SessionService
	Transcripts TranscriptService
	Reports     ReportQueue
	Client      voice.Client
	Defaults    voice.CallDefaults
	Logger      *logrus.Logger
}

func NewCallService(d CallServiceDeps) CallService {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	return &callService{
		sessions:    d.Sessions,
		transcripts: d.Transcripts,
		reports:     d.Reports,
		client:      d.Client,
		defaults:    d.Defaults,
		log:         d.Logger,
		opTimeout:   10 * time.Second,
		active:      map[string]*callEntry{},
	}
}

func (s *callService) Acquire(sessionID string) (*voice.Controller, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.active[sessionID]
	if !ok {
		e = s.newEntry(sessionID)
		s.active[sessionID] = e
	}
	e.refs++

	var once sync.Once
	return e.ctrl, func() { once.Do(func() { s.release(sessionID, e) }) }
}

func (s *callService) newEntry(sessionID string) *callEntry {
	log := s.log.WithField("session_id", sessionID)
	e := &callEntry{
		ctrl:    voice.NewController(s.client, s.defaults, log),
		records: newRecordQueue(),
		done:    make(chan struct{}),
	}

	e.ctrl.Subscribe(func(u voice.Update) {
		if u.Appended != nil {
			msg := *u.Appended
			e.records.push(callRecord{callID: u.CallID, msg: &msg})
		}
		if u.Prev == voice.StateConnected && u.Snapshot.State == voice.StateNotConnected {
			e.records.push(callRecord{callID: u.CallID, ended: true})
		}
	})

	go s.persist(sessionID, e, log)
	return e
}

func (s *callService) release(sessionID string, e *callEntry) {
	s.mu.Lock()
	e.refs--
	last := e.refs <= 0
	if last && s.active[sessionID] == e {
		delete(s.active, sessionID)
	}
	s.mu.Unlock()

	if last {
		ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
		defer cancel()
		s.teardown(ctx, e)
	}
}

func (s *callService) teardown(ctx context.Context, e *callEntry) {
	e.closeOnce.Do(func() {
		if err := e.ctrl.Close(ctx); err != nil {
			s.log.WithError(err).Warn("close call controller")
		}
		// Close drops the listener, so nothing is pushed after this
		e.records.close()
		<-e.done
	})
}

// persist writes finalized utterances in order and queues a report once the
// call has ended.
func (s *callService) persist(sessionID string, e *callEntry, log *logrus.Entry) {
	defer close(e.done)
	for {
		r, ok := e.records.next()
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
		switch {
		case r.msg != nil && s.transcripts != nil:
			if _, err := s.transcripts.Append(ctx, sessionID, r.callID, r.msg.Role, r.msg.Text); err != nil {
				log.WithError(err).WithField("call_id", r.callID).Error("persist transcript failed")
			}
		case r.ended && s.reports != nil:
			if err := s.reports.Enqueue(ctx, sessionID, r.callID); err != nil {
				log.WithError(err).WithField("call_id", r.callID).Error("enqueue report failed")
			}
		}
		cancel()
	}
}

func (s *callService) entry(sessionID string) (*callEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.active[sessionID]
	return e, ok
}

func (s *callService) StartCall(ctx context.Context, sessionID string) error {
	const op = "CallService.StartCall"

	e, ok := s.entry(sessionID)
	if !ok {
		return utils.E(utils.CodeNotFound, op, "no open view for session", nil)
	}

	details, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Error("error fetching session details")
		return err
	}
	return e.ctrl.Start(ctx, details)
}

func (s *callService) EndCall(ctx context.Context, sessionID string) error {
	e, ok := s.entry(sessionID)
	if !ok {
		return nil
	}
	return e.ctrl.End(ctx)
}

func (s *callService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	entries := make([]*callEntry, 0, len(s.active))
	for id, e := range s.active {
		entries = append(entries, e)
		delete(s.active, id)
	}
	s.mu.Unlock()

	for _, e := range entries {
		s.teardown(ctx, e)
	}
}
