package voice

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/medivoice/internal/models"
	"github.com/yoockh/medivoice/internal/utils"
)

// Update describes one state change. Event is empty when a call was just
// requested; End and Close report a call-end with LocalStop set.
type Update struct {
	Event     Event
	CallID    string
	Prev      State
	Appended  *TranscriptMessage
	Snapshot  Snapshot
	LocalStop bool
}

// Listener is invoked with the controller lock held. It must not block or
// call back into the Controller.
type Listener func(Update)

type listener struct {
	id int
	fn Listener
}

const hangupTimeout = 10 * time.Second

// Controller owns one voice call for a consultation session and keeps the
// transcript view consistent across call events.
type Controller struct {
	client   Client
	defaults CallDefaults
	log      *logrus.Entry

	mu        sync.Mutex
	m         machine
	call      Call
	gen       uint64
	starting  bool
	closed    bool
	listeners []listener
	nextID    int
}

func NewController(client Client, defaults CallDefaults, log *logrus.Entry) *Controller {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Controller{
		client:    client,
		defaults:  defaults,
		log:       log,
	}
}

// Start opens a call configured from details. On failure the controller stays
// not connected and the error is logged and returned; nothing is retried.
func (c *Controller) Start(ctx context.Context, details *models.SessionDetails) error {
	const op = "Controller.Start"

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errClosed(op)
	}
	if c.call != nil || c.starting {
		c.mu.Unlock()
		return utils.E(utils.CodeConflict, op, "call already active", nil)
	}
	c.starting = true
	c.mu.Unlock()

	cfg := BuildCallConfig(details, c.defaults)
	call, err := c.client.Start(ctx, cfg)

	c.mu.Lock()
	c.starting = false

	if err != nil {
		c.mu.Unlock()
		c.log.WithError(err).Error("error starting voice agent")
		if utils.IsAppError(err) {
			return err
		}
		return utils.E(utils.CodeUnavailable, op, "failed to start call", err)
	}

	if c.closed {
		// the view went away while the call was being set up
		c.mu.Unlock()
		c.log.WithField("call_id", call.ID()).Warn("controller closed during start, hanging up")
		c.hangup(context.WithoutCancel(ctx), call)
		return errClosed(op)
	}

	c.gen++
	gen := c.gen
	for _, t := range Events {
		call.On(t, func(ev Event) { c.dispatch(gen, ev) })
	}
	c.call = call

	c.log.WithField("call_id", call.ID()).Info("call requested")
	c.notify(Update{CallID: call.ID(), Prev: c.m.state})
	c.mu.Unlock()
	return nil
}

func errClosed(op string) error {
	return utils.E(utils.CodeUnavailable, op, "call view closed", nil)
}

// End stops the active call. Without an active call it does nothing.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endLocked(ctx)
}

func (c *Controller) endLocked(ctx context.Context) error {
	call := c.releaseLocked()
	if call == nil {
		return nil
	}

	err := call.Stop(ctx)
	if err != nil {
		c.log.WithError(err).WithField("call_id", call.ID()).Warn("stop call failed")
	}

	prev := c.m.state
	c.m.state = StateNotConnected
	c.notify(Update{Event: Event{Type: EventCallEnd}, CallID: call.ID(), Prev: prev, LocalStop: true})
	return err
}

// releaseLocked detaches the active call: its observers are removed and any
// event it still delivers is stale. The caller stops it.
func (c *Controller) releaseLocked() Call {
	call := c.call
	if call == nil {
		return nil
	}
	for _, t := range Events {
		call.Off(t)
	}
	c.call = nil
	c.gen++
	return call
}

// hangup stops a call that is no longer attached. Must be called without the
// lock held.
func (c *Controller) hangup(ctx context.Context, call Call) {
	if call == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, hangupTimeout)
	defer cancel()
	if err := call.Stop(ctx); err != nil {
		c.log.WithError(err).WithField("call_id", call.ID()).Debug("stop ended call")
	}
}

// Close ends any active call and drops every listener. A closed controller
// refuses new calls.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	err := c.endLocked(ctx)
	c.listeners = nil
	return err
}

// Dispatch feeds an event from the active call into the state machine.
func (c *Controller) Dispatch(ev Event) {
	c.mu.Lock()
	ended := c.applyLocked(ev)
	c.mu.Unlock()
	c.hangup(context.Background(), ended)
}

func (c *Controller) dispatch(gen uint64, ev Event) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.log.WithField("event", ev.Type).Debug("dropping event from stale call")
		return
	}
	ended := c.applyLocked(ev)
	c.mu.Unlock()
	c.hangup(context.Background(), ended)
}

// applyLocked runs ev through the machine and notifies listeners. A call-end
// from the transport detaches the call; it is returned so the caller can
// stop it outside the lock.
func (c *Controller) applyLocked(ev Event) (ended Call) {
	prev := c.m.state
	appended, ok := c.m.apply(ev)
	if !ok {
		return nil
	}

	entry := c.log.WithField("event", ev.Type)
	if ev.Message != nil {
		entry = entry.WithFields(logrus.Fields{
			"role":            ev.Message.Role,
			"transcript_type": ev.Message.TranscriptType,
		})
	}
	entry.Debug("call event")

	u := Update{Event: ev, Prev: prev, Appended: appended}
	if c.call != nil {
		u.CallID = c.call.ID()
		if ev.Type == EventCallEnd {
			ended = c.releaseLocked()
		}
	}
	c.notify(u)
	return ended
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := c.m.snapshot()
	if c.call != nil {
		s.CallID = c.call.ID()
		s.JoinURL = c.call.JoinURL()
	}
	return s
}

// Active reports whether the controller holds a call handle.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.call != nil
}

// Subscribe registers l. Listeners are called in subscription order.
func (c *Controller) Subscribe(l Listener) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, listener{id: id, fn: l})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, ls := range c.listeners {
			if ls.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Controller) notify(u Update) {
	if len(c.listeners) == 0 {
		return
	}
	u.Snapshot = c.snapshotLocked()
	for _, ls := range c.listeners {
		ls.fn(u)
	}
}
