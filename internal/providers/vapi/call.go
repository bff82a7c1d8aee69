package vapi

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/medivoice/internal/voice"
)

type call struct {
	client     *Client
	id         string
	joinURL    string
	controlURL string
	sub        Subscription
	log        *logrus.Entry

	mu       sync.Mutex
	handlers map[voice.EventType]voice.Handler

	stopOnce sync.Once
	done     chan struct{}
}

func newCall(c *Client, resp createCallResponse, sub Subscription) *call {
	cl := &call{
		client:     c,
		id:         resp.ID,
		joinURL:    resp.WebCallURL,
		controlURL: resp.Monitor.ControlURL,
		sub:        sub,
		log:        c.log.WithField("call_id", resp.ID),
		handlers:   map[voice.EventType]voice.Handler{},
		done:       make(chan struct{}),
	}
	go cl.run()
	return cl
}

func (c *call) ID() string      { return c.id }
func (c *call) JoinURL() string { return c.joinURL }

func (c *call) On(t voice.EventType, h voice.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[t] = h
}

func (c *call) Off(t voice.EventType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, t)
}

// Stop hangs up the call and closes its event subscription. Later calls are
// no-ops.
func (c *call) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		err = c.client.endCall(ctx, c.controlURL)
		if cerr := c.sub.Close(); cerr != nil {
			c.log.WithError(cerr).Warn("close call subscription")
		}
	})
	return err
}

// Done is closed once the event subscription has drained.
func (c *call) Done() <-chan struct{} { return c.done }

// run delivers events one at a time in arrival order.
func (c *call) run() {
	defer close(c.done)
	for raw := range c.sub.Messages() {
		ev, ok := ParseServerMessage(raw)
		if !ok {
			continue
		}
		c.mu.Lock()
		h := c.handlers[ev.Type]
		c.mu.Unlock()
		if h != nil {
			h(ev)
		}
	}
}
