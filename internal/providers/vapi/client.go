package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/medivoice/internal/utils"
	"github.com/yoockh/medivoice/internal/voice"
)

const DefaultBaseURL = "https://api.vapi.ai"

var errMissingMessage = errors.New("webhook body has no message")

type Options struct {
	APIKey  string
	BaseURL string
	// ServerURL is where the voice service posts server messages (our webhook).
	ServerURL     string
	WebhookSecret string
	StartTimeout  time.Duration
	HTTPClient    *http.Client
	Logger        *logrus.Logger
}

// Client starts web calls over the Vapi REST API and receives call events
// through a Bus fed by the webhook handler.
type Client struct {
	apiKey        string
	baseURL       string
	serverURL     string
	webhookSecret string
	startTimeout  time.Duration
	http          *http.Client
	bus           Bus
	log           *logrus.Logger
}

func NewClient(opts Options, bus Bus) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("vapi api key is required")
	}
	if bus == nil {
		return nil, errors.New("vapi client needs an event bus")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	return &Client{
		apiKey:        opts.APIKey,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		serverURL:     opts.ServerURL,
		webhookSecret: opts.WebhookSecret,
		startTimeout:  opts.StartTimeout,
		http:          opts.HTTPClient,
		bus:           bus,
		log:           opts.Logger,
	}, nil
}

type assistantServer struct {
	URL    string `json:"url"`
	Secret string `json:"secret,omitempty"`
}

type assistant struct {
	voice.CallConfig
	Server         *assistantServer `json:"server,omitempty"`
	ServerMessages []string         `json:"serverMessages,omitempty"`
}

type createCallRequest struct {
	Assistant assistant `json:"assistant"`
}

type createCallResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	WebCallURL string `json:"webCallUrl"`
	Monitor    struct {
		ListenURL  string `json:"listenUrl"`
		ControlURL string `json:"controlUrl"`
	} `json:"monitor"`
}

func (c *Client) Start(ctx context.Context, cfg voice.CallConfig) (voice.Call, error) {
	const op = "vapi.Client.Start"

	if c.startTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.startTimeout)
		defer cancel()
	}

	req := createCallRequest{Assistant: assistant{CallConfig: cfg}}
	if c.serverURL != "" {
		req.Assistant.Server = &assistantServer{URL: c.serverURL, Secret: c.webhookSecret}
		req.Assistant.ServerMessages = ServerMessages
	}

	var out createCallResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/call/web", req, &out); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, utils.E(utils.CodeTimeout, op, "call setup timed out", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to create call", err)
	}
	if out.ID == "" {
		return nil, utils.E(utils.CodeUnavailable, op, "voice service returned no call id", nil)
	}

	// the subscription outlives the request context
	sub, err := c.bus.Subscribe(context.WithoutCancel(ctx), out.ID)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to subscribe to call events", err)
	}

	call := newCall(c, out, sub)
	c.log.WithFields(logrus.Fields{"call_id": out.ID, "status": out.Status}).Info("vapi web call created")
	return call, nil
}

// endCall asks the live call to hang up through its control url.
func (c *Client) endCall(ctx context.Context, controlURL string) error {
	if controlURL == "" {
		return errors.New("call has no control url")
	}
	return c.do(ctx, http.MethodPost, controlURL, map[string]string{"type": "end-call"}, nil)
}

func (c *Client) do(ctx context.Context, method, url string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	const maxBytes = 1 << 20
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}
