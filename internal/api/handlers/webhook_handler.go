package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/medivoice/internal/providers/vapi"
	"github.com/yoockh/medivoice/internal/utils"
)

type EventPublisher interface {
	Publish(ctx context.Context, callID string, payload []byte) error
}

// WebhookHandler receives Vapi server messages and forwards them to the
// process holding the call.
type WebhookHandler struct {
	bus EventPublisher
	log *logrus.Logger
}

func NewWebhookHandler(bus EventPublisher, log *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{bus: bus, log: log}
}

func (h *WebhookHandler) Vapi(c *gin.Context) {
	const op = "WebhookHandler.Vapi"

	const maxBytes = 1 << 20
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBytes))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unreadable body", err))
		return
	}

	callID, msg, err := vapi.UnwrapWebhook(body)
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid webhook body", err))
		return
	}
	if callID == "" {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.bus.Publish(c.Request.Context(), callID, msg); err != nil {
		requestLog(h.log, c).WithError(err).WithField("call_id", callID).Error("forward call event failed")
		writeError(c, utils.E(utils.CodeUnavailable, op, "failed to forward event", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}
