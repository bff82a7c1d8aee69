package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/medivoice/internal/models"
	"github.com/yoockh/medivoice/internal/services"
	"github.com/yoockh/medivoice/internal/utils"
)

type SessionHandler struct {
	svc         services.SessionService
	transcripts services.TranscriptService
	log         *logrus.Logger
}

func NewSessionHandler(svc services.SessionService, transcripts services.TranscriptService, log *logrus.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, transcripts: transcripts, log: log}
}

type CreateSessionRequest struct {
	Notes          string              `json:"notes" binding:"required"`
	SelectedDoctor *models.DoctorAgent `json:"selectedDoctor"`
	DoctorID       int                 `json:"doctorId"`
}

type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	CreatedOn string `json:"createdOn"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Create", "invalid request body", err))
		return
	}

	doctor := req.SelectedDoctor
	if doctor == nil && req.DoctorID != 0 {
		d, ok := models.DoctorByID(req.DoctorID)
		if !ok {
			writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.Create", "unknown doctorId", nil))
			return
		}
		doctor = d
	}

	sess, err := h.svc.Create(c.Request.Context(), req.Notes, doctor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, CreateSessionResponse{
		SessionID: sess.SessionID,
		CreatedOn: sess.CreatedOn.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Get serves GET /api/session-chat?sessionId=<id>.
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID := c.Query("sessionId")
	sess, err := h.svc.Get(c.Request.Context(), sessionID)
	if err != nil {
		requestLog(h.log, c).WithError(err).WithField("session_id", sessionID).Error("error fetching session details")
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *SessionHandler) History(c *gin.Context) {
	var limit int64 = 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	rows, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": rows})
}

func (h *SessionHandler) Transcript(c *gin.Context) {
	sessionID := c.Param("session_id")

	limit := 500
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 2000 {
			limit = n
		}
	}

	rows, err := h.transcripts.ListBySession(c.Request.Context(), sessionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": sessionID,
		"messages":  rows,
	})
}

func (h *SessionHandler) Doctors(c *gin.Context) {
	c.JSON(http.StatusOK, models.Doctors)
}
