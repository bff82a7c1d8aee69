package workers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/medivoice/internal/models"
	"github.com/yoockh/medivoice/internal/services"
	"github.com/yoockh/medivoice/internal/storage"
	"github.com/yoockh/medivoice/internal/utils"
)

const (
	DefaultReportStream = "report:stream"
	DefaultReportGroup  = "report-workers"
)

func StatusChannel(sessionID string) string { return "session:" + sessionID + ":status" }

// RedisReportQueue pushes ended calls onto the report stream.
type RedisReportQueue struct {
	Redis  *redis.Client
	Stream string
}

func (q *RedisReportQueue) Enqueue(ctx context.Context, sessionID, callID string) error {
	stream := q.Stream
	if stream == "" {
		stream = DefaultReportStream
	}
	return q.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"session_id": sessionID,
			"call_id":    callID,
			"ts_unix":    strconv.FormatInt(time.Now().UTC().Unix(), 10),
		},
	}).Err()
}

// StatusPublisher fans status frames out to the session's open views.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, sessionID string, payload []byte) error
}

type RedisStatusPublisher struct {
	Redis *redis.Client
}

func (r RedisStatusPublisher) PublishStatus(ctx context.Context, sessionID string, payload []byte) error {
	return r.Redis.Publish(ctx, StatusChannel(sessionID), string(payload)).Err()
}

type ReportWorkerPool struct {
	Redis      *redis.Client
	Reports    services.ReportService
	Status     StatusPublisher  // defaults to Redis pub/sub
	Archive    storage.Uploader // optional
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *ReportWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Reports == nil {
		return errors.New("ReportWorkerPool missing dependency: Redis/Reports must be set")
	}
	if p.Stream == "" {
		p.Stream = DefaultReportStream
	}
	if p.Group == "" {
		p.Group = DefaultReportGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
	if p.Status == nil {
		p.Status = RedisStatusPublisher{Redis: p.Redis}
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *ReportWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    5,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if err == redis.Nil {
				continue
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg.ID, msg.Values)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

type statusMsg struct {
	Type    string         `json:"type"`
	Status  string         `json:"status"`
	Message string         `json:"message"`
	CallID  string         `json:"call_id,omitempty"`
	Report  map[string]any `json:"report,omitempty"`
}

func (p *ReportWorkerPool) publish(ctx context.Context, sessionID string, m statusMsg) {
	m.Type = "status"
	b, _ := json.Marshal(m)
	if err := p.Status.PublishStatus(ctx, sessionID, b); err != nil {
		p.Logger.WithError(err).WithField("session_id", sessionID).Warn("publish status failed")
	}
}

func (p *ReportWorkerPool) handleMsg(ctx context.Context, id string, values map[string]any) {
	getStr := func(k string) string {
		v, ok := values[k]
		if !ok || v == nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}

	sessionID := getStr("session_id")
	callID := getStr("call_id")
	if sessionID == "" {
		return
	}

	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":   id,
		"session_id": sessionID,
		"call_id":    callID,
	})

	p.publish(ctx, sessionID, statusMsg{Status: "processing", Message: "generating report", CallID: callID})

	start := time.Now()
	report, transcript, err := p.Reports.Generate(ctx, sessionID)
	if err != nil {
		if utils.IsCode(err, utils.CodeInvalidArgument) {
			log.WithError(err).Info("report skipped")
			p.publish(ctx, sessionID, statusMsg{Status: "skipped", Message: "no transcript to report", CallID: callID})
			return
		}
		log.WithError(err).Error("report generation failed")
		p.publish(ctx, sessionID, statusMsg{Status: "failed", Message: "report generation failed", CallID: callID})
		return
	}

	if p.Archive != nil {
		p.archive(ctx, log, sessionID, callID, report, transcript)
	}

	log.WithField("processing_time_ms", time.Since(start).Milliseconds()).Info("report ready")
	p.publish(ctx, sessionID, statusMsg{Status: "report_ready", Message: "report ready", CallID: callID, Report: report})
}

type archiveDoc struct {
	SessionID  string                 `json:"sessionId"`
	CallID     string                 `json:"callId,omitempty"`
	Report     map[string]any         `json:"report"`
	Transcript []models.TranscriptLog `json:"transcript"`
}

func ArchiveObjectName(sessionID, callID string) string {
	if callID == "" {
		callID = "latest"
	}
	return "sessions/" + sessionID + "/" + callID + ".json"
}

func (p *ReportWorkerPool) archive(ctx context.Context, log *logrus.Entry, sessionID, callID string, report map[string]any, transcript []models.TranscriptLog) {
	path, err := storage.PutJSON(ctx, p.Archive, ArchiveObjectName(sessionID, callID), archiveDoc{
		SessionID:  sessionID,
		CallID:     callID,
		Report:     report,
		Transcript: transcript,
	})
	if err != nil {
		log.WithError(err).Warn("archive upload failed")
		return
	}
	log.WithField("path", path).Info("consultation archived")
}
