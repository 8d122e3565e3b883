package simulator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/service"
)

// Sink delivers a synthetic draft and reports the recorder outcome.
type Sink interface {
	Send(ctx context.Context, draft model.EventDraft) (string, error)
}

// Ingester is the in-process pipeline, normally *service.Ingestor.
type Ingester interface {
	Ingest(ctx context.Context, draft model.EventDraft) (service.IngestResult, error)
}

// IngestSink feeds drafts straight into the service layer.
type IngestSink struct {
	ingester Ingester
}

func NewIngestSink(ingester Ingester) *IngestSink {
	return &IngestSink{ingester: ingester}
}

func (s *IngestSink) Send(ctx context.Context, draft model.EventDraft) (string, error) {
	res, err := s.ingester.Ingest(ctx, draft)
	if err != nil {
		return "", err
	}
	return string(res.Record.Outcome), nil
}

// HTTPSink posts drafts to a remote ingestion endpoint.
type HTTPSink struct {
	client *resty.Client
}

type detectionReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewHTTPSink targets baseURL, e.g. http://toolcrib:8080. The draft's client
// IP is sent as X-Forwarded-For so dedup sees a stable origin.
func NewHTTPSink(baseURL string) *HTTPSink {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &HTTPSink{client: client}
}

func (s *HTTPSink) Send(ctx context.Context, draft model.EventDraft) (string, error) {
	reply := new(detectionReply)

	req := s.client.R().
		SetContext(ctx).
		SetBody(payloadOf(draft)).
		SetResult(reply).
		SetError(reply)
	if draft.ClientIP != "" {
		req.SetHeader("X-Forwarded-For", draft.ClientIP)
	}

	resp, err := req.Post("/api/detections/")
	if err != nil {
		return "", fmt.Errorf("post detection: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("post detection: status %d: %s", resp.StatusCode(), reply.Message)
	}
	if reply.Status == "success" {
		return string(service.OutcomeStored), nil
	}
	return reply.Status, nil
}
