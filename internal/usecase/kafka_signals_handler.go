package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SigPulse/internal/domain/models"
	drepo "SigPulse/internal/domain/repository"
	mid "SigPulse/internal/middleware"
	pkgkafka "SigPulse/pkg/kafka"
)

// KafkaSignalsHandler consumes candidate signals from the ingest topic and
// feeds them through the same pipeline the HTTP ingestion endpoint uses.
type KafkaSignalsHandler struct {
	topic   string
	pipe    *mid.IngestPipeline
	metrics drepo.Metrics
}

func NewKafkaSignalsHandler(topic string, pipe *mid.IngestPipeline, metrics drepo.Metrics) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// Handle unmarshals one candidate signal message. Returning the error lets
// the consumer's retry/DLQ machinery deal with poison messages.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var cand models.CandidateSignal
	if err := json.Unmarshal(b, &cand); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return err
	}
	if cand.DetectedAt.IsZero() {
		cand.DetectedAt = time.Now().UTC()
	}

	start := time.Now()
	if err := h.pipe.Process(ctx, &cand); err != nil {
		return err
	}
	h.metrics.RecordLatency("ingest_kafka", time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
