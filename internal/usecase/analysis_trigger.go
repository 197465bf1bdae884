package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	domrepo "ZeroDTE/internal/domain/repository"
	pkgkafka "ZeroDTE/pkg/kafka"
	applogger "ZeroDTE/pkg/logger"
)

// AnalysisTrigger runs an analysis for every request message. Results leave
// through the runner's publisher.
type AnalysisTrigger struct {
	topic   string
	runner  *AnalysisRunner
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewAnalysisTrigger(topic string, runner *AnalysisRunner, metrics domrepo.Metrics, l *applogger.Logger) *AnalysisTrigger {
	if l == nil {
		l = applogger.Nop()
	}
	return &AnalysisTrigger{topic: topic, runner: runner, metrics: metrics, l: l}
}

func (h *AnalysisTrigger) Topic() string { return h.topic }

// incoming message schema: {capital?, sigma?}; an empty body uses defaults
func (h *AnalysisTrigger) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Capital float64 `json:"capital"`
		Sigma   float64 `json:"sigma"`
	}
	if len(b) > 0 {
		if err := json.Unmarshal(b, &m); err != nil {
			h.metrics.RecordError("trigger_unmarshal")
			return fmt.Errorf("decode trigger: %w", err)
		}
	}
	a, err := h.runner.Run(ctx, RunParams{Capital: m.Capital, Sigma: m.Sigma})
	if err != nil {
		if errors.Is(err, ErrInvalidParams) {
			// retrying a bad request cannot succeed
			h.l.Warn("trigger rejected", applogger.Error(err))
			return nil
		}
		return err
	}
	h.l.Debug("trigger handled",
		applogger.String("id", a.ID),
		applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)))
	return nil
}

var _ pkgkafka.MessageHandler = (*AnalysisTrigger)(nil)
