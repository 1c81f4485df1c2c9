package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"reconciliation-service/internal/domain"
)

type RunEvent struct {
	EventType    string          `json:"event_type"` // reconciliation.run.completed, reconciliation.run.aborted
	RunID        string          `json:"run_id"`
	Status       string          `json:"status"`
	Result       string          `json:"result,omitempty"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	Imbalance    decimal.Decimal `json:"imbalance_amount"`
	TxnCount     int             `json:"txn_count"`
	Matched      int             `json:"matched_count"`
	Variances    int             `json:"variance_count"`
	Ambiguities  int             `json:"ambiguity_count"`
	Reason       string          `json:"reason,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// RunEventPublisher pushes run lifecycle events to Kafka. Downstream
// consumers (alerting, the finance data lake) read them off the topic;
// a publish failure is logged and dropped, never surfaced to the run.
type RunEventPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewRunEventPublisher(writer *kafka.Writer, logger *zap.Logger) *RunEventPublisher {
	return &RunEventPublisher{writer: writer, logger: logger}
}

// PublishRunCompleted announces a finalized run. Fire-and-forget.
func (p *RunEventPublisher) PublishRunCompleted(run *domain.ReconciliationRun) {
	go p.publish(&RunEvent{
		EventType:    "reconciliation.run.completed",
		RunID:        run.RunID,
		Status:       string(run.Status),
		Result:       string(run.Result),
		TotalDebits:  run.Debits,
		TotalCredits: run.Credits,
		Imbalance:    run.Imbalance,
		TxnCount:     run.TxnCount,
		Matched:      run.Matched,
		Variances:    run.Variances,
		Ambiguities:  run.Ambiguities,
	})
}

// PublishRunAborted announces a discarded run. Fire-and-forget.
func (p *RunEventPublisher) PublishRunAborted(run *domain.ReconciliationRun, reason string) {
	go p.publish(&RunEvent{
		EventType: "reconciliation.run.aborted",
		RunID:     run.RunID,
		Status:    string(domain.RunAborted),
		TxnCount:  run.TxnCount,
		Reason:    reason,
	})
}

func (p *RunEventPublisher) publish(event *RunEvent) {
	if p.writer == nil {
		return
	}
	event.Timestamp = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal run event",
			zap.Error(err),
			zap.String("run_id", event.RunID),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RunID),
		Value: payload,
		Time:  time.Now(),
	}); err != nil {
		p.logger.Error("failed to publish run event to Kafka",
			zap.Error(err),
			zap.String("event_type", event.EventType),
			zap.String("run_id", event.RunID),
		)
		return
	}

	p.logger.Debug("run event published",
		zap.String("event_type", event.EventType),
		zap.String("run_id", event.RunID),
	)
}
