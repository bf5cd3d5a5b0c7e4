package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/m-p-esser/data-job-pipeline/internal/config"
	"github.com/m-p-esser/data-job-pipeline/internal/errors"
	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("data-job-pipeline/messaging")

const (
	// SplitEventsSubject announces searches whose raw envelope has been
	// split and is ready for warehouse loading.
	SplitEventsSubject = "jobs.split"
)

// SplitEvent is the payload published for every split search.
type SplitEvent struct {
	SearchID   string    `json:"search_id"`
	JobResults int       `json:"job_results"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishSplit(ctx context.Context, event *SplitEvent) error
	Close()
}

type natsPublisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewPublisher(logger *zap.Logger, config *config.Config) (Publisher, error) {
	opts := []nats.Option{
		nats.Timeout(config.NATSConnTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	}

	conn, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, errors.Unavailable("connecting to NATS", err)
	}

	return &natsPublisher{
		conn:   conn,
		logger: logger,
	}, nil
}

func (p *natsPublisher) PublishSplit(ctx context.Context, event *SplitEvent) error {
	_, span := tracer.Start(ctx, "PublishSplit")
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		return errors.Internal("marshaling split event", err)
	}

	span.SetAttributes(
		telemetry.String("nats.subject", SplitEventsSubject),
		telemetry.Int("message.size", len(data)),
	)

	if err := p.conn.Publish(SplitEventsSubject, data); err != nil {
		span.RecordError(err)
		p.logger.Error("failed to publish split event",
			zap.String("search_id", event.SearchID),
			zap.Error(err))
		return errors.Internal("publishing to NATS", err)
	}

	p.logger.Debug("published split event",
		zap.String("search_id", event.SearchID),
		zap.String("subject", SplitEventsSubject))
	return nil
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

type nopPublisher struct{}

// Nop returns a Publisher that drops events. Used for one-shot CLI runs
// where no broker is reachable; the load stage picks the splits up from the
// store instead.
func Nop() Publisher {
	return nopPublisher{}
}

func (nopPublisher) PublishSplit(ctx context.Context, event *SplitEvent) error { return nil }

func (nopPublisher) Close() {}
