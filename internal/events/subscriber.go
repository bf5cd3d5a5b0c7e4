package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-p-esser/data-job-pipeline/internal/messaging"
	"github.com/m-p-esser/data-job-pipeline/internal/pipeline"
	"github.com/m-p-esser/data-job-pipeline/internal/telemetry"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const loaderQueueGroup = "pipeline-loader"

var tracer = telemetry.GetTracer("data-job-pipeline/events")

// Handler loads freshly split searches into the warehouse as their split
// events arrive, so worker deployments do not wait for the next scheduled
// run.
type Handler struct {
	logger *zap.Logger
	nc     *nats.Conn
	loader *pipeline.Loader
	sub    *nats.Subscription
}

func NewHandler(logger *zap.Logger, nc *nats.Conn, loader *pipeline.Loader) *Handler {
	return &Handler{
		logger: logger,
		nc:     nc,
		loader: loader,
	}
}

func (h *Handler) RegisterSubscriptions(lc fx.Lifecycle) error {
	sub, err := h.nc.QueueSubscribe(messaging.SplitEventsSubject, loaderQueueGroup, h.handleSplitEvent)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", messaging.SplitEventsSubject, err)
	}

	h.sub = sub
	h.logger.Info("registered NATS subscriptions",
		zap.String("subject", messaging.SplitEventsSubject),
		zap.String("queue", loaderQueueGroup))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.sub.Unsubscribe()
		},
	})

	return nil
}

func (h *Handler) handleSplitEvent(msg *nats.Msg) {
	ctx, span := tracer.Start(context.Background(), "handleSplitEvent")
	defer span.End()

	var event messaging.SplitEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		h.logger.Error("failed to decode split event",
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return
	}

	span.SetAttributes(telemetry.String("search_id", event.SearchID))

	if err := h.loader.LoadSearch(ctx, event.SearchID); err != nil {
		span.RecordError(err)
		h.logger.Error("failed to load split search",
			zap.String("search_id", event.SearchID),
			zap.Error(err))
		return
	}

	h.logger.Info("loaded split search",
		zap.String("search_id", event.SearchID),
		zap.Int("job_results", event.JobResults))
}
