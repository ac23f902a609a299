// Package worker triggers report batches, either once at startup or per
// Pub/Sub message from the external scheduler.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/routemaps/routemaps/internal/pipeline"
)

// Runner runs one report batch for a day.
type Runner interface {
	Run(ctx context.Context, day time.Time) (*pipeline.BatchSummary, error)
}

// TriggerMessage is the payload the scheduler publishes.
type TriggerMessage struct {
	JobType string `json:"job_type"`
	// ReportDate overrides the configured day offset when set (YYYY-MM-DD).
	ReportDate string `json:"report_date,omitempty"`
}

// PubSubHandler runs a batch per scheduler message.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	runner           Runner
	defaultDay       func() time.Time
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Runner           Runner
	// DefaultDay yields the report day when the message carries none.
	DefaultDay func() time.Time
	Logger     zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1 // one batch at a time
	subscriber.ReceiveSettings.MaxExtension = 30 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		runner:           cfg.Runner,
		defaultDay:       cfg.DefaultDay,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing messages until the context is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var trigger TriggerMessage
	if err := json.Unmarshal(msg.Data, &trigger); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	if trigger.JobType != "route_report" {
		logger.Warn().Str("job_type", trigger.JobType).Msg("unknown job type")
		msg.Ack() // ack unknown messages to prevent redelivery
		return
	}

	day, err := resolveDay(trigger, h.defaultDay)
	if err != nil {
		logger.Error().Err(err).Msg("invalid report date")
		msg.Ack() // a bad date never becomes valid, do not redeliver
		return
	}

	summary, err := h.runner.Run(ctx, day)
	if err != nil {
		logger.Error().Err(err).Msg("report batch failed")
		msg.Nack()
		return
	}

	logger.Info().
		Str("run_id", summary.RunID).
		Int("rendered", summary.Rendered).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("report batch completed")

	msg.Ack()
}

// resolveDay picks the day a trigger refers to.
func resolveDay(trigger TriggerMessage, defaultDay func() time.Time) (time.Time, error) {
	if trigger.ReportDate == "" {
		return defaultDay(), nil
	}
	day, err := time.Parse("2006-01-02", trigger.ReportDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse report_date %q: %w", trigger.ReportDate, err)
	}
	return day, nil
}
