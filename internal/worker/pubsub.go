package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/cropadvisor/cropadvisor/internal/syncer"
)

// Job types accepted on the subscription.
const (
	JobSyncPending    = "sync_pending"
	JobRefreshCatalog = "refresh_catalog"
	JobHealthCheck    = "health_check"
)

// ErrUnknownJobType is returned for messages with an unrecognised job_type.
var ErrUnknownJobType = errors.New("unknown job type")

// JobMessage is the Pub/Sub payload.
type JobMessage struct {
	JobType string `json:"job_type"`
	// Force re-downloads the snapshot regardless of its age. Only used by refresh_catalog.
	Force bool `json:"force,omitempty"`
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Job              *SyncJob
	Logger           zerolog.Logger
}

// PubSubHandler triggers sync job work from Pub/Sub messages.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.Job, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start receives messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().Str("subscription", h.subscriptionName).Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		if h.dispatcher.Handle(ctx, msg.Data, logger) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// Dispatcher routes decoded job messages to the sync job.
type Dispatcher struct {
	job    *SyncJob
	logger zerolog.Logger
}

// NewDispatcher creates a Dispatcher for job.
func NewDispatcher(job *SyncJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Handle processes one raw message and reports whether it should be acknowledged.
// Malformed payloads and failed jobs are nacked. Unknown job types and jobs skipped for
// lack of connectivity are acked so they are not redelivered.
func (d *Dispatcher) Handle(ctx context.Context, data []byte, logger zerolog.Logger) bool {
	start := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return false
	}

	err := d.Dispatch(ctx, msg)
	if errors.Is(err, ErrUnknownJobType) {
		logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return true
	}
	if errors.Is(err, syncer.ErrNoConnection) {
		logger.Info().Str("job_type", msg.JobType).Msg("job skipped while offline")
		return true
	}
	if err != nil {
		logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(start)).
		Msg("job completed successfully")
	return true
}

// Dispatch runs the work named by msg.
func (d *Dispatcher) Dispatch(ctx context.Context, msg JobMessage) error {
	switch msg.JobType {
	case JobSyncPending:
		res := d.job.Run(ctx)
		return res.Err
	case JobRefreshCatalog:
		_, err := d.job.RefreshCatalog(ctx, msg.Force)
		return err
	case JobHealthCheck:
		return d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

// healthCheck fails when the cache cannot be read or holds no usable snapshot.
func (d *Dispatcher) healthCheck(ctx context.Context) error {
	st, err := d.job.cache.Status(ctx)
	if err != nil {
		return fmt.Errorf("read cache status: %w", err)
	}
	if !st.OfflineAvailable {
		return errors.New("offline snapshot not available")
	}
	d.logger.Debug().
		Bool("cache_validity", st.CacheValidity).
		Int("unsynced", st.UnsyncedRecommendations).
		Msg("health check passed")
	return nil
}
