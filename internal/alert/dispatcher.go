package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apisentinel/apisentinel/internal/domain/anomaly"
	"github.com/apisentinel/apisentinel/internal/domain/channel"
	"github.com/apisentinel/apisentinel/internal/domain/delivery"
	"github.com/apisentinel/apisentinel/internal/domain/project"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
	"github.com/apisentinel/apisentinel/internal/pkg/logger"
	"github.com/apisentinel/apisentinel/internal/pkg/metrics"
)

// Outcome is the aggregate result of one dispatch call
type Outcome string

const (
	// OutcomeDelivered means every active channel succeeded
	OutcomeDelivered Outcome = "delivered"
	// OutcomeFailed means at least one channel failed
	OutcomeFailed Outcome = "failed"
	// OutcomeNoChannels means the project has no active channels; this is
	// a no-op, distinct from a failed delivery
	OutcomeNoChannels Outcome = "no_channels"
)

// ChannelResult is the outcome of one channel delivery
type ChannelResult struct {
	ChannelID string
	Kind      string
	Err       error
}

// Result aggregates per-channel outcomes for one dispatch call
type Result struct {
	Outcome  Outcome
	Channels []ChannelResult
}

// Delivered reports whether every channel succeeded
func (r Result) Delivered() bool {
	return r.Outcome == OutcomeDelivered
}

// Dispatcher fans a single anomaly out to its project's active
// notification channels and aggregates per-channel outcomes.
type Dispatcher struct {
	anomalies  anomaly.Repository
	projects   project.Repository
	channels   channel.Repository
	deliveries delivery.Repository
	email      EmailSender
	httpClient *http.Client
	timeout    time.Duration
	logger     *logger.Logger
}

// NewDispatcher creates a new alert dispatcher. timeout bounds every
// outbound delivery call.
func NewDispatcher(
	anomalies anomaly.Repository,
	projects project.Repository,
	channels channel.Repository,
	deliveries delivery.Repository,
	email EmailSender,
	timeout time.Duration,
	log *logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		anomalies:  anomalies,
		projects:   projects,
		channels:   channels,
		deliveries: deliveries,
		email:      email,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     log,
	}
}

// Dispatch loads an anomaly, resolves its project's active channels,
// renders the payload once and delivers it to every channel concurrently.
// Per-channel failures are counted, never propagated; the aggregate
// outcome is delivered only if every channel succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, anomalyID string) (Result, error) {
	a, err := d.anomalies.GetByID(ctx, anomalyID)
	if err != nil {
		return Result{}, err
	}

	p, err := d.projects.GetByID(ctx, a.ProjectID)
	if err != nil {
		return Result{}, err
	}

	channels, err := d.channels.ActiveForProject(ctx, p.ID)
	if err != nil {
		return Result{}, err
	}

	if len(channels) == 0 {
		d.logger.WithFields(map[string]interface{}{
			"anomaly_id": anomalyID,
			"project_id": p.ID,
		}).Info("No active channels for project, skipping alert")
		metrics.RecordAlertDispatch(string(OutcomeNoChannels))
		return Result{Outcome: OutcomeNoChannels}, nil
	}

	payload := NewPayload(p, a)

	results := make([]ChannelResult, len(channels))
	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func(i int, ch *channel.NotificationChannel) {
			defer wg.Done()
			results[i] = ChannelResult{
				ChannelID: ch.ID,
				Kind:      ch.Kind,
				Err:       d.deliver(ctx, ch, payload),
			}
		}(i, ch)
	}
	wg.Wait()

	outcome := OutcomeDelivered
	for _, res := range results {
		d.recordOutcome(ctx, anomalyID, res)
		if res.Err != nil {
			outcome = OutcomeFailed
			d.logger.WithFields(map[string]interface{}{
				"anomaly_id": anomalyID,
				"channel_id": res.ChannelID,
				"kind":       res.Kind,
			}).ErrorWithErr(res.Err, "Channel delivery failed")
		}
	}

	metrics.RecordAlertDispatch(string(outcome))

	d.logger.WithFields(map[string]interface{}{
		"anomaly_id": anomalyID,
		"project_id": p.ID,
		"channels":   len(channels),
		"outcome":    outcome,
	}).Info("Alert dispatched")

	return Result{Outcome: outcome, Channels: results}, nil
}

// deliver renders and sends the payload for one channel. Delivery and
// configuration errors are returned for aggregation, never propagated
// past the dispatch call.
func (d *Dispatcher) deliver(ctx context.Context, ch *channel.NotificationChannel, p Payload) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var err error
	switch ch.Kind {
	case channel.KindEmail:
		var cfg channel.EmailConfig
		if jsonErr := json.Unmarshal(ch.Config, &cfg); jsonErr != nil || cfg.Email == "" {
			err = errors.ConfigurationInvalid("email channel missing email address")
			break
		}
		subject, body := renderEmail(p)
		err = d.email.Send(ctx, cfg.Email, subject, body)

	case channel.KindSlack:
		var cfg channel.SlackConfig
		if jsonErr := json.Unmarshal(ch.Config, &cfg); jsonErr != nil || cfg.WebhookURL == "" {
			err = errors.ConfigurationInvalid("slack channel missing webhook_url")
			break
		}
		err = d.postSlack(ctx, cfg.WebhookURL, p)

	case channel.KindWebhook:
		var cfg channel.WebhookConfig
		if jsonErr := json.Unmarshal(ch.Config, &cfg); jsonErr != nil || cfg.URL == "" {
			err = errors.ConfigurationInvalid("webhook channel missing url")
			break
		}
		err = d.postWebhook(ctx, cfg.URL, p)

	default:
		err = errors.ConfigurationInvalid("unsupported channel kind: " + ch.Kind)
	}

	if err != nil {
		metrics.RecordChannelDelivery(ch.Kind, delivery.StatusFailed)
		return errors.ChannelDeliveryFailed(ch.Kind, err)
	}

	metrics.RecordChannelDelivery(ch.Kind, delivery.StatusDelivered)
	return nil
}

// recordOutcome persists one channel attempt. Outcome rows are
// operational telemetry; a write failure is logged, not surfaced.
func (d *Dispatcher) recordOutcome(ctx context.Context, anomalyID string, res ChannelResult) {
	o := &delivery.Outcome{
		ID:          uuid.New().String(),
		AnomalyID:   anomalyID,
		ChannelID:   res.ChannelID,
		ChannelKind: res.Kind,
		Status:      delivery.StatusDelivered,
		AttemptedAt: time.Now().UTC(),
	}
	if res.Err != nil {
		o.Status = delivery.StatusFailed
		o.Error = res.Err.Error()
	}

	if err := d.deliveries.Create(ctx, o); err != nil {
		d.logger.ErrorWithErr(err, "Failed to record delivery outcome")
	}
}
