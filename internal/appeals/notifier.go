package appeals

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/trustdesk/backend/internal/config"
	"github.com/trustdesk/backend/internal/event"
	"github.com/trustdesk/backend/internal/observability"
)

// EventStatusChanged names the outbound event emitted after an appeal's
// status changes.
const EventStatusChanged = "appeal-action/status-changed"

const statusChangedTTL = time.Hour

// StatusChanged is the payload sent to the external workflow system.
type StatusChanged struct {
	OrganizationID string  `json:"organizationId"`
	AppealActionID string  `json:"appealActionId"`
	AppealID       string  `json:"appealId"`
	Status         string  `json:"status"`
	LastStatus     *string `json:"lastStatus"`
}

// Notifier dispatches status-changed events. Dispatch is advisory: storage is
// the source of truth and the caller never fails on a dispatch error.
type Notifier interface {
	StatusChanged(ctx context.Context, evt StatusChanged) error
}

type statusChangedEvent struct {
	*event.Base
	payload StatusChanged
}

// WebhookNotifier delivers status-changed events to a configured webhook URL
// off the request path, via the event worker.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	logger     *log.Entry
}

func NewWebhookNotifier(cfg config.Webhook) *WebhookNotifier {
	return &WebhookNotifier{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     log.WithField("service", "notifier"),
	}
}

// Start subscribes the notifier to the event bus.
func (n *WebhookNotifier) Start(ctx context.Context) error {
	event.Subscribe(EventStatusChanged, n.handle)
	return nil
}

func (n *WebhookNotifier) Stop(ctx context.Context) error {
	return nil
}

// StatusChanged queues the event for delivery and never blocks the caller.
func (n *WebhookNotifier) StatusChanged(ctx context.Context, evt StatusChanged) error {
	if n.url == "" {
		return nil
	}
	event.Bus.NQ(&statusChangedEvent{
		Base:    event.CreateBase(EventStatusChanged, time.Now().Add(statusChangedTTL)),
		payload: evt,
	})
	return nil
}

func (n *WebhookNotifier) handle(e event.Queueable) {
	evt, ok := e.(*statusChangedEvent)
	if !ok {
		e.Drop()
		return
	}
	if err := n.send(context.Background(), evt.payload); err != nil {
		observability.RecordNotifierResult(false)
		if observability.Logger != nil {
			observability.Logger.Warn("status-changed dispatch failed",
				zap.String("appeal_id", evt.payload.AppealID),
				zap.Error(err),
			)
		} else {
			n.logger.WithField("appeal_id", evt.payload.AppealID).WithError(err).Warn("status-changed dispatch failed")
		}
		// Delivery is best-effort; drop instead of retrying synchronously.
		evt.Drop()
		return
	}
	observability.RecordNotifierResult(true)
	evt.Process()
}

func (n *WebhookNotifier) send(ctx context.Context, evt StatusChanged) error {
	envelope := struct {
		Name string        `json:"name"`
		Data StatusChanged `json:"data"`
	}{
		Name: EventStatusChanged,
		Data: evt,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal status-changed event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}
