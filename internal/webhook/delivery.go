package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Aliikhatami94/workbox/internal/inbox"
	"github.com/Aliikhatami94/workbox/internal/job"
	"github.com/Aliikhatami94/workbox/internal/outbox"
)

// Delivery request headers.
const (
	HeaderEventID          = "X-Event-Id"
	HeaderTopic            = "X-Topic"
	HeaderSignature        = "X-Signature"
	HeaderSignatureAlg     = "X-Signature-Alg"
	HeaderSignatureVersion = "X-Signature-Version"
	HeaderAttempt          = "X-Attempt"
	HeaderPayloadVersion   = "X-Payload-Version"
	HeaderSubscription     = "X-Webhook-Subscription"
)

const defaultHTTPTimeout = 10 * time.Second

// DeliveryOption configures the delivery handler.
type DeliveryOption func(*delivery)

// WithHTTPClient overrides the outbound HTTP client.
func WithHTTPClient(c *http.Client) DeliveryOption {
	return func(d *delivery) { d.client = c }
}

// WithLogger sets the delivery logger.
func WithLogger(l *slog.Logger) DeliveryOption {
	return func(d *delivery) { d.logger = l }
}

type delivery struct {
	outbox outbox.Store
	inbox  inbox.Store
	client *http.Client
	logger *slog.Logger
}

// NewDeliveryHandler returns the job handler that performs webhook
// deliveries for jobs relayed from the outbox. The handler loads the outbox
// message named by the job payload, POSTs the signed event to the
// subscription URL, and marks the message processed on success. Any
// transport error or non-2xx response is returned, routing the job through
// the queue's retry/backoff path.
//
// Duplicate relays of the same attempt are suppressed through the inbox:
// a repeated (message, attempt) pair is treated as already delivered.
func NewDeliveryHandler(ob outbox.Store, ib inbox.Store, opts ...DeliveryOption) job.Handler {
	d := &delivery{
		outbox: ob,
		inbox:  ib,
		client: &http.Client{Timeout: defaultHTTPTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d.handle
}

func (d *delivery) handle(ctx context.Context, j *job.Job) error {
	msgID, err := outboxID(j.Payload)
	if err != nil {
		return err
	}

	msg, err := d.outbox.Get(ctx, msgID)
	if err == outbox.ErrNotFound {
		// The message is gone; nothing left to deliver.
		return nil
	}
	if err != nil {
		return fmt.Errorf("load outbox message %d: %w", msgID, err)
	}
	if msg.Status == outbox.StatusProcessed {
		return nil
	}

	event, sub, err := splitEnvelope(msg.Payload)
	if err != nil {
		return fmt.Errorf("outbox message %d: %w", msgID, err)
	}

	dedupeKey := fmt.Sprintf("webhook:%d:%d", msg.ID, j.Attempts)
	fresh, err := d.inbox.MarkIfNew(ctx, dedupeKey)
	if err != nil {
		return fmt.Errorf("inbox mark: %w", err)
	}
	if !fresh {
		d.logger.Info("duplicate webhook relay suppressed",
			"outbox_id", msg.ID,
			"attempt", j.Attempts,
		)
		return d.outbox.MarkProcessed(ctx, msg.ID)
	}

	if err := d.post(ctx, msg, sub, event, j.Attempts); err != nil {
		return err
	}

	if err := d.outbox.MarkProcessed(ctx, msg.ID); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	d.logger.Info("webhook delivered",
		"outbox_id", msg.ID,
		"topic", msg.Topic,
		"url", sub.URL,
		"attempt", j.Attempts,
	)
	return nil
}

func (d *delivery) post(ctx context.Context, msg *outbox.Message, sub Subscription, event map[string]any, attempt int) error {
	signature, err := Sign(sub.Secrets[0], event)
	if err != nil {
		return err
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventID, strconv.FormatInt(msg.ID, 10))
	req.Header.Set(HeaderTopic, msg.Topic)
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderSignatureAlg, SignatureAlg)
	req.Header.Set(HeaderSignatureVersion, SignatureVersion)
	req.Header.Set(HeaderAttempt, strconv.Itoa(attempt))
	req.Header.Set(HeaderPayloadVersion, strconv.Itoa(intField(event, "version", 1)))
	req.Header.Set(HeaderSubscription, sub.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", sub.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("deliver to %s: unexpected status %d", sub.URL, resp.StatusCode)
	}
	return nil
}

// splitEnvelope decodes the {event, subscription} envelope stored by
// Service.Publish.
func splitEnvelope(payload map[string]any) (map[string]any, Subscription, error) {
	event, ok := payload["event"].(map[string]any)
	if !ok {
		return nil, Subscription{}, fmt.Errorf("payload has no event envelope")
	}
	raw, ok := payload["subscription"].(map[string]any)
	if !ok {
		return nil, Subscription{}, fmt.Errorf("payload has no subscription envelope")
	}

	sub := Subscription{
		ID:    stringField(raw, "id"),
		Topic: stringField(raw, "topic"),
		URL:   stringField(raw, "url"),
	}
	switch secrets := raw["secrets"].(type) {
	case []string:
		sub.Secrets = secrets
	case []any:
		for _, s := range secrets {
			if str, ok := s.(string); ok {
				sub.Secrets = append(sub.Secrets, str)
			}
		}
	}
	if sub.URL == "" {
		return nil, Subscription{}, fmt.Errorf("subscription envelope has no url")
	}
	if len(sub.Secrets) == 0 {
		return nil, Subscription{}, fmt.Errorf("subscription envelope has no secrets")
	}
	return event, sub, nil
}

// outboxID coerces the job payload's outbox id, which arrives as int64 from
// in-process queues and as float64 after a JSON round trip.
func outboxID(payload job.Payload) (int64, error) {
	switch v := payload[outbox.PayloadKey].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("job payload has no %s", outbox.PayloadKey)
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string, defaultVal int) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return defaultVal
}
