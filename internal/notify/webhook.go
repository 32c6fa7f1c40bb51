package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrStopped   = errors.New("notifier stopped")
)

const (
	defaultQueueSize = 64
	deliveryTimeout  = 5 * time.Second
)

// WebhookNotifier queues events and posts them as JSON from a single worker goroutine.
// Send never blocks; when the queue is full the event is dropped.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
	queue  chan Message
	now    func() time.Time

	// mu orders Send against shutdown: once stopped is set nothing new is queued, so the
	// final drain sees every accepted event.
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewWebhookNotifier(url string, queueSize int, client *http.Client, logger *zap.Logger) *WebhookNotifier {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if client == nil {
		client = &http.Client{Timeout: deliveryTimeout}
	}
	return &WebhookNotifier{
		url:    url,
		client: client,
		logger: logger,
		queue:  make(chan Message, queueSize),
		now:    time.Now,
	}
}

func (n *WebhookNotifier) Send(ctx context.Context, event string, payload any) error {
	msg := Message{Event: event, Payload: payload, SentAt: n.now().UTC()}
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.stopped {
		n.logger.Warn("notifier stopped, dropping event", zap.String("event", event))
		return ErrStopped
	}
	select {
	case n.queue <- msg:
		return nil
	default:
		n.logger.Warn("notification queue full, dropping event", zap.String("event", event))
		return ErrQueueFull
	}
}

// Start runs the delivery worker until ctx is done. Events still queued at that point
// are delivered before Wait returns; later Sends fail with ErrStopped.
func (n *WebhookNotifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case <-ctx.Done():
				n.mu.Lock()
				n.stopped = true
				n.mu.Unlock()
				n.drain()
				return
			case msg := <-n.queue:
				n.deliver(msg)
			}
		}
	}()
}

func (n *WebhookNotifier) Wait() {
	n.wg.Wait()
}

func (n *WebhookNotifier) drain() {
	for {
		select {
		case msg := <-n.queue:
			n.deliver(msg)
		default:
			return
		}
	}
}

// deliver is detached from the worker's context so shutdown does not abort a post midway.
func (n *WebhookNotifier) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := n.post(ctx, msg); err != nil {
		n.logger.Warn("webhook delivery failed", zap.String("event", msg.Event), zap.Error(err))
	}
}

func (n *WebhookNotifier) post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
