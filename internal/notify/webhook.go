package notify

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type WebhookConfig struct {
	URL       string
	Secret    string
	Timeout   time.Duration
	QueueSize int
}

type WebhookPayload struct {
	DeliveryID string    `json:"delivery_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// WebhookNotifier POSTs notification events to a configured receiver,
// signing each payload with HMAC-SHA256. Deliveries run on a single
// background worker; when the queue is full new events are dropped.
type WebhookNotifier struct {
	url        string
	secret     []byte
	httpClient *http.Client
	queue      chan *WebhookPayload
	stopCh     chan struct{}
	doneCh     chan struct{}
}

func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	return &WebhookNotifier{
		url:    cfg.URL,
		secret: []byte(cfg.Secret),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		queue:  make(chan *WebhookPayload, cfg.QueueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (n *WebhookNotifier) Start() {
	go n.worker()
}

func (n *WebhookNotifier) Stop() {
	close(n.stopCh)
	<-n.doneCh
}

func (n *WebhookNotifier) Notify(title, body string) {
	payload := &WebhookPayload{
		DeliveryID: uuid.NewString(),
		Title:      title,
		Body:       body,
		Timestamp:  time.Now(),
	}

	select {
	case n.queue <- payload:
	default:
		log.Printf("[webhook] delivery queue full, dropping %q", title)
	}
}

func (n *WebhookNotifier) worker() {
	defer close(n.doneCh)
	for {
		select {
		case <-n.stopCh:
			return
		case payload := <-n.queue:
			n.deliver(payload)
		}
	}
}

func (n *WebhookNotifier) deliver(payload *WebhookPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[webhook] failed to marshal payload %s: %v", payload.DeliveryID, err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("[webhook] failed to build request %s: %v", payload.DeliveryID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-PrintSmart-Delivery", payload.DeliveryID)
	if len(n.secret) > 0 {
		req.Header.Set("X-PrintSmart-Signature", Sign(body, n.secret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		log.Printf("[webhook] delivery %s failed: %v", payload.DeliveryID, err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[webhook] delivery %s returned status %d", payload.DeliveryID, resp.StatusCode)
	}
}

// Sign computes the hex HMAC-SHA256 of body. Receivers recompute it to
// verify the payload came from this process.
func Sign(body, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
