package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookDeliversSignedPayload(t *testing.T) {
	type received struct {
		payload   WebhookPayload
		signature string
		delivery  string
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if want := Sign(body, []byte("topsecret")); r.Header.Get("X-PrintSmart-Signature") != want {
			t.Errorf("signature = %q, want %q", r.Header.Get("X-PrintSmart-Signature"), want)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}

		var payload WebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("unmarshal payload: %v", err)
		}
		got <- received{
			payload:   payload,
			signature: r.Header.Get("X-PrintSmart-Signature"),
			delivery:  r.Header.Get("X-PrintSmart-Delivery"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL, Secret: "topsecret"})
	n.Start()
	defer n.Stop()

	n.Notify("Job Ready!", "Job PS-123 is ready for collection.")

	select {
	case r := <-got:
		if r.payload.Title != "Job Ready!" {
			t.Errorf("title = %q", r.payload.Title)
		}
		if r.payload.Body != "Job PS-123 is ready for collection." {
			t.Errorf("body = %q", r.payload.Body)
		}
		if r.payload.DeliveryID == "" {
			t.Error("missing delivery id")
		}
		if r.delivery != r.payload.DeliveryID {
			t.Errorf("delivery header %q does not match payload id %q", r.delivery, r.payload.DeliveryID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook delivery never arrived")
	}
}

func TestWebhookOmitsSignatureWithoutSecret(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-PrintSmart-Signature")
	}))
	defer srv.Close()

	n := NewWebhookNotifier(WebhookConfig{URL: srv.URL})
	n.Start()
	defer n.Stop()

	n.Notify("New Online Order!", "Job PS-456 added to the queue.")

	select {
	case sig := <-got:
		if sig != "" {
			t.Errorf("expected no signature header, got %q", sig)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("webhook delivery never arrived")
	}
}

func TestWebhookDropsWhenQueueFull(t *testing.T) {
	n := NewWebhookNotifier(WebhookConfig{URL: "http://localhost:0", QueueSize: 1})
	// Worker not started: the second notify finds a full queue and must
	// drop rather than block.
	done := make(chan struct{})
	go func() {
		n.Notify("a", "1")
		n.Notify("b", "2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked on a full queue")
	}
}

func TestSignIsDeterministic(t *testing.T) {
	a := Sign([]byte("payload"), []byte("secret"))
	b := Sign([]byte("payload"), []byte("secret"))
	if a != b {
		t.Errorf("Sign not deterministic: %q vs %q", a, b)
	}
	if a == Sign([]byte("payload"), []byte("other")) {
		t.Error("different secrets produced the same signature")
	}
	if len(a) != 64 {
		t.Errorf("signature length = %d, want 64 hex chars", len(a))
	}
}
