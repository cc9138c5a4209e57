package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nobroker_watchdog/models"
)

type stubChannel struct {
	name string
	err  error
	sent int
}

func (c *stubChannel) Name() string { return c.name }

func (c *stubChannel) Send(_ context.Context, _ *models.AlertPayload) error {
	if c.err != nil {
		return c.err
	}
	c.sent++
	return nil
}

func testPayload() *models.AlertPayload {
	return &models.AlertPayload{
		Listing: &models.Listing{
			ID:           "p1",
			Title:        "2BHK in Koramangala",
			URL:          "https://www.nobroker.in/property/p1",
			AreaDisplay:  "Koramangala",
			PriceMonthly: 25000,
		},
		Score:     &models.ScoreBreakdown{Overall: 85},
		CreatedAt: time.Now(),
	}
}

func TestDispatcher_FirstChannelWins(t *testing.T) {
	wa := &stubChannel{name: "WHATSAPP"}
	sms := &stubChannel{name: "SMS"}
	d := NewDispatcher([]string{"whatsapp", "sms"}, wa, sms)

	if err := d.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if wa.sent != 1 || sms.sent != 0 {
		t.Fatalf("expected exactly one delivery via WHATSAPP, got wa=%d sms=%d", wa.sent, sms.sent)
	}
}

func TestDispatcher_FallsBackInOrder(t *testing.T) {
	wa := &stubChannel{name: "WHATSAPP", err: errors.New("graph api 500")}
	sms := &stubChannel{name: "SMS"}
	queue := &stubChannel{name: "QUEUE"}
	d := NewDispatcher([]string{"WHATSAPP", "SMS", "QUEUE"}, wa, sms, queue)

	if err := d.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if sms.sent != 1 || queue.sent != 0 {
		t.Fatalf("expected SMS fallback only, got sms=%d queue=%d", sms.sent, queue.sent)
	}
}

func TestDispatcher_AllChannelsFail(t *testing.T) {
	wa := &stubChannel{name: "WHATSAPP", err: errors.New("down")}
	sms := &stubChannel{name: "SMS", err: errors.New("also down")}
	d := NewDispatcher([]string{"WHATSAPP", "SMS"}, wa, sms)

	err := d.Send(context.Background(), testPayload())
	if !errors.Is(err, ErrNoChannels) {
		t.Fatalf("expected ErrNoChannels, got %v", err)
	}
}

func TestDispatcher_NoChannelsConfigured(t *testing.T) {
	d := NewDispatcher(nil)
	if err := d.Send(context.Background(), testPayload()); !errors.Is(err, ErrNoChannels) {
		t.Fatalf("expected ErrNoChannels, got %v", err)
	}
}

func TestDispatcher_UnavailableChannelSkipped(t *testing.T) {
	// SMS is named in the order but no channel registered for it.
	queue := &stubChannel{name: "QUEUE"}
	d := NewDispatcher([]string{"SMS", "QUEUE"}, queue)

	if err := d.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if queue.sent != 1 {
		t.Fatalf("expected QUEUE delivery, got %d", queue.sent)
	}
}

func TestWhatsAppChannel_SendsGraphRequest(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"messages":[{"id":"wamid.x"}]}`))
	}))
	defer srv.Close()

	ch := NewWhatsAppChannel(srv.Client(), "phone-123", "tok", "+919800000000")
	ch.BaseURL = srv.URL

	if err := ch.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/phone-123/messages" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
}

func TestWhatsAppChannel_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	ch := NewWhatsAppChannel(srv.Client(), "phone-123", "bad", "+919800000000")
	ch.BaseURL = srv.URL

	if err := ch.Send(context.Background(), testPayload()); err == nil {
		t.Fatalf("expected error on 401")
	}
}

func TestTwilioChannel_SendsForm(t *testing.T) {
	var gotFrom, gotTo string
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotFrom = r.PostFormValue("From")
		gotTo = r.PostFormValue("To")
		gotUser, _, _ = r.BasicAuth()
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123"}`))
	}))
	defer srv.Close()

	ch := NewTwilioChannel(srv.Client(), "AC123", "secret", "+15550001111", "+919800000000")
	ch.BaseURL = srv.URL

	if err := ch.Send(context.Background(), testPayload()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotFrom != "+15550001111" || gotTo != "+919800000000" {
		t.Fatalf("unexpected from/to: %q %q", gotFrom, gotTo)
	}
	if gotUser != "AC123" {
		t.Fatalf("expected basic auth with the account sid, got %q", gotUser)
	}
}
