package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"citabot/internal/bus"
	"citabot/internal/config"
	"citabot/internal/domain"
)

func testChannelLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func startedWhatsApp(t *testing.T, cfg config.WhatsAppConfig) (*WhatsApp, *bus.InMemoryBus) {
	t.Helper()
	b := bus.New(16, testChannelLogger())
	t.Cleanup(b.Close)

	wa := NewWhatsApp(cfg, testChannelLogger())
	if err := wa.Start(context.Background(), b); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return wa, b
}

func textPayload(from, body string) []byte {
	data, _ := json.Marshal(waPayload{
		Object: "whatsapp_business_account",
		Entry: []waEntry{{
			ID: "entry-1",
			Changes: []waChange{{
				Field: "messages",
				Value: waValue{
					MessagingProduct: "whatsapp",
					Messages: []waMessage{{
						From: from,
						ID:   "wamid.1",
						Type: "text",
						Text: &waText{Body: body},
					}},
				},
			}},
		}},
	})
	return data
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerification_CorrectToken(t *testing.T) {
	wa, _ := startedWhatsApp(t, config.WhatsAppConfig{VerifyToken: "tok", WebhookPath: "/webhook"})

	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("body = %q, want the challenge echoed", rec.Body.String())
	}
}

func TestVerification_WrongToken(t *testing.T) {
	wa, _ := startedWhatsApp(t, config.WhatsAppConfig{VerifyToken: "tok", WebhookPath: "/webhook"})

	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestIncoming_PublishesTextToBus(t *testing.T) {
	wa, b := startedWhatsApp(t, config.WhatsAppConfig{WebhookPath: "/webhook"})
	inbound := b.Subscribe()

	body := textPayload("34600111222", "hola")
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	select {
	case msg := <-inbound:
		if msg.Channel != "whatsapp" {
			t.Errorf("channel = %q", msg.Channel)
		}
		if msg.UserID != "34600111222" {
			t.Errorf("userID = %q", msg.UserID)
		}
		if msg.Content != "hola" {
			t.Errorf("content = %q", msg.Content)
		}
	default:
		t.Fatal("no message published")
	}
}

func TestIncoming_SignatureRequired(t *testing.T) {
	wa, b := startedWhatsApp(t, config.WhatsAppConfig{AppSecret: "secret", WebhookPath: "/webhook"})
	inbound := b.Subscribe()

	body := textPayload("34600111222", "hola")

	// No signature header.
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("unsigned: status = %d, want 403", rec.Code)
	}

	// Wrong signature.
	req = httptest.NewRequest("POST", "/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", sign("other-secret", body))
	rec = httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("bad signature: status = %d, want 403", rec.Code)
	}

	// Valid signature.
	req = httptest.NewRequest("POST", "/webhook", strings.NewReader(string(body)))
	req.Header.Set("X-Hub-Signature-256", sign("secret", body))
	rec = httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("signed: status = %d, want 200", rec.Code)
	}

	select {
	case msg := <-inbound:
		if msg.Content != "hola" {
			t.Errorf("content = %q", msg.Content)
		}
	default:
		t.Fatal("signed message not published")
	}
}

func TestIncoming_NonTextIgnored(t *testing.T) {
	wa, b := startedWhatsApp(t, config.WhatsAppConfig{WebhookPath: "/webhook"})
	inbound := b.Subscribe()

	data, _ := json.Marshal(waPayload{
		Entry: []waEntry{{
			Changes: []waChange{{
				Value: waValue{Messages: []waMessage{{From: "34600111222", Type: "audio"}}},
			}},
		}},
	})
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(string(data)))
	rec := httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (always ack)", rec.Code)
	}
	select {
	case msg := <-inbound:
		t.Errorf("unexpected publish: %+v", msg)
	default:
	}
}

func TestIncoming_MalformedJSON(t *testing.T) {
	wa, _ := startedWhatsApp(t, config.WhatsAppConfig{WebhookPath: "/webhook"})

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	wa.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSendMessage_GraphAPICall(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wa := NewWhatsApp(config.WhatsAppConfig{
		AccessToken:   "token-123",
		PhoneNumberID: "555",
	}, testChannelLogger())
	wa.apiBase = srv.URL

	err := wa.Send(context.Background(), "34600111222", "Hola 👋")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if gotPath != "/555/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["to"] != "34600111222" || gotBody["messaging_product"] != "whatsapp" {
		t.Errorf("payload = %v", gotBody)
	}
	text, _ := gotBody["text"].(map[string]any)
	if text["body"] != "Hola 👋" {
		t.Errorf("text = %v", text)
	}
}

func TestSendMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, `{"error":{"message":"invalid token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	wa := NewWhatsApp(config.WhatsAppConfig{PhoneNumberID: "555"}, testChannelLogger())
	wa.apiBase = srv.URL

	err := wa.Send(context.Background(), "34600111222", "hola")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error should carry status code: %v", err)
	}
}

func TestOutbound_RoutedThroughBus(t *testing.T) {
	var gotTo string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		gotTo, _ = body["to"].(string)
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := bus.New(16, testChannelLogger())
	defer b.Close()

	wa := NewWhatsApp(config.WhatsAppConfig{PhoneNumberID: "555"}, testChannelLogger())
	wa.apiBase = srv.URL
	if err := wa.Start(context.Background(), b); err != nil {
		t.Fatal(err)
	}

	// SendOutbound dispatches synchronously to the registered handler.
	b.SendOutbound(domain.OutboundMessage{Channel: "whatsapp", UserID: "34600111222", Content: "hola"})

	if gotTo != "34600111222" {
		t.Errorf("outbound not delivered via Graph API, to = %q", gotTo)
	}
}
