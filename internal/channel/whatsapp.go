// Package channel connects the bot to its messaging transport. The only
// transport is the WhatsApp Business Cloud API: a webhook for inbound
// texts and the Graph API for outbound replies.
package channel

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"time"

	"citabot/internal/config"
	"citabot/internal/domain"
)

const graphAPIBase = "https://graph.facebook.com/v21.0"

// WhatsApp implements domain.Channel for WhatsApp Business Cloud API.
type WhatsApp struct {
	cfg     config.WhatsAppConfig
	bus     domain.MessageBus
	logger  *slog.Logger
	client  *http.Client
	mux     *http.ServeMux
	apiBase string
}

func NewWhatsApp(cfg config.WhatsAppConfig, logger *slog.Logger) *WhatsApp {
	return &WhatsApp{
		cfg:     cfg,
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
		apiBase: graphAPIBase,
	}
}

func (w *WhatsApp) Name() string { return "whatsapp" }

// Start wires the channel to the bus and prepares the webhook handlers.
// The webhook is served by the main HTTP server via Handler().
func (w *WhatsApp) Start(ctx context.Context, bus domain.MessageBus) error {
	w.bus = bus

	bus.OnOutbound("whatsapp", func(msg domain.OutboundMessage) {
		if err := w.sendMessage(ctx, msg.UserID, msg.Content); err != nil {
			w.logger.Error("whatsapp send failed", "err", err, "user", msg.UserID)
		}
	})

	w.mux = http.NewServeMux()
	webhookPath := w.cfg.WebhookPath
	if webhookPath == "" {
		webhookPath = "/webhook"
	}

	w.mux.HandleFunc(webhookPath, func(rw http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.handleVerification(rw, r)
		case http.MethodPost:
			w.handleIncoming(rw, r)
		default:
			rw.Header().Set("Allow", "GET, POST")
			http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		}
	})

	w.logger.Info("whatsapp channel ready", "webhook", webhookPath)
	return nil
}

func (w *WhatsApp) Stop() error { return nil }

func (w *WhatsApp) Send(ctx context.Context, userID string, content string) error {
	return w.sendMessage(ctx, userID, content)
}

// Handler returns the webhook handler to be mounted on the main mux.
func (w *WhatsApp) Handler() http.Handler {
	if w.mux == nil {
		return http.NotFoundHandler()
	}
	return w.mux
}

// handleVerification answers the Meta webhook subscription challenge.
func (w *WhatsApp) handleVerification(rw http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == w.cfg.VerifyToken {
		w.logger.Info("whatsapp webhook verified")
		rw.WriteHeader(http.StatusOK)
		fmt.Fprint(rw, html.EscapeString(challenge))
		return
	}

	w.logger.Warn("whatsapp webhook verification failed", "mode", mode)
	http.Error(rw, "Forbidden", http.StatusForbidden)
}

// handleIncoming validates the signature and publishes every inbound text
// to the bus. Non-text messages (audio, stickers, status updates) are
// acknowledged and dropped.
func (w *WhatsApp) handleIncoming(rw http.ResponseWriter, r *http.Request) {
	if w.cfg.AppSecret != "" {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(rw, "Bad request", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		sig := r.Header.Get("X-Hub-Signature-256")
		if !w.verifySignature(body, sig) {
			w.logger.Warn("whatsapp invalid signature")
			http.Error(rw, "Forbidden", http.StatusForbidden)
			return
		}
	}

	var payload waPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.logger.Warn("whatsapp bad payload", "err", err)
		http.Error(rw, "Bad request", http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text == nil {
					continue
				}

				w.logger.Info("whatsapp message received",
					"from", msg.From, "text_len", len(msg.Text.Body))

				w.bus.Publish(domain.InboundMessage{
					Channel:   "whatsapp",
					UserID:    msg.From,
					Content:   msg.Text.Body,
					Timestamp: time.Now(),
				})
			}
		}
	}

	rw.WriteHeader(http.StatusOK)
}

// verifySignature checks the X-Hub-Signature-256 HMAC header.
func (w *WhatsApp) verifySignature(body []byte, signature string) bool {
	if len(signature) < 7 || signature[:7] != "sha256=" {
		return false
	}
	expected := signature[7:]

	mac := hmac.New(sha256.New, []byte(w.cfg.AppSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(computed))
}

// sendMessage delivers a text via the Cloud API messages endpoint.
func (w *WhatsApp) sendMessage(ctx context.Context, to string, text string) error {
	url := fmt.Sprintf("%s/%s/messages", w.apiBase, w.cfg.PhoneNumberID)

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.cfg.AccessToken)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp API %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Cloud API webhook payload, trimmed to the fields the bot reads.

type waPayload struct {
	Object string    `json:"object"`
	Entry  []waEntry `json:"entry"`
}

type waEntry struct {
	ID      string     `json:"id"`
	Changes []waChange `json:"changes"`
}

type waChange struct {
	Value waValue `json:"value"`
	Field string  `json:"field"`
}

type waValue struct {
	MessagingProduct string      `json:"messaging_product"`
	Messages         []waMessage `json:"messages"`
}

type waMessage struct {
	From string  `json:"from"`
	ID   string  `json:"id"`
	Type string  `json:"type"`
	Text *waText `json:"text,omitempty"`
}

type waText struct {
	Body string `json:"body"`
}
