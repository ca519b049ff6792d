// Package scheduler talks to the external scheduling oracle: suggest
// candidate appointment slots and book a chosen one. When no gateway
// endpoint is configured it degrades to a fixed local slot list.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"citabot/internal/config"
	"citabot/internal/domain"
)

// Remote is the HTTP client for the scheduling gateway. The gateway is a
// single endpoint multiplexed on an "action" field, matching the Apps
// Script contract the clinic deploys.
type Remote struct {
	endpoint string
	token    string
	maxSlots int
	client   *http.Client
	logger   *slog.Logger
}

// New returns the gateway for the given config: a Remote client when an
// HTTP(S) endpoint is configured, the Local fallback otherwise.
func New(cfg config.SchedulerConfig, logger *slog.Logger) domain.SchedulerGateway {
	if !strings.HasPrefix(cfg.Endpoint, "http") {
		logger.Warn("scheduler endpoint missing or malformed, using local slots", "endpoint", cfg.Endpoint)
		return NewLocal(logger)
	}
	return NewRemote(cfg, logger)
}

func NewRemote(cfg config.SchedulerConfig, logger *slog.Logger) *Remote {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	maxSlots := cfg.MaxSlots
	if maxSlots <= 0 {
		maxSlots = 3
	}
	return &Remote{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		maxSlots: maxSlots,
		client:   pooledClient(timeout),
		logger:   logger,
	}
}

// pooledClient returns an HTTP client with connection pooling sized for a
// single-gateway workload.
func pooledClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

type suggestPayload struct {
	Action    string `json:"action"`
	Phone     string `json:"phone"`
	Specialty string `json:"specialty"`
	DayText   string `json:"dayText"`
}

type bookPayload struct {
	Action       string `json:"action"`
	Phone        string `json:"phone"`
	Name         string `json:"name"`
	Specialty    string `json:"specialty"`
	DayText      string `json:"dayText"`
	SlotStartISO string `json:"slotStartISO"`
	RequestID    string `json:"requestId"`
}

type gatewayResponse struct {
	OK    bool          `json:"ok"`
	Slots []domain.Slot `json:"slots,omitempty"`
	Label string        `json:"label,omitempty"`
	Error string        `json:"error,omitempty"`
}

// Suggest asks for candidate slots. The returned list is truncated to the
// configured maximum and unlabeled slots get a synthesized label. An
// ok:false answer or an empty list returns an empty slice, not an error.
func (r *Remote) Suggest(ctx context.Context, req domain.SuggestRequest) ([]domain.Slot, error) {
	payload := suggestPayload{
		Action:    "suggest",
		Phone:     req.Phone,
		Specialty: req.Specialty,
		DayText:   req.DayText,
	}

	var resp gatewayResponse
	if err := r.post(ctx, payload, &resp); err != nil {
		return nil, err
	}

	if !resp.OK {
		r.logger.Info("suggest returned no availability", "specialty", req.Specialty, "day", req.DayText, "error", resp.Error)
		return nil, nil
	}

	slots := resp.Slots
	if len(slots) > r.maxSlots {
		slots = slots[:r.maxSlots]
	}
	for i := range slots {
		if slots[i].Label == "" {
			slots[i].Label = fmt.Sprintf("Opción %d", i+1)
		}
	}
	return slots, nil
}

// Book commits the chosen slot. Retried calls carry the same RequestID so
// a deduplicating gateway books at most once per confirmation round.
func (r *Remote) Book(ctx context.Context, req domain.BookingRequest) (string, error) {
	payload := bookPayload{
		Action:       "book",
		Phone:        req.Phone,
		Name:         req.Name,
		Specialty:    req.Specialty,
		DayText:      req.DayText,
		SlotStartISO: req.Slot.StartISO,
		RequestID:    req.RequestID,
	}

	var resp gatewayResponse
	if err := r.post(ctx, payload, &resp); err != nil {
		return "", err
	}

	if !resp.OK {
		if resp.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrRejected, resp.Error)
		}
		return "", ErrRejected
	}

	label := resp.Label
	if label == "" {
		label = req.Slot.Label
	}
	return label, nil
}

func (r *Remote) post(ctx context.Context, payload any, out *gatewayResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	buildReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if r.token != "" {
			req.Header.Set("Authorization", "Bearer "+r.token)
		}
		return req, nil
	}

	resp, err := doWithRetry(ctx, r.client, buildReq, r.logger)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: gateway HTTP %d: %s", ErrUnavailable, resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	return nil
}
