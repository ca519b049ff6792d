package booking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"citabot/internal/domain"
	"citabot/internal/metrics"
)

const defaultConcurrency = 5

// Dispatcher consumes the inbound bus and runs the engine with bounded
// global concurrency. Messages from the same phone number are serialized
// behind a per-user mutex, so one user's session is never stepped by two
// messages at once; distinct users proceed in parallel.
type Dispatcher struct {
	engine      *Engine
	bus         domain.MessageBus
	store       domain.SessionStore
	logger      *slog.Logger
	concurrency int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type DispatcherConfig struct {
	Engine      *Engine
	Bus         domain.MessageBus
	Store       domain.SessionStore
	Logger      *slog.Logger
	Concurrency int
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Dispatcher{
		engine:      cfg.Engine,
		bus:         cfg.Bus,
		store:       cfg.Store,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Run consumes inbound messages until the context is canceled or the bus
// closes.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("booking dispatcher started", "concurrency", d.concurrency)

	sem := make(chan struct{}, d.concurrency)
	inbound := d.bus.Subscribe()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("booking dispatcher stopping")
			return
		case msg, ok := <-inbound:
			if !ok {
				d.logger.Info("inbound channel closed, dispatcher stopping")
				return
			}
			sem <- struct{}{}
			go func(m domain.InboundMessage) {
				defer func() { <-sem }()
				d.process(ctx, m)
			}(msg)
		}
	}
}

// process handles one inbound message as an atomic unit of work:
// read session, run FSM step, write session, emit replies.
func (d *Dispatcher) process(ctx context.Context, msg domain.InboundMessage) {
	if msg.Content == "" {
		return // no actionable message, no reply
	}

	metrics.MessagesReceived.Inc()
	start := time.Now()

	lock := d.lockFor(msg.UserID)
	lock.Lock()
	replies := d.engine.Handle(ctx, msg.UserID, msg.Content)
	lock.Unlock()

	metrics.HandleSeconds.Observe(time.Since(start).Seconds())
	metrics.SessionsActive.Set(int64(d.store.Count()))

	for _, reply := range replies {
		metrics.RepliesSent.Inc()
		d.bus.SendOutbound(domain.OutboundMessage{
			Channel: msg.Channel,
			UserID:  msg.UserID,
			Content: reply,
		})
	}
}

func (d *Dispatcher) lockFor(userID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[userID] = l
	}
	return l
}
