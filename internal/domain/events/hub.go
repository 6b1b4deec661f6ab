package events

import (
	"sync"

	"bookledger/internal/core/id"
	"bookledger/pkg/logger"
)

// Handler receives matching stock change events. Delivery is synchronous and
// best-effort: a handler that panics is recovered and skipped, never blocking
// delivery to later subscribers.
type Handler func(StockChange)

// Subscription registers interest in a filtered stream of stock changes.
type Subscription struct {
	// SubscriberID identifies the subscription for Unsubscribe
	SubscriberID string

	// WarehouseIDs restricts delivery to these warehouses (empty = all)
	WarehouseIDs []id.ID

	// TitleIDs restricts delivery to these titles (empty = all)
	TitleIDs []id.ID

	// Threshold suppresses events whose absolute delta is below it
	Threshold int64

	Handler Handler
}

func (s Subscription) matches(e StockChange) bool {
	if s.Threshold > 0 && e.Delta() < s.Threshold {
		return false
	}
	if len(s.WarehouseIDs) > 0 && !containsID(s.WarehouseIDs, e.WarehouseID) {
		return false
	}
	if len(s.TitleIDs) > 0 && !containsID(s.TitleIDs, e.TitleID) {
		return false
	}
	return true
}

func containsID(ids []id.ID, target id.ID) bool {
	for _, v := range ids {
		if v == target {
			return true
		}
	}
	return false
}

// Hub is the process-wide publish/subscribe registry. It is explicitly
// constructed at startup and closed at shutdown; subscriptions are transient.
type Hub struct {
	mu     sync.RWMutex
	subs   []Subscription
	closed bool

	log *logger.Logger
}

// NewHub creates a new distribution hub.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Default()
	}
	return &Hub{log: log.WithComponent("events.hub")}
}

// Subscribe registers a subscription. A subscription with an existing
// SubscriberID replaces the previous one in place, keeping its position
// in delivery order.
func (h *Hub) Subscribe(sub Subscription) {
	if sub.SubscriberID == "" || sub.Handler == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	for i, existing := range h.subs {
		if existing.SubscriberID == sub.SubscriberID {
			h.subs[i] = sub
			return
		}
	}
	h.subs = append(h.subs, sub)
}

// Unsubscribe removes a subscription. Idempotent.
func (h *Hub) Unsubscribe(subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, existing := range h.subs {
		if existing.SubscriberID == subscriberID {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event synchronously, in registration order, to every
// subscriber whose filter matches. No durable queue, no retry.
func (h *Hub) Publish(e StockChange) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	// Snapshot so handlers can subscribe/unsubscribe without deadlock.
	subs := make([]Subscription, len(h.subs))
	copy(subs, h.subs)
	h.mu.RUnlock()

	for _, sub := range subs {
		if !sub.matches(e) {
			continue
		}
		h.deliver(sub, e)
	}
}

func (h *Hub) deliver(sub Subscription, e StockChange) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Errorw("subscriber panicked",
				"subscriber_id", sub.SubscriberID,
				"event_type", string(e.Type),
				"panic", r,
			)
		}
	}()
	sub.Handler(e)
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close tears down the hub. Subsequent Publish/Subscribe calls are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subs = nil
	h.log.Infow("distribution hub closed")
}
