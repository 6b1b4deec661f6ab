package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bookledger/internal/core/id"
)

func change(warehouseID, titleID id.ID, amount int64) StockChange {
	return StockChange{
		Type:         EventStockMovement,
		TitleID:      titleID,
		WarehouseID:  warehouseID,
		ChangeAmount: amount,
		Timestamp:    time.Now().UTC(),
	}
}

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		h.Subscribe(Subscription{
			SubscriberID: name,
			Handler:      func(StockChange) { order = append(order, name) },
		})
	}

	h.Publish(change(id.New(), id.New(), 10))
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSubscribeFilters(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	warehouseA, warehouseB := id.New(), id.New()
	titleX := id.New()

	var got []StockChange
	h.Subscribe(Subscription{
		SubscriberID: "warehouse-a-only",
		WarehouseIDs: []id.ID{warehouseA},
		Handler:      func(e StockChange) { got = append(got, e) },
	})

	h.Publish(change(warehouseA, titleX, 5))
	h.Publish(change(warehouseB, titleX, 5))

	assert.Len(t, got, 1)
	assert.Equal(t, warehouseA, got[0].WarehouseID)
}

func TestSubscribeThreshold(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var got []StockChange
	h.Subscribe(Subscription{
		SubscriberID: "big-moves",
		Threshold:    100,
		Handler:      func(e StockChange) { got = append(got, e) },
	})

	h.Publish(change(id.New(), id.New(), 50))
	h.Publish(change(id.New(), id.New(), -150)) // threshold is on magnitude
	h.Publish(change(id.New(), id.New(), 100))

	assert.Len(t, got, 2)
}

func TestPanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	delivered := false
	h.Subscribe(Subscription{
		SubscriberID: "broken",
		Handler:      func(StockChange) { panic("subscriber bug") },
	})
	h.Subscribe(Subscription{
		SubscriberID: "healthy",
		Handler:      func(StockChange) { delivered = true },
	})

	assert.NotPanics(t, func() {
		h.Publish(change(id.New(), id.New(), 10))
	})
	assert.True(t, delivered)
}

func TestSubscribeReplacesSameID(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	var hits int
	h.Subscribe(Subscription{SubscriberID: "dup", Handler: func(StockChange) { hits++ }})
	h.Subscribe(Subscription{SubscriberID: "dup", Handler: func(StockChange) { hits += 10 }})

	h.Publish(change(id.New(), id.New(), 1))
	assert.Equal(t, 10, hits, "replacement handler receives, original does not")
	assert.Equal(t, 1, h.SubscriberCount())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()

	h.Subscribe(Subscription{SubscriberID: "gone", Handler: func(StockChange) {}})
	h.Unsubscribe("gone")
	h.Unsubscribe("gone")
	assert.Equal(t, 0, h.SubscriberCount())
}

func TestClosedHubDropsEverything(t *testing.T) {
	h := NewHub(nil)

	var hits int
	h.Subscribe(Subscription{SubscriberID: "s", Handler: func(StockChange) { hits++ }})
	h.Close()

	h.Publish(change(id.New(), id.New(), 1))
	h.Subscribe(Subscription{SubscriberID: "late", Handler: func(StockChange) { hits++ }})
	h.Publish(change(id.New(), id.New(), 1))

	assert.Equal(t, 0, hits)
	assert.Equal(t, 0, h.SubscriberCount())
}
