package model

import (
	"encoding/json"
	"time"
)

// Change event types emitted after effective store mutations.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Publish groups (one channel per record kind).
const (
	GroupItems       = "inventory_items"
	GroupSalesOrders = "inventory_sales_orders"
)

// ChangeEvent is the unit published to the change sink. Delivery is
// fire-and-forget, at most once.
type ChangeEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ItemEventPayload is the slim item projection carried by change events.
type ItemEventPayload struct {
	ItemID      int64   `json:"itemId"`
	Name        string  `json:"name"`
	SKU         string  `json:"sku"`
	Status      string  `json:"status"`
	StockOnHand float64 `json:"stockOnHand"`
}

// SalesOrderEventPayload is the slim sales order projection carried by
// change events.
type SalesOrderEventPayload struct {
	SalesOrderID     string          `json:"salesorderId"`
	SalesOrderNumber string          `json:"salesorderNumber"`
	Date             *time.Time      `json:"date"`
	Status           string          `json:"status"`
	LineItems        json.RawMessage `json:"lineItems"`
}

// ItemEvent builds a change event for an item.
func ItemEvent(eventType string, it *Item) ChangeEvent {
	return ChangeEvent{
		Type: eventType,
		Payload: ItemEventPayload{
			ItemID:      it.ItemID,
			Name:        it.Name,
			SKU:         it.SKU,
			Status:      it.Status,
			StockOnHand: it.StockOnHand,
		},
	}
}

// SalesOrderEvent builds a change event for a sales order.
func SalesOrderEvent(eventType string, so *SalesOrder) ChangeEvent {
	return ChangeEvent{
		Type: eventType,
		Payload: SalesOrderEventPayload{
			SalesOrderID:     so.SalesOrderID,
			SalesOrderNumber: so.SalesOrderNumber,
			Date:             so.Date,
			Status:           so.Status,
			LineItems:        so.LineItems,
		},
	}
}
