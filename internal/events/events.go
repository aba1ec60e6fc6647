// Package events publishes committed stock changes to live UIs, either
// straight into the local websocket hub or through Redis so every replica's
// hub receives them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"labinventory/internal/metrics"

	"github.com/sirupsen/logrus"
)

const EventInventoryUpdated = "inventory.updated"

// StockEvent is the websocket payload sent after a stock mutation commits
type StockEvent struct {
	Event string    `json:"event"`
	Data  StockData `json:"data"`
}

type StockData struct {
	ProductID     string    `json:"productId"`
	StockQuantity int       `json:"stockQuantity"`
	QtyChange     int       `json:"qtyChange"`
	SourceType    string    `json:"sourceType"`
	SourceID      string    `json:"sourceId,omitempty"`
	LedgerEntryID uint      `json:"ledgerEntryId"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher delivers stock events. Publishing happens after commit and its
// failure never undoes the mutation.
type Publisher interface {
	Publish(ctx context.Context, event StockEvent) error
}

// Broadcaster is the part of the websocket hub the publishers need
type Broadcaster interface {
	Publish(message []byte) bool
}

// HubPublisher writes events into the in-process websocket hub
type HubPublisher struct {
	hub     Broadcaster
	metrics *metrics.Metrics
}

func NewHubPublisher(hub Broadcaster, m *metrics.Metrics) *HubPublisher {
	return &HubPublisher{hub: hub, metrics: m}
}

func (p *HubPublisher) Publish(ctx context.Context, event StockEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if !p.hub.Publish(payload) {
		p.metrics.RecordEventPublished("hub", "dropped")
		return fmt.Errorf("websocket hub did not accept %s event", event.Event)
	}
	p.metrics.RecordEventPublished("hub", "ok")
	return nil
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, StockEvent) error { return nil }

// LoggingPublisher logs publish failures instead of returning them
type LoggingPublisher struct {
	next Publisher
	log  logrus.FieldLogger
}

func NewLoggingPublisher(next Publisher, log logrus.FieldLogger) *LoggingPublisher {
	return &LoggingPublisher{next: next, log: log}
}

func (p *LoggingPublisher) Publish(ctx context.Context, event StockEvent) error {
	if err := p.next.Publish(ctx, event); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"event":      event.Event,
			"product_id": event.Data.ProductID,
		}).Warn("failed to publish stock event")
	}
	return nil
}
