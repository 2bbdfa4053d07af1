package contracts

import (
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/cart-store-go/internal/cart"
)

const (
	CartUpdatedEventName    = "CartUpdated"
	CartUpdatedEventVersion = 1
	CartUpdatedSchemaPath   = "contracts/events/cart/CartUpdated.v1.enveloped.schema.json"
	CartStoreProducer       = "cart-store"
)

type EventEnvelope struct {
	EventName     string             `json:"eventName"`
	EventVersion  int                `json:"eventVersion"`
	EventID       string             `json:"eventId"`
	CorrelationID string             `json:"correlationId,omitempty"`
	CausationID   string             `json:"causationId,omitempty"`
	Producer      string             `json:"producer"`
	PartitionKey  string             `json:"partitionKey"`
	Sequence      int64              `json:"sequence"`
	OccurredAt    time.Time          `json:"occurredAt"`
	Schema        string             `json:"schema"`
	Payload       CartUpdatedPayload `json:"payload"`
}

// CartUpdatedPayload lists items with the same field names as the
// persisted cart blob.
type CartUpdatedPayload struct {
	Items    []cart.Item `json:"items"`
	Subtotal string      `json:"subtotal"`
}

type EnvelopeOptions struct {
	PartitionKey  string
	Producer      string
	SchemaPath    string
	CorrelationID string
	CausationID   string
	EventID       string
	OccurredAt    time.Time
}

func BuildCartUpdatedEvent(snap cart.Snapshot, opts EnvelopeOptions) EventEnvelope {
	eventID := opts.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}

	occurredAt := opts.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	schemaPath := opts.SchemaPath
	if schemaPath == "" {
		schemaPath = CartUpdatedSchemaPath
	}

	producer := opts.Producer
	if producer == "" {
		producer = CartStoreProducer
	}

	partitionKey := opts.PartitionKey
	if partitionKey == "" {
		partitionKey = cart.StorageKey
	}

	items := make([]cart.Item, len(snap.Items))
	copy(items, snap.Items)

	return EventEnvelope{
		EventName:     CartUpdatedEventName,
		EventVersion:  CartUpdatedEventVersion,
		EventID:       eventID,
		CorrelationID: opts.CorrelationID,
		CausationID:   opts.CausationID,
		Producer:      producer,
		PartitionKey:  partitionKey,
		Sequence:      int64(snap.Revision),
		OccurredAt:    occurredAt,
		Schema:        schemaPath,
		Payload: CartUpdatedPayload{
			Items:    items,
			Subtotal: cart.Subtotal(items).StringFixed(2),
		},
	}
}
