package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an outbound notification.
type EventType string

const (
	EventWalletCreated      EventType = "wallet.created"
	EventWalletStatus       EventType = "wallet.status_changed"
	EventAccessGranted      EventType = "access.granted"
	EventAccessRevoked      EventType = "access.revoked"
	EventAccessSuspended    EventType = "access.suspended"
	EventQRCreated          EventType = "qr.created"
	EventQRRedeemed         EventType = "qr.redeemed"
	EventQRCancelled        EventType = "qr.cancelled"
	EventEFTInitiated       EventType = "eft.initiated"
	EventEFTCompleted       EventType = "eft.completed"
	EventEFTFailed          EventType = "eft.failed"
	EventEFTCancelled       EventType = "eft.cancelled"
	EventEFTRefunded        EventType = "eft.refunded"
	EventTransactionCreated EventType = "transaction.created"
)

// Event is a fire-and-forget notification request. It carries identifiers
// only; consumers look the entity up themselves.
type Event struct {
	Type       EventType `json:"type"`
	EntityID   uuid.UUID `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event at now.
func NewEvent(t EventType, id uuid.UUID, now time.Time) Event {
	return Event{Type: t, EntityID: id, OccurredAt: now.UTC()}
}

// EFTEventFor returns the event emitted when a payment reaches status.
func EFTEventFor(status EFTStatus) EventType {
	switch status {
	case EFTStatusCompleted:
		return EventEFTCompleted
	case EFTStatusCancelled:
		return EventEFTCancelled
	case EFTStatusRefunded:
		return EventEFTRefunded
	default:
		return EventEFTFailed
	}
}
