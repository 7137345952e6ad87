package outbox

import (
	"encoding/json"
	"time"

	"github.com/tredicik/consult-service/internal/storage"
)

// Kafka topic names equal the event type, one topic per event.
const (
	EventHoldPlaced    = "booking.hold.placed.v1"
	EventHoldCancelled = "booking.hold.cancelled.v1"
	EventHoldExpired   = "booking.hold.expired.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	EventType string
	HoldID    string
	Payload   []byte
}

type holdPayload struct {
	HoldID        string    `json:"hold_id"`
	OfferingID    int64     `json:"offering_id"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	CustomerName  string    `json:"customer_name,omitempty"`
	CustomerEmail string    `json:"customer_email,omitempty"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// HoldEvent builds the event for a hold state change.
func HoldEvent(eventType string, h storage.Hold) (Event, error) {
	payload, err := json.Marshal(holdPayload{
		HoldID:        h.ID,
		OfferingID:    h.OfferingID,
		Date:          h.Date.String(),
		StartTime:     h.Start.String(),
		EndTime:       h.End.String(),
		CustomerName:  h.CustomerName,
		CustomerEmail: h.CustomerEmail,
		ExpiresAt:     h.ExpiresAt,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{EventType: eventType, HoldID: h.ID, Payload: payload}, nil
}
