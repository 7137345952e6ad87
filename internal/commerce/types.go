package commerce

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Product is one catalog entry as the platform reports it. The platform's
// metadata shape is loose (metadata vs custom_metadata, features vs
// includes); decodeProducts normalizes it here so nothing downstream has to
// deal with fallback field names.
type Product struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	OfferingType string          `json:"offering_type"`
	BasePrice    float64         `json:"base_price"`
	Price        float64         `json:"price"`
	SalePrice    *float64        `json:"sale_price"`
	ImageURL     string          `json:"image_url"`
	Metadata     ProductMetadata `json:"-"`
}

type ProductMetadata struct {
	PackageType         string   `json:"package_type"`
	DurationMinutes     int      `json:"duration_minutes"`
	BufferMinutes       int      `json:"buffer_minutes"`
	AdvanceBookingDays  int      `json:"advance_booking_days"`
	MaxBookingDays      int      `json:"max_booking_days"`
	Includes            []string `json:"includes"`
	Features            []string `json:"features"`
	Popular             bool     `json:"popular"`
}

// UnitPrice returns the effective price, preferring base_price when set.
func (p Product) UnitPrice() float64 {
	if p.BasePrice > 0 {
		return p.BasePrice
	}
	return p.Price
}

// FeatureList returns whichever of the two metadata list fields is set.
func (m ProductMetadata) FeatureList() []string {
	if len(m.Features) > 0 {
		return m.Features
	}
	return m.Includes
}

// Order is one order record from the platform's history API.
type Order struct {
	OrderNumber string      `json:"order_number"`
	Status      string      `json:"status"`
	Items       []OrderItem `json:"items"`
}

// OrderItem is one order line. Consultation bookings carry their metadata in
// ExtraData.
type OrderItem struct {
	OfferingID int64            `json:"offering_id"`
	Name       string           `json:"offering_name"`
	Quantity   int              `json:"quantity"`
	ExtraData  *BookingMetadata `json:"extra_data"`
}

// BookingMetadata is the consultation booking payload stored on a cart/order
// line item. BookingDate may arrive as a bare date or a full RFC 3339
// timestamp; only the date part is meaningful.
type BookingMetadata struct {
	BookingDate     string     `json:"booking_date"`
	BookingTime     string     `json:"booking_time"`
	BookingDuration int        `json:"booking_duration"`
	BookingType     string     `json:"booking_type"`
	PackageType     string     `json:"package_type"`
	GuestInfo       *GuestInfo `json:"guest_info,omitempty"`
}

// GuestInfo is the contact block captured for unauthenticated customers.
type GuestInfo struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Notes       string `json:"notes,omitempty"`
	MeetingType string `json:"meetingType,omitempty"`
}

// decodeProducts handles the platform's varying list envelopes: a bare
// array, or an object wrapping it under products/items/data/results.
func decodeProducts(body []byte) ([]Product, error) {
	raw, err := decodeListEnvelope(body, "products")
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(raw))
	for _, item := range raw {
		var p Product
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, fmt.Errorf("invalid product record: %w", err)
		}
		// metadata and custom_metadata are alternates; whichever is
		// present wins.
		var meta struct {
			Metadata       *ProductMetadata `json:"metadata"`
			CustomMetadata *ProductMetadata `json:"custom_metadata"`
		}
		if err := json.Unmarshal(item, &meta); err == nil {
			switch {
			case meta.Metadata != nil:
				p.Metadata = *meta.Metadata
			case meta.CustomMetadata != nil:
				p.Metadata = *meta.CustomMetadata
			}
		}
		products = append(products, p)
	}
	return products, nil
}

func decodeOrders(body []byte) ([]Order, error) {
	raw, err := decodeListEnvelope(body, "orders")
	if err != nil {
		return nil, err
	}
	orders := make([]Order, 0, len(raw))
	for _, item := range raw {
		var o Order
		if err := json.Unmarshal(item, &o); err != nil {
			return nil, fmt.Errorf("invalid order record: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

var envelopeKeys = []string{"items", "data", "results"}

func decodeListEnvelope(body []byte, primaryKey string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("invalid list response: %w", err)
		}
		return list, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("invalid response envelope: %w", err)
	}
	for _, key := range append([]string{primaryKey}, envelopeKeys...) {
		raw, ok := wrapper[key]
		if !ok {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			continue
		}
		return list, nil
	}
	return nil, fmt.Errorf("no %s list found in response", primaryKey)
}
