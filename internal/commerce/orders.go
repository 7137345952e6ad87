package commerce

import (
	"strings"

	"github.com/tredicik/consult-service/internal/availability"
)

// BookingTypeConsultation marks a line item as a consultation booking.
const BookingTypeConsultation = "consultation"

// BookedIntervalsFromOrders scans order line items for consultation bookings
// on the given date and translates them into the availability engine's
// interval shape. Line items without booking metadata, with unparseable
// times, or on other dates are skipped; a partially bad order history still
// yields whatever intervals could be read.
func BookedIntervalsFromOrders(orders []Order, date availability.Date) []availability.BookedInterval {
	var intervals []availability.BookedInterval
	for _, order := range orders {
		for _, item := range order.Items {
			meta := item.ExtraData
			if meta == nil || meta.BookingType != BookingTypeConsultation {
				continue
			}
			bookedDate, err := availability.ParseDate(datePart(meta.BookingDate))
			if err != nil || bookedDate != date {
				continue
			}
			start, err := availability.ParseClock(meta.BookingTime)
			if err != nil || meta.BookingDuration <= 0 {
				continue
			}
			end, err := start.Add(meta.BookingDuration)
			if err != nil {
				continue
			}
			intervals = append(intervals, availability.BookedInterval{
				Date:       bookedDate,
				Start:      start,
				End:        end,
				OfferingID: item.OfferingID,
			})
		}
	}
	return intervals
}

// datePart strips the time portion of an RFC 3339 timestamp, leaving bare
// dates untouched.
func datePart(s string) string {
	if i := strings.IndexByte(s, 'T'); i > 0 {
		return s[:i]
	}
	return s
}
