package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tredicik/consult-service/internal/availability"
	"github.com/tredicik/consult-service/internal/commerce"
	"github.com/tredicik/consult-service/internal/offerings"
	"github.com/tredicik/consult-service/internal/outbox"
	"github.com/tredicik/consult-service/internal/storage"
)

// HoldStore is the slice of the hold repository the handlers need.
type HoldStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, tx pgx.Tx, h *storage.Hold) (string, error)
	LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (storage.IdempotencyRecord, bool, error)
	FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, holdID string, statusCode int, response []byte) error
	ListActive(ctx context.Context, date availability.Date) ([]availability.BookedInterval, error)
	ListHolds(ctx context.Context, date availability.Date) ([]storage.Hold, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, holdID string) (storage.Hold, error)
	Cancel(ctx context.Context, tx pgx.Tx, holdID string) error
}

// EventSink records domain events transactionally with the hold change.
type EventSink interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// OfferingSource resolves bookable consultation packages.
type OfferingSource interface {
	List(ctx context.Context) []offerings.Offering
	ByID(ctx context.Context, id int64) (offerings.Offering, bool)
}

// Platform is the slice of the commerce client the handlers call.
type Platform interface {
	Orders(ctx context.Context, page, perPage int) ([]commerce.Order, error)
	AddCartItem(ctx context.Context, item commerce.CartItem) error
	SubmitQualifyingAnswers(ctx context.Context, orderNumber string, answers commerce.QualifyingAnswers) error
}

const (
	defaultHoldTTL   = 30 * time.Minute
	ordersPageSize   = 200
	platformCallWait = 5 * time.Second
)

type BookingHandler struct {
	holds     HoldStore
	events    EventSink
	offerings OfferingSource
	platform  Platform
	logger    *slog.Logger
	hours     availability.WeeklyHours
	holdTTL   time.Duration
	now       func() time.Time
}

func NewBookingHandler(holds HoldStore, events EventSink, offeringSource OfferingSource, platform Platform, logger *slog.Logger, hours availability.WeeklyHours, holdTTL time.Duration) *BookingHandler {
	if holdTTL <= 0 {
		holdTTL = defaultHoldTTL
	}
	return &BookingHandler{
		holds:     holds,
		events:    events,
		offerings: offeringSource,
		platform:  platform,
		logger:    logger,
		hours:     hours,
		holdTTL:   holdTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/public/offerings", h.Offerings)
	mux.HandleFunc("/api/v1/public/slots", h.Slots)
	mux.HandleFunc("/api/v1/public/book", h.Book)
	mux.HandleFunc("/api/v1/public/cancel-hold", h.CancelHold)
	mux.HandleFunc("/api/v1/public/qualifying-questions", h.QualifyingQuestions)
	mux.HandleFunc("/api/v1/holds", h.ListHolds)
}

type offeringItem struct {
	offerings.Offering
	MinBookingDate availability.Date `json:"min_booking_date"`
	MaxBookingDate availability.Date `json:"max_booking_date"`
}

func (h *BookingHandler) Offerings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list := h.offerings.List(r.Context())
	now := h.now()
	items := make([]offeringItem, 0, len(list))
	for _, o := range list {
		minDate, maxDate := offerings.BookingWindow(o, now)
		items = append(items, offeringItem{Offering: o, MinBookingDate: minDate, MaxBookingDate: maxDate})
	}
	writeJSON(w, http.StatusOK, items)
}

type slotsResponse struct {
	OfferingID int64               `json:"offering_id"`
	Date       availability.Date   `json:"date"`
	Slots      []availability.Slot `json:"slots"`
}

// Slots serves the availability grid for one offering and date. Booked
// intervals come from the platform's order history plus local active holds;
// if either source is unreachable the optimistic grid is served so the
// storefront keeps working, and the database exclusion constraint remains
// the hard guard at booking time.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	offeringID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("offering_id")), 10, 64)
	if err != nil || offeringID <= 0 {
		http.Error(w, "offering_id required", http.StatusBadRequest)
		return
	}
	date, err := availability.ParseDate(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		http.Error(w, "date must look like 2026-01-26", http.StatusBadRequest)
		return
	}

	offering, ok := h.offerings.ByID(r.Context(), offeringID)
	if !ok {
		http.Error(w, "offering not found", http.StatusNotFound)
		return
	}

	now := h.now()
	resp := slotsResponse{OfferingID: offeringID, Date: date, Slots: []availability.Slot{}}

	minDate, maxDate := offerings.BookingWindow(offering, now)
	if date.String() < minDate.String() || date.String() > maxDate.String() {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	booked, err := h.bookedIntervals(r.Context(), date)
	if err != nil {
		h.logger.Warn("booked interval fetch failed; serving optimistic slots", "err", err)
		booked = nil
	}

	slots := availability.GenerateSlots(date, offering.DurationMinutes, h.hours, booked, offering.BufferMinutes, now)
	if slots != nil {
		resp.Slots = slots
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) bookedIntervals(ctx context.Context, date availability.Date) ([]availability.BookedInterval, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, platformCallWait)
	defer cancel()

	orders, err := h.platform.Orders(fetchCtx, 1, ordersPageSize)
	if err != nil {
		return nil, err
	}
	booked := commerce.BookedIntervalsFromOrders(orders, date)

	holds, err := h.holds.ListActive(ctx, date)
	if err != nil {
		return nil, err
	}
	return append(booked, holds...), nil
}

type bookRequest struct {
	OfferingID    int64  `json:"offering_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Notes         string `json:"notes"`
	MeetingType   string `json:"meeting_type"`
}

type bookResponse struct {
	HoldID     string            `json:"hold_id"`
	OfferingID int64             `json:"offering_id"`
	Date       availability.Date `json:"date"`
	Time       string            `json:"time"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// Book places a reservation hold for a slot and pushes the matching line
// item into the platform cart. The hold keeps the slot off the availability
// grid until the customer completes checkout or the hold expires.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	if req.OfferingID <= 0 || req.CustomerName == "" || req.CustomerEmail == "" {
		http.Error(w, "offering_id, customer_name, and customer_email are required", http.StatusBadRequest)
		return
	}
	date, err := availability.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	start, err := availability.ParseClock(strings.TrimSpace(req.Time))
	if err != nil {
		http.Error(w, "invalid time", http.StatusBadRequest)
		return
	}

	offering, ok := h.offerings.ByID(r.Context(), req.OfferingID)
	if !ok {
		http.Error(w, "offering not found", http.StatusUnprocessableEntity)
		return
	}

	now := h.now()
	if msg := h.validateSlot(offering, date, start, now); msg != "" {
		http.Error(w, msg, http.StatusUnprocessableEntity)
		return
	}
	end, err := start.Add(offering.DurationMinutes)
	if err != nil {
		http.Error(w, "requested time runs past midnight", http.StatusUnprocessableEntity)
		return
	}

	ctx := r.Context()
	tx, err := h.holds.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.holds.LockIdempotencyKey(ctx, tx, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	// Confirmed platform orders are re-checked here; concurrent local holds
	// are left to the exclusion constraint below.
	ordersCtx, cancel := context.WithTimeout(ctx, platformCallWait)
	orders, err := h.platform.Orders(ordersCtx, 1, ordersPageSize)
	cancel()
	if err != nil {
		// Not finalized: the client may retry with the same idempotency key.
		http.Error(w, "order history unavailable", http.StatusServiceUnavailable)
		return
	}
	booked := commerce.BookedIntervalsFromOrders(orders, date)
	if !availability.IsAvailable(date, start, offering.DurationMinutes, booked) {
		if idempotencyKey != "" && h.finalizeIdempotencyError(ctx, tx, idempotencyKey, http.StatusConflict, "time slot already booked") {
			_ = tx.Commit(ctx)
		}
		http.Error(w, "time slot already booked", http.StatusConflict)
		return
	}

	hold := &storage.Hold{
		OfferingID:    offering.ID,
		Date:          date,
		Start:         start,
		End:           end,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		ExpiresAt:     now.Add(h.holdTTL),
	}
	id, err := h.holds.Create(ctx, tx, hold)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to place hold", http.StatusInternalServerError)
		return
	}
	hold.ID = id

	evt, err := outbox.HoldEvent(outbox.EventHoldPlaced, *hold)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.events.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	// The cart push happens before commit: if the platform rejects it the
	// hold rolls back and the slot is released immediately.
	cartCtx, cancel := context.WithTimeout(ctx, platformCallWait)
	err = h.platform.AddCartItem(cartCtx, commerce.CartItem{
		OfferingID:   offering.ID,
		OfferingName: offering.Name,
		Quantity:     1,
		UnitPrice:    offering.Price,
		ImageURL:     offering.ImageURL,
		ExtraData: commerce.BookingMetadata{
			BookingDate:     date.String(),
			BookingTime:     start.String(),
			BookingDuration: offering.DurationMinutes,
			BookingType:     commerce.BookingTypeConsultation,
			PackageType:     offering.PackageType,
			GuestInfo: &commerce.GuestInfo{
				FirstName:   firstName(req.CustomerName),
				LastName:    lastName(req.CustomerName),
				Email:       req.CustomerEmail,
				Phone:       strings.TrimSpace(req.CustomerPhone),
				Notes:       strings.TrimSpace(req.Notes),
				MeetingType: strings.TrimSpace(req.MeetingType),
			},
		},
	})
	cancel()
	if err != nil {
		h.logger.Error("platform cart push failed", "err", err, "offering_id", offering.ID)
		http.Error(w, "platform cart unavailable", http.StatusBadGateway)
		return
	}

	respBody, err := json.Marshal(bookResponse{
		HoldID:     id,
		OfferingID: offering.ID,
		Date:       date,
		Time:       start.String(),
		ExpiresAt:  hold.ExpiresAt,
	})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.holds.FinalizeIdempotency(ctx, tx, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

// validateSlot checks the requested slot against the booking window,
// business hours, slot grid, and the buffer fit. Returns an error message or
// empty when valid.
func (h *BookingHandler) validateSlot(o offerings.Offering, date availability.Date, start availability.ClockTime, now time.Time) string {
	minDate, maxDate := offerings.BookingWindow(o, now)
	if date.String() < minDate.String() {
		return "date is before the minimum booking notice"
	}
	if date.String() > maxDate.String() {
		return "date is beyond the booking horizon"
	}

	// When advance notice is zero, same-day bookings are allowed; the slot
	// must still be ahead of the current wall-clock time.
	if date == availability.DateOf(now) {
		nowClock := availability.ClockTime{Hour: now.Hour(), Minute: now.Minute()}
		if start.Compare(nowClock) <= 0 {
			return "time has already passed"
		}
	}

	dayHours, open := h.hours.ForDate(date)
	if !open {
		return "closed on the requested date"
	}
	if start.Minutes()%availability.StepMinutes != 0 {
		return "time is not on the slot grid"
	}
	if start.Before(dayHours.Open) {
		return "time is before opening"
	}
	spanEnd, err := start.Add(o.DurationMinutes + o.BufferMinutes)
	if err != nil || dayHours.Close.Compare(spanEnd) < 0 {
		return "session does not fit before closing"
	}
	return ""
}

type cancelHoldRequest struct {
	HoldID string `json:"hold_id"`
}

type cancelHoldResponse struct {
	HoldID string `json:"hold_id"`
	Status string `json:"status"`
}

func (h *BookingHandler) CancelHold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelHoldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.HoldID = strings.TrimSpace(req.HoldID)
	if req.HoldID == "" {
		http.Error(w, "hold_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.holds.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	hold, err := h.holds.GetForUpdate(ctx, tx, req.HoldID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "hold not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load hold", http.StatusInternalServerError)
		return
	}

	if hold.Status == storage.HoldStatusCancelled {
		writeJSON(w, http.StatusOK, cancelHoldResponse{HoldID: hold.ID, Status: hold.Status})
		return
	}
	if hold.Status != storage.HoldStatusActive {
		http.Error(w, "hold cannot be cancelled", http.StatusConflict)
		return
	}

	if err := h.holds.Cancel(ctx, tx, hold.ID); err != nil {
		http.Error(w, "failed to cancel hold", http.StatusInternalServerError)
		return
	}
	hold.Status = storage.HoldStatusCancelled

	evt, err := outbox.HoldEvent(outbox.EventHoldCancelled, hold)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.events.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cancelHoldResponse{HoldID: hold.ID, Status: hold.Status})
}

type holdItem struct {
	HoldID        string            `json:"hold_id"`
	OfferingID    int64             `json:"offering_id"`
	Date          availability.Date `json:"date"`
	StartTime     string            `json:"start_time"`
	EndTime       string            `json:"end_time"`
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
	Status        string            `json:"status"`
	ExpiresAt     time.Time         `json:"expires_at"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ListHolds is the operator view of holds for one date, all statuses.
func (h *BookingHandler) ListHolds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date, err := availability.ParseDate(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		http.Error(w, "date must look like 2026-01-26", http.StatusBadRequest)
		return
	}

	holds, err := h.holds.ListHolds(r.Context(), date)
	if err != nil {
		http.Error(w, "failed to list holds", http.StatusInternalServerError)
		return
	}

	items := make([]holdItem, 0, len(holds))
	for _, hold := range holds {
		items = append(items, holdItem{
			HoldID:        hold.ID,
			OfferingID:    hold.OfferingID,
			Date:          hold.Date,
			StartTime:     hold.Start.String(),
			EndTime:       hold.End.String(),
			CustomerName:  hold.CustomerName,
			CustomerEmail: hold.CustomerEmail,
			Status:        hold.Status,
			ExpiresAt:     hold.ExpiresAt,
			CreatedAt:     hold.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

type qualifyingRequest struct {
	OrderNumber    string `json:"order_number"`
	Goals          string `json:"goals"`
	Targets        string `json:"targets"`
	BusinessNature string `json:"business_nature"`
	Struggles      string `json:"struggles"`
}

// QualifyingQuestions relays post-checkout intake answers to the platform,
// which stores them against the order.
func (h *BookingHandler) QualifyingQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req qualifyingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.OrderNumber = strings.TrimSpace(req.OrderNumber)
	req.Goals = strings.TrimSpace(req.Goals)
	req.Targets = strings.TrimSpace(req.Targets)
	req.BusinessNature = strings.TrimSpace(req.BusinessNature)
	req.Struggles = strings.TrimSpace(req.Struggles)
	if req.OrderNumber == "" || req.Goals == "" || req.Targets == "" || req.BusinessNature == "" || req.Struggles == "" {
		http.Error(w, "order_number and all four answers are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), platformCallWait)
	defer cancel()
	err := h.platform.SubmitQualifyingAnswers(ctx, req.OrderNumber, commerce.QualifyingAnswers{
		Goals:          req.Goals,
		Targets:        req.Targets,
		BusinessNature: req.BusinessNature,
		Struggles:      req.Struggles,
		SubmittedAt:    h.now().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Error("qualifying answers submit failed", "err", err, "order_number", req.OrderNumber)
		http.Error(w, "platform unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "submitted"})
}

func (h *BookingHandler) finalizeIdempotencyError(ctx context.Context, tx pgx.Tx, key string, statusCode int, msg string) bool {
	body, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return false
	}
	if err := h.holds.FinalizeIdempotency(ctx, tx, key, "", statusCode, body); err != nil {
		h.logger.Error("failed to finalize idempotency (error)", "err", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func firstName(full string) string {
	first, _, _ := strings.Cut(full, " ")
	return first
}

func lastName(full string) string {
	_, rest, found := strings.Cut(full, " ")
	if !found {
		return ""
	}
	return strings.TrimSpace(rest)
}
