package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tredicik/consult-service/internal/availability"
	"github.com/tredicik/consult-service/internal/db"
)

const (
	HoldStatusActive    = "active"
	HoldStatusCancelled = "cancelled"
	HoldStatusExpired   = "expired"
)

// Hold is a locally reserved slot awaiting checkout on the commerce platform.
// Start and end are minutes from midnight on Date; the table enforces
// non-overlap per day with an exclusion constraint.
type Hold struct {
	ID            string
	OfferingID    int64
	Date          availability.Date
	Start         availability.ClockTime
	End           availability.ClockTime
	CustomerName  string
	CustomerEmail string
	Status        string
	ExpiresAt     time.Time
	CreatedAt     time.Time
}

type IdempotencyRecord struct {
	IdempotencyKey  string
	HoldID          string
	StatusCode      int
	ResponsePayload []byte
}

type HoldRepository struct {
	pool *db.Pool
}

func NewHoldRepository(pool *db.Pool) *HoldRepository {
	return &HoldRepository{pool: pool}
}

func (r *HoldRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create inserts the hold inside tx. The exclusion constraint rejects
// overlapping active holds; callers detect that with IsConflict.
func (r *HoldRepository) Create(ctx context.Context, tx pgx.Tx, h *Hold) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO consultation_holds
			(offering_id, slot_date, start_minute, end_minute, customer_name, customer_email, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, h.OfferingID, h.Date.String(), h.Start.Minutes(), h.End.Minutes(),
		h.CustomerName, h.CustomerEmail, HoldStatusActive, h.ExpiresAt).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *HoldRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (idempotency_key)
		VALUES ($1)
		ON CONFLICT (idempotency_key) DO NOTHING
	`, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *HoldRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, holdID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET hold_id = $2,
			status_code = $3,
			response_payload = $4,
			updated_at = now()
		WHERE idempotency_key = $1
	`, key, holdID, statusCode, response)
	return err
}

// ListActive returns the still-ticking holds for a date as booked intervals,
// so slot generation treats them the same as confirmed platform orders.
func (r *HoldRepository) ListActive(ctx context.Context, date availability.Date) ([]availability.BookedInterval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT offering_id, start_minute, end_minute
		FROM consultation_holds
		WHERE slot_date = $1
			AND status = 'active'
			AND expires_at > now()
		ORDER BY start_minute ASC
	`, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []availability.BookedInterval
	for rows.Next() {
		var offeringID int64
		var startMin, endMin int
		if err := rows.Scan(&offeringID, &startMin, &endMin); err != nil {
			return nil, err
		}
		intervals = append(intervals, availability.BookedInterval{
			Date:       date,
			Start:      clockFromMinutes(startMin),
			End:        clockFromMinutes(endMin),
			OfferingID: offeringID,
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return intervals, nil
}

// ListHolds returns full hold rows for a date, newest first.
func (r *HoldRepository) ListHolds(ctx context.Context, date availability.Date) ([]Hold, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, offering_id, slot_date::text, start_minute, end_minute,
			customer_name, customer_email, status, expires_at, created_at
		FROM consultation_holds
		WHERE slot_date = $1
		ORDER BY created_at DESC
	`, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return holds, nil
}

func (r *HoldRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, holdID string) (Hold, error) {
	row := tx.QueryRow(ctx, `
		SELECT id::text, offering_id, slot_date::text, start_minute, end_minute,
			customer_name, customer_email, status, expires_at, created_at
		FROM consultation_holds
		WHERE id = $1
		FOR UPDATE
	`, holdID)
	return scanHold(row)
}

func (r *HoldRepository) Cancel(ctx context.Context, tx pgx.Tx, holdID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE consultation_holds
		SET status = 'cancelled'
		WHERE id = $1 AND status = 'active'
	`, holdID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ExpireOverdue flips active holds past their deadline to expired and returns
// them so the caller can emit expiry events.
func (r *HoldRepository) ExpireOverdue(ctx context.Context, tx pgx.Tx) ([]Hold, error) {
	rows, err := tx.Query(ctx, `
		UPDATE consultation_holds
		SET status = 'expired'
		WHERE status = 'active' AND expires_at <= now()
		RETURNING id::text, offering_id, slot_date::text, start_minute, end_minute,
			customer_name, customer_email, status, expires_at, created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return holds, nil
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *HoldRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT idempotency_key,
			COALESCE(hold_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(
		&rec.IdempotencyKey,
		&rec.HoldID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}

func scanHold(row pgx.Row) (Hold, error) {
	var h Hold
	var dateText string
	var startMin, endMin int
	err := row.Scan(
		&h.ID,
		&h.OfferingID,
		&dateText,
		&startMin,
		&endMin,
		&h.CustomerName,
		&h.CustomerEmail,
		&h.Status,
		&h.ExpiresAt,
		&h.CreatedAt,
	)
	if err != nil {
		return Hold{}, err
	}
	h.Date, err = availability.ParseDate(dateText)
	if err != nil {
		return Hold{}, err
	}
	h.Start = clockFromMinutes(startMin)
	h.End = clockFromMinutes(endMin)
	return h, nil
}

func clockFromMinutes(m int) availability.ClockTime {
	return availability.ClockTime{Hour: m / 60, Minute: m % 60}
}
