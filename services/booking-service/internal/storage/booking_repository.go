package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/santanalegal/lexcita/libs/db"
	"github.com/santanalegal/lexcita/services/booking-service/internal/availability"
	"github.com/santanalegal/lexcita/services/booking-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// BusyByDate returns the occupied intervals for a calendar date across all
// lawyers. The firm currently books against one shared pool: there is no
// lawyer column in this query or in the exclusion constraint, so at most one
// appointment can run at a time system-wide. Re-scope both per lawyer_id if
// simultaneously bookable providers are ever needed.
func (r *BookingRepository) BusyByDate(ctx context.Context, date time.Time) ([]availability.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT EXTRACT(HOUR FROM timeslot)::int * 60 + EXTRACT(MINUTE FROM timeslot)::int,
			COALESCE(duration_minutes, 0)
		FROM appointments
		WHERE appointment_date = $1
			AND status <> 'cancelled'
		ORDER BY timeslot ASC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var booked []availability.Booking
	for rows.Next() {
		var b availability.Booking
		if err := rows.Scan(&b.StartMinute, &b.DurationMinutes); err != nil {
			return nil, err
		}
		booked = append(booked, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return booked, nil
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(appointment_date, timeslot, duration_minutes, channel, status,
			 client_name, client_email, client_phone, client_rnc, lawyer_id,
			 appointment_code, amount_cents, payment_method, payment_ref, language)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12, $13, $14, $15)
		RETURNING id
	`, appt.Date, appt.Timeslot, appt.DurationMinutes, appt.Channel, appt.Status,
		appt.ClientName, appt.ClientEmail, appt.ClientPhone, appt.ClientRNC, appt.LawyerID,
		appt.Code, appt.AmountCents, appt.PaymentMethod, appt.PaymentRef, appt.Language).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) SetNCF(ctx context.Context, tx pgx.Tx, appointmentID, ncf string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET ncf = $2
		WHERE id = $1
	`, appointmentID, ncf)
	return err
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	err := tx.QueryRow(ctx, `
		SELECT id, appointment_date, to_char(timeslot, 'HH24:MI'), COALESCE(duration_minutes, 0),
			channel, status, client_name, client_email, client_phone, COALESCE(client_rnc, ''),
			COALESCE(lawyer_id::text, ''), appointment_code, amount_cents, COALESCE(ncf, ''),
			payment_method, COALESCE(payment_ref, ''), language,
			created_at, cancelled_at, COALESCE(cancellation_reason, '')
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, appointmentID).Scan(
		&appt.ID,
		&appt.Date,
		&appt.Timeslot,
		&appt.DurationMinutes,
		&appt.Channel,
		&appt.Status,
		&appt.ClientName,
		&appt.ClientEmail,
		&appt.ClientPhone,
		&appt.ClientRNC,
		&appt.LawyerID,
		&appt.Code,
		&appt.AmountCents,
		&appt.NCF,
		&appt.PaymentMethod,
		&appt.PaymentRef,
		&appt.Language,
		&appt.CreatedAt,
		&cancelledAt,
		&appt.CancelReason,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	return appt, nil
}

func (r *BookingRepository) Confirm(ctx context.Context, tx pgx.Tx, appointmentID string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = 'confirmed'
		WHERE id = $1
	`, appointmentID)
	return err
}

func (r *BookingRepository) Cancel(ctx context.Context, tx pgx.Tx, appointmentID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2
		WHERE id = $1
		RETURNING cancelled_at
	`, appointmentID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) List(ctx context.Context, from time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_date, to_char(timeslot, 'HH24:MI'), COALESCE(duration_minutes, 0),
			channel, status, client_name, client_email, client_phone, COALESCE(client_rnc, ''),
			COALESCE(lawyer_id::text, ''), appointment_code, amount_cents, COALESCE(ncf, ''),
			payment_method, COALESCE(payment_ref, ''), language,
			created_at, cancelled_at, COALESCE(cancellation_reason, '')
		FROM appointments
		WHERE appointment_date >= $1
		ORDER BY appointment_date ASC, timeslot ASC
		LIMIT $2
	`, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		var appt model.Appointment
		var cancelledAt *time.Time
		if err := rows.Scan(
			&appt.ID,
			&appt.Date,
			&appt.Timeslot,
			&appt.DurationMinutes,
			&appt.Channel,
			&appt.Status,
			&appt.ClientName,
			&appt.ClientEmail,
			&appt.ClientPhone,
			&appt.ClientRNC,
			&appt.LawyerID,
			&appt.Code,
			&appt.AmountCents,
			&appt.NCF,
			&appt.PaymentMethod,
			&appt.PaymentRef,
			&appt.Language,
			&appt.CreatedAt,
			&cancelledAt,
			&appt.CancelReason,
		); err != nil {
			return nil, err
		}
		appt.CancelledAt = cancelledAt
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

type IdempotencyRecord struct {
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, bool, error) {
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

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, key, appointmentID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $2,
			status_code = $3,
			response_payload = $4,
			updated_at = now()
		WHERE idempotency_key = $1
	`, key, appointmentID, statusCode, response)
	return err
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE idempotency_key = $1
		FOR UPDATE
	`, key).Scan(
		&rec.IdempotencyKey,
		&rec.AppointmentID,
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

// IsConflict reports whether err is the exclusion (or unique) constraint
// rejecting an overlapping insert. The constraint is the authoritative guard
// against two clients committing the same slot; the availability check is
// advisory only.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
