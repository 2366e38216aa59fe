package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/santanalegal/lexcita/libs/db"
	"github.com/santanalegal/lexcita/services/fiscal-service/internal/sequence"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// AllocateNext reserves the next counter value for prefix in one atomic
// statement. The guards live in the WHERE clause, so two concurrent callers
// can never observe the same value: the row lock taken by UPDATE serializes
// them and the loser re-evaluates the predicate on the new row version. On
// zero rows a diagnostic read classifies the failure; that read is only for
// the error message and never feeds back into allocation.
func (r *Repository) AllocateNext(ctx context.Context, prefix string) (int64, error) {
	var value int64
	err := r.pool.QueryRow(ctx, `
		UPDATE ncf_sequences
		SET current_value = current_value + 1,
			updated_at = now()
		WHERE prefix = $1
			AND current_value < end_value
			AND expires_at >= CURRENT_DATE
		RETURNING current_value
	`, prefix).Scan(&value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	seq, err := r.GetSequence(ctx, prefix)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, sequence.ErrNoActiveSequence
		}
		return 0, err
	}
	switch seq.StatusAt(time.Now()) {
	case sequence.StatusExpired:
		return 0, sequence.ErrSequenceExpired
	default:
		return 0, sequence.ErrSequenceExhausted
	}
}

func (r *Repository) GetSequence(ctx context.Context, prefix string) (sequence.Sequence, error) {
	var seq sequence.Sequence
	err := r.pool.QueryRow(ctx, `
		SELECT prefix, COALESCE(description, ''), current_value, end_value,
			expires_at, created_at, updated_at
		FROM ncf_sequences
		WHERE prefix = $1
	`, prefix).Scan(
		&seq.Prefix,
		&seq.Description,
		&seq.CurrentValue,
		&seq.EndValue,
		&seq.ExpiresAt,
		&seq.CreatedAt,
		&seq.UpdatedAt,
	)
	if err != nil {
		return sequence.Sequence{}, err
	}
	return seq, nil
}

func (r *Repository) ListSequences(ctx context.Context) ([]sequence.Sequence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT prefix, COALESCE(description, ''), current_value, end_value,
			expires_at, created_at, updated_at
		FROM ncf_sequences
		ORDER BY prefix ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seqs []sequence.Sequence
	for rows.Next() {
		var seq sequence.Sequence
		if err := rows.Scan(
			&seq.Prefix,
			&seq.Description,
			&seq.CurrentValue,
			&seq.EndValue,
			&seq.ExpiresAt,
			&seq.CreatedAt,
			&seq.UpdatedAt,
		); err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return seqs, nil
}

func (r *Repository) CreateSequence(ctx context.Context, seq sequence.Sequence) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ncf_sequences (prefix, description, current_value, end_value, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, seq.Prefix, seq.Description, seq.CurrentValue, seq.EndValue, seq.ExpiresAt)
	return err
}

// UpdateSequence adjusts the bound and expiry of an existing sequence. The
// counter itself is never writable through the admin surface: only
// AllocateNext moves it.
func (r *Repository) UpdateSequence(ctx context.Context, prefix, description string, endValue int64, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE ncf_sequences
		SET description = $2,
			end_value = $3,
			expires_at = $4,
			updated_at = now()
		WHERE prefix = $1
	`, prefix, description, endValue, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type Issuance struct {
	ID          int64
	NCF         string
	Prefix      string
	ClientRNC   string
	ClientName  string
	PaymentRef  string
	AmountCents int64
	IssuedAt    time.Time
}

// InsertIssuance appends one row to the issuance log. Callers treat a failure
// here as non-fatal: the allocation already happened and must not be rolled
// back over a missing audit row.
func (r *Repository) InsertIssuance(ctx context.Context, iss Issuance) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ncf_issuances (ncf, prefix, client_rnc, client_name, payment_ref, amount_cents)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6)
	`, iss.NCF, iss.Prefix, iss.ClientRNC, iss.ClientName, iss.PaymentRef, iss.AmountCents)
	return err
}

func (r *Repository) ListIssuances(ctx context.Context, prefix string, limit int) ([]Issuance, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, ncf, prefix, COALESCE(client_rnc, ''), client_name,
			COALESCE(payment_ref, ''), amount_cents, issued_at
		FROM ncf_issuances
		WHERE $1 = '' OR prefix = $1
		ORDER BY issued_at DESC
		LIMIT $2
	`, prefix, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issuances []Issuance
	for rows.Next() {
		var iss Issuance
		if err := rows.Scan(
			&iss.ID,
			&iss.NCF,
			&iss.Prefix,
			&iss.ClientRNC,
			&iss.ClientName,
			&iss.PaymentRef,
			&iss.AmountCents,
			&iss.IssuedAt,
		); err != nil {
			return nil, err
		}
		issuances = append(issuances, iss)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return issuances, nil
}

func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
