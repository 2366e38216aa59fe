package storage

import (
	"context"

	"github.com/santanalegal/lexcita/libs/db"
)

type Notification struct {
	AppointmentID string
	Kind          string
	Language      string
	Recipient     string
	Subject       string
	Status        string
	ErrorReason   string
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (appointment_id, kind, language, recipient, subject, status, error_reason)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	`, n.AppointmentID, n.Kind, n.Language, n.Recipient, n.Subject, n.Status, n.ErrorReason)
	return err
}
