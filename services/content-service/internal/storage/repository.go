package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/santanalegal/lexcita/libs/db"
)

type PracticeArea struct {
	ID              string
	Slug            string
	NameES          string
	NameEN          string
	DescriptionES   string
	DescriptionEN   string
	PriceCents      int64
	DurationMinutes int
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Lawyer struct {
	ID        string
	FullName  string
	TitleES   string
	TitleEN   string
	BioES     string
	BioEN     string
	PhotoURL  string
	Email     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type BlogPost struct {
	ID          string
	Slug        string
	TitleES     string
	TitleEN     string
	BodyES      string
	BodyEN      string
	Published   bool
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Invoice struct {
	ID            string
	AppointmentID string
	NCF           string
	ClientName    string
	ClientEmail   string
	ClientRNC     string
	AmountCents   int64
	IssuedAt      time.Time
}

type StaffUser struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) ListPracticeAreas(ctx context.Context, onlyActive bool) ([]PracticeArea, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, slug, name_es, name_en, description_es, description_en,
			price_cents, duration_minutes, active, created_at, updated_at
		FROM practice_areas
		WHERE NOT $1 OR active
		ORDER BY name_es ASC
	`, onlyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var areas []PracticeArea
	for rows.Next() {
		var a PracticeArea
		if err := rows.Scan(&a.ID, &a.Slug, &a.NameES, &a.NameEN, &a.DescriptionES, &a.DescriptionEN,
			&a.PriceCents, &a.DurationMinutes, &a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		areas = append(areas, a)
	}
	return areas, rows.Err()
}

func (r *Repository) CreatePracticeArea(ctx context.Context, a PracticeArea) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO practice_areas (slug, name_es, name_en, description_es, description_en, price_cents, duration_minutes, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, a.Slug, a.NameES, a.NameEN, a.DescriptionES, a.DescriptionEN, a.PriceCents, a.DurationMinutes, a.Active).Scan(&id)
	return id, err
}

func (r *Repository) UpdatePracticeArea(ctx context.Context, a PracticeArea) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE practice_areas
		SET slug = $2, name_es = $3, name_en = $4, description_es = $5, description_en = $6,
			price_cents = $7, duration_minutes = $8, active = $9, updated_at = now()
		WHERE id = $1
	`, a.ID, a.Slug, a.NameES, a.NameEN, a.DescriptionES, a.DescriptionEN, a.PriceCents, a.DurationMinutes, a.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) DeletePracticeArea(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM practice_areas WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) ListLawyers(ctx context.Context, onlyActive bool) ([]Lawyer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, full_name, title_es, title_en, bio_es, bio_en,
			COALESCE(photo_url, ''), email, active, created_at, updated_at
		FROM lawyers
		WHERE NOT $1 OR active
		ORDER BY full_name ASC
	`, onlyActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lawyers []Lawyer
	for rows.Next() {
		var l Lawyer
		if err := rows.Scan(&l.ID, &l.FullName, &l.TitleES, &l.TitleEN, &l.BioES, &l.BioEN,
			&l.PhotoURL, &l.Email, &l.Active, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lawyers = append(lawyers, l)
	}
	return lawyers, rows.Err()
}

func (r *Repository) CreateLawyer(ctx context.Context, l Lawyer) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lawyers (full_name, title_es, title_en, bio_es, bio_en, photo_url, email, active)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		RETURNING id
	`, l.FullName, l.TitleES, l.TitleEN, l.BioES, l.BioEN, l.PhotoURL, l.Email, l.Active).Scan(&id)
	return id, err
}

func (r *Repository) UpdateLawyer(ctx context.Context, l Lawyer) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lawyers
		SET full_name = $2, title_es = $3, title_en = $4, bio_es = $5, bio_en = $6,
			photo_url = NULLIF($7, ''), email = $8, active = $9, updated_at = now()
		WHERE id = $1
	`, l.ID, l.FullName, l.TitleES, l.TitleEN, l.BioES, l.BioEN, l.PhotoURL, l.Email, l.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) ListBlogPosts(ctx context.Context, onlyPublished bool, limit int) ([]BlogPost, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, slug, title_es, title_en, body_es, body_en,
			published, published_at, created_at, updated_at
		FROM blog_posts
		WHERE NOT $1 OR published
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT $2
	`, onlyPublished, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []BlogPost
	for rows.Next() {
		var p BlogPost
		if err := rows.Scan(&p.ID, &p.Slug, &p.TitleES, &p.TitleEN, &p.BodyES, &p.BodyEN,
			&p.Published, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *Repository) GetBlogPostBySlug(ctx context.Context, slug string) (BlogPost, error) {
	var p BlogPost
	err := r.pool.QueryRow(ctx, `
		SELECT id, slug, title_es, title_en, body_es, body_en,
			published, published_at, created_at, updated_at
		FROM blog_posts
		WHERE slug = $1
	`, slug).Scan(&p.ID, &p.Slug, &p.TitleES, &p.TitleEN, &p.BodyES, &p.BodyEN,
		&p.Published, &p.PublishedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return BlogPost{}, err
	}
	return p, nil
}

func (r *Repository) CreateBlogPost(ctx context.Context, p BlogPost) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO blog_posts (slug, title_es, title_en, body_es, body_en, published, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, CASE WHEN $6 THEN now() END)
		RETURNING id
	`, p.Slug, p.TitleES, p.TitleEN, p.BodyES, p.BodyEN, p.Published).Scan(&id)
	return id, err
}

func (r *Repository) UpdateBlogPost(ctx context.Context, p BlogPost) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE blog_posts
		SET slug = $2, title_es = $3, title_en = $4, body_es = $5, body_en = $6,
			published = $7,
			published_at = CASE WHEN $7 AND published_at IS NULL THEN now() ELSE published_at END,
			updated_at = now()
		WHERE id = $1
	`, p.ID, p.Slug, p.TitleES, p.TitleEN, p.BodyES, p.BodyEN, p.Published)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) ListInvoices(ctx context.Context, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, appointment_id, ncf, client_name, client_email,
			COALESCE(client_rnc, ''), amount_cents, issued_at
		FROM invoices
		ORDER BY issued_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		var inv Invoice
		if err := rows.Scan(&inv.ID, &inv.AppointmentID, &inv.NCF, &inv.ClientName,
			&inv.ClientEmail, &inv.ClientRNC, &inv.AmountCents, &inv.IssuedAt); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *Repository) CreateInvoice(ctx context.Context, inv Invoice) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO invoices (appointment_id, ncf, client_name, client_email, client_rnc, amount_cents)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id
	`, inv.AppointmentID, inv.NCF, inv.ClientName, inv.ClientEmail, inv.ClientRNC, inv.AmountCents).Scan(&id)
	return id, err
}

func (r *Repository) GetStaffByEmail(ctx context.Context, email string) (StaffUser, error) {
	var u StaffUser
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, role, created_at
		FROM staff_users
		WHERE email = $1
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return StaffUser{}, err
	}
	return u, nil
}

func (r *Repository) CreateStaff(ctx context.Context, u StaffUser) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO staff_users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id
	`, u.Email, u.PasswordHash, u.Role).Scan(&id)
	return id, err
}

func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
