package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/santanalegal/lexcita/services/content-service/internal/storage"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ContentHandler serves the firm's editable content: practice areas, lawyer
// profiles, blog posts and invoice records. Public reads return both language
// variants; the frontend picks one.
type ContentHandler struct {
	repo   *storage.Repository
	logger *slog.Logger
}

func NewContentHandler(repo *storage.Repository, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{repo: repo, logger: logger}
}

type practiceAreaPayload struct {
	ID              string `json:"id,omitempty"`
	Slug            string `json:"slug"`
	NameES          string `json:"name_es"`
	NameEN          string `json:"name_en"`
	DescriptionES   string `json:"description_es"`
	DescriptionEN   string `json:"description_en"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
	Active          bool   `json:"active"`
}

func (h *ContentHandler) PracticeAreas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Public list shows only active areas; the admin panel asks for all.
		onlyActive := r.URL.Query().Get("all") != "true"
		areas, err := h.repo.ListPracticeAreas(r.Context(), onlyActive)
		if err != nil {
			h.logger.Error("list practice areas failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out := make([]practiceAreaPayload, 0, len(areas))
		for _, a := range areas {
			out = append(out, practiceAreaPayload{
				ID: a.ID, Slug: a.Slug,
				NameES: a.NameES, NameEN: a.NameEN,
				DescriptionES: a.DescriptionES, DescriptionEN: a.DescriptionEN,
				PriceCents: a.PriceCents, DurationMinutes: a.DurationMinutes,
				Active: a.Active,
			})
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req practiceAreaPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		area, ok := h.validPracticeArea(w, req)
		if !ok {
			return
		}
		id, err := h.repo.CreatePracticeArea(r.Context(), area)
		if err != nil {
			if storage.IsDuplicate(err) {
				http.Error(w, "slug already in use", http.StatusConflict)
				return
			}
			h.logger.Error("create practice area failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ContentHandler) PracticeArea(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req practiceAreaPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		area, ok := h.validPracticeArea(w, req)
		if !ok {
			return
		}
		area.ID = id
		if err := h.repo.UpdatePracticeArea(r.Context(), area); err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "practice area not found", http.StatusNotFound)
				return
			}
			if storage.IsDuplicate(err) {
				http.Error(w, "slug already in use", http.StatusConflict)
				return
			}
			h.logger.Error("update practice area failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := h.repo.DeletePracticeArea(r.Context(), id); err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "practice area not found", http.StatusNotFound)
				return
			}
			h.logger.Error("delete practice area failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ContentHandler) validPracticeArea(w http.ResponseWriter, req practiceAreaPayload) (storage.PracticeArea, bool) {
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	req.NameES = strings.TrimSpace(req.NameES)
	req.NameEN = strings.TrimSpace(req.NameEN)
	if !slugPattern.MatchString(req.Slug) {
		http.Error(w, "invalid slug", http.StatusBadRequest)
		return storage.PracticeArea{}, false
	}
	if req.NameES == "" || req.NameEN == "" {
		http.Error(w, "name_es and name_en required", http.StatusBadRequest)
		return storage.PracticeArea{}, false
	}
	if req.PriceCents < 0 {
		http.Error(w, "price_cents must not be negative", http.StatusBadRequest)
		return storage.PracticeArea{}, false
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > 4*60 {
		http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
		return storage.PracticeArea{}, false
	}
	return storage.PracticeArea{
		Slug:   req.Slug,
		NameES: req.NameES, NameEN: req.NameEN,
		DescriptionES: req.DescriptionES, DescriptionEN: req.DescriptionEN,
		PriceCents: req.PriceCents, DurationMinutes: req.DurationMinutes,
		Active: req.Active,
	}, true
}

type lawyerPayload struct {
	ID       string `json:"id,omitempty"`
	FullName string `json:"full_name"`
	TitleES  string `json:"title_es"`
	TitleEN  string `json:"title_en"`
	BioES    string `json:"bio_es"`
	BioEN    string `json:"bio_en"`
	PhotoURL string `json:"photo_url"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}

func (h *ContentHandler) Lawyers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		onlyActive := r.URL.Query().Get("all") != "true"
		lawyers, err := h.repo.ListLawyers(r.Context(), onlyActive)
		if err != nil {
			h.logger.Error("list lawyers failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out := make([]lawyerPayload, 0, len(lawyers))
		for _, l := range lawyers {
			out = append(out, lawyerPayload{
				ID: l.ID, FullName: l.FullName,
				TitleES: l.TitleES, TitleEN: l.TitleEN,
				BioES: l.BioES, BioEN: l.BioEN,
				PhotoURL: l.PhotoURL, Email: l.Email, Active: l.Active,
			})
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req lawyerPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		lawyer, ok := h.validLawyer(w, req)
		if !ok {
			return
		}
		id, err := h.repo.CreateLawyer(r.Context(), lawyer)
		if err != nil {
			if storage.IsDuplicate(err) {
				http.Error(w, "email already in use", http.StatusConflict)
				return
			}
			h.logger.Error("create lawyer failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ContentHandler) Lawyer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	var req lawyerPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	lawyer, ok := h.validLawyer(w, req)
	if !ok {
		return
	}
	lawyer.ID = id
	if err := h.repo.UpdateLawyer(r.Context(), lawyer); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "lawyer not found", http.StatusNotFound)
			return
		}
		h.logger.Error("update lawyer failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContentHandler) validLawyer(w http.ResponseWriter, req lawyerPayload) (storage.Lawyer, bool) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" {
		http.Error(w, "full_name required", http.StatusBadRequest)
		return storage.Lawyer{}, false
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		http.Error(w, "valid email required", http.StatusBadRequest)
		return storage.Lawyer{}, false
	}
	return storage.Lawyer{
		FullName: req.FullName,
		TitleES:  req.TitleES, TitleEN: req.TitleEN,
		BioES: req.BioES, BioEN: req.BioEN,
		PhotoURL: strings.TrimSpace(req.PhotoURL),
		Email:    req.Email,
		Active:   req.Active,
	}, true
}

type blogPostPayload struct {
	ID          string `json:"id,omitempty"`
	Slug        string `json:"slug"`
	TitleES     string `json:"title_es"`
	TitleEN     string `json:"title_en"`
	BodyES      string `json:"body_es"`
	BodyEN      string `json:"body_en"`
	Published   bool   `json:"published"`
	PublishedAt string `json:"published_at,omitempty"`
}

func blogView(p storage.BlogPost) blogPostPayload {
	out := blogPostPayload{
		ID: p.ID, Slug: p.Slug,
		TitleES: p.TitleES, TitleEN: p.TitleEN,
		BodyES: p.BodyES, BodyEN: p.BodyEN,
		Published: p.Published,
	}
	if p.PublishedAt != nil {
		out.PublishedAt = p.PublishedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func (h *ContentHandler) BlogPosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		onlyPublished := r.URL.Query().Get("all") != "true"
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 100 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		posts, err := h.repo.ListBlogPosts(r.Context(), onlyPublished, limit)
		if err != nil {
			h.logger.Error("list blog posts failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out := make([]blogPostPayload, 0, len(posts))
		for _, p := range posts {
			out = append(out, blogView(p))
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req blogPostPayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		post, ok := h.validBlogPost(w, req)
		if !ok {
			return
		}
		id, err := h.repo.CreateBlogPost(r.Context(), post)
		if err != nil {
			if storage.IsDuplicate(err) {
				http.Error(w, "slug already in use", http.StatusConflict)
				return
			}
			h.logger.Error("create blog post failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ContentHandler) BlogPostBySlug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	slug := strings.TrimSpace(r.PathValue("slug"))
	if !slugPattern.MatchString(slug) {
		http.Error(w, "invalid slug", http.StatusBadRequest)
		return
	}

	post, err := h.repo.GetBlogPostBySlug(r.Context(), slug)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "post not found", http.StatusNotFound)
			return
		}
		h.logger.Error("get blog post failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !post.Published {
		// Drafts are reachable only through the admin list.
		http.Error(w, "post not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, blogView(post))
}

func (h *ContentHandler) BlogPost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	var req blogPostPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	post, ok := h.validBlogPost(w, req)
	if !ok {
		return
	}
	post.ID = id
	if err := h.repo.UpdateBlogPost(r.Context(), post); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "post not found", http.StatusNotFound)
			return
		}
		if storage.IsDuplicate(err) {
			http.Error(w, "slug already in use", http.StatusConflict)
			return
		}
		h.logger.Error("update blog post failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ContentHandler) validBlogPost(w http.ResponseWriter, req blogPostPayload) (storage.BlogPost, bool) {
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	req.TitleES = strings.TrimSpace(req.TitleES)
	req.TitleEN = strings.TrimSpace(req.TitleEN)
	if !slugPattern.MatchString(req.Slug) {
		http.Error(w, "invalid slug", http.StatusBadRequest)
		return storage.BlogPost{}, false
	}
	if req.TitleES == "" || req.TitleEN == "" {
		http.Error(w, "title_es and title_en required", http.StatusBadRequest)
		return storage.BlogPost{}, false
	}
	return storage.BlogPost{
		Slug:    req.Slug,
		TitleES: req.TitleES, TitleEN: req.TitleEN,
		BodyES: req.BodyES, BodyEN: req.BodyEN,
		Published: req.Published,
	}, true
}

type invoicePayload struct {
	ID            string `json:"id,omitempty"`
	AppointmentID string `json:"appointment_id"`
	NCF           string `json:"ncf"`
	ClientName    string `json:"client_name"`
	ClientEmail   string `json:"client_email"`
	ClientRNC     string `json:"client_rnc,omitempty"`
	AmountCents   int64  `json:"amount_cents"`
	IssuedAt      string `json:"issued_at,omitempty"`
}

func (h *ContentHandler) Invoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 1000 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		invoices, err := h.repo.ListInvoices(r.Context(), limit)
		if err != nil {
			h.logger.Error("list invoices failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		out := make([]invoicePayload, 0, len(invoices))
		for _, inv := range invoices {
			out = append(out, invoicePayload{
				ID: inv.ID, AppointmentID: inv.AppointmentID, NCF: inv.NCF,
				ClientName: inv.ClientName, ClientEmail: inv.ClientEmail,
				ClientRNC: inv.ClientRNC, AmountCents: inv.AmountCents,
				IssuedAt: inv.IssuedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var req invoicePayload
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.NCF = strings.TrimSpace(req.NCF)
		req.ClientName = strings.TrimSpace(req.ClientName)
		if req.AppointmentID == "" || req.NCF == "" || req.ClientName == "" {
			http.Error(w, "appointment_id, ncf and client_name required", http.StatusBadRequest)
			return
		}
		if req.AmountCents <= 0 {
			http.Error(w, "amount_cents must be positive", http.StatusBadRequest)
			return
		}
		id, err := h.repo.CreateInvoice(r.Context(), storage.Invoice{
			AppointmentID: req.AppointmentID,
			NCF:           req.NCF,
			ClientName:    req.ClientName,
			ClientEmail:   strings.TrimSpace(req.ClientEmail),
			ClientRNC:     strings.TrimSpace(req.ClientRNC),
			AmountCents:   req.AmountCents,
		})
		if err != nil {
			if storage.IsDuplicate(err) {
				http.Error(w, "invoice already recorded for this NCF", http.StatusConflict)
				return
			}
			h.logger.Error("create invoice failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
