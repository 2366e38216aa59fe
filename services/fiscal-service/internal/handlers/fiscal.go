package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/santanalegal/lexcita/services/fiscal-service/internal/sequence"
	"github.com/santanalegal/lexcita/services/fiscal-service/internal/storage"
)

// Store is the persistence surface the handlers need. Defined here so tests
// can substitute a fake without a database.
type Store interface {
	AllocateNext(ctx context.Context, prefix string) (int64, error)
	InsertIssuance(ctx context.Context, iss storage.Issuance) error
	ListIssuances(ctx context.Context, prefix string, limit int) ([]storage.Issuance, error)
	GetSequence(ctx context.Context, prefix string) (sequence.Sequence, error)
	ListSequences(ctx context.Context) ([]sequence.Sequence, error)
	CreateSequence(ctx context.Context, seq sequence.Sequence) error
	UpdateSequence(ctx context.Context, prefix, description string, endValue int64, expiresAt time.Time) error
}

type FiscalHandler struct {
	store  Store
	logger *slog.Logger
}

func NewFiscalHandler(store Store, logger *slog.Logger) *FiscalHandler {
	return &FiscalHandler{store: store, logger: logger}
}

type allocateRequest struct {
	Prefix      string `json:"prefix"`
	ClientRNC   string `json:"client_rnc"`
	ClientName  string `json:"client_name"`
	PaymentRef  string `json:"payment_ref"`
	AmountCents int64  `json:"amount_cents"`
}

// Allocate mints the next receipt number for a prefix. The response body on
// success is the bare JSON-encoded code string. Failures carry a machine code
// so the caller can tell a depleted sequence from a misconfigured one.
func (h *FiscalHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "invalid JSON body", "bad_request")
		return
	}
	req.Prefix = strings.ToUpper(strings.TrimSpace(req.Prefix))
	if !sequence.ValidPrefix(req.Prefix) {
		writeErrorCode(w, http.StatusBadRequest, "invalid prefix", "bad_request")
		return
	}

	value, err := h.store.AllocateNext(r.Context(), req.Prefix)
	if err != nil {
		switch {
		case errors.Is(err, sequence.ErrSequenceExhausted):
			writeErrorCode(w, http.StatusConflict, "sequence exhausted for prefix "+req.Prefix, "sequence_exhausted")
		case errors.Is(err, sequence.ErrSequenceExpired):
			writeErrorCode(w, http.StatusConflict, "sequence expired for prefix "+req.Prefix, "sequence_expired")
		case errors.Is(err, sequence.ErrNoActiveSequence):
			writeErrorCode(w, http.StatusNotFound, "no sequence configured for prefix "+req.Prefix, "no_active_sequence")
		default:
			h.logger.Error("ncf allocation failed", "prefix", req.Prefix, "error", err)
			writeErrorCode(w, http.StatusInternalServerError, "allocation failed", "internal")
		}
		return
	}

	ncf := sequence.FormatNCF(req.Prefix, value)

	// The issuance log is append-only and best-effort: the counter already
	// moved, so a failed audit insert must not turn into a client error or a
	// retry that would burn another number.
	if err := h.store.InsertIssuance(r.Context(), storage.Issuance{
		NCF:         ncf,
		Prefix:      req.Prefix,
		ClientRNC:   req.ClientRNC,
		ClientName:  req.ClientName,
		PaymentRef:  req.PaymentRef,
		AmountCents: req.AmountCents,
	}); err != nil {
		h.logger.Error("ncf issuance log insert failed", "ncf", ncf, "error", err)
	}

	h.logger.Info("ncf allocated", "ncf", ncf, "prefix", req.Prefix)
	writeJSON(w, http.StatusOK, ncf)
}

type sequenceView struct {
	Prefix       string `json:"prefix"`
	Description  string `json:"description"`
	CurrentValue int64  `json:"current_value"`
	EndValue     int64  `json:"end_value"`
	Remaining    int64  `json:"remaining"`
	ExpiresAt    string `json:"expires_at"`
	Status       string `json:"status"`
}

func viewOf(seq sequence.Sequence, now time.Time) sequenceView {
	remaining := seq.EndValue - seq.CurrentValue
	if remaining < 0 {
		remaining = 0
	}
	return sequenceView{
		Prefix:       seq.Prefix,
		Description:  seq.Description,
		CurrentValue: seq.CurrentValue,
		EndValue:     seq.EndValue,
		Remaining:    remaining,
		ExpiresAt:    seq.ExpiresAt.Format("2006-01-02"),
		Status:       string(seq.StatusAt(now)),
	}
}

// Sequences serves the admin list and create operations.
func (h *FiscalHandler) Sequences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listSequences(w, r)
	case http.MethodPost:
		h.createSequence(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *FiscalHandler) listSequences(w http.ResponseWriter, r *http.Request) {
	seqs, err := h.store.ListSequences(r.Context())
	if err != nil {
		h.logger.Error("list sequences failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	now := time.Now()
	views := make([]sequenceView, 0, len(seqs))
	for _, seq := range seqs {
		views = append(views, viewOf(seq, now))
	}
	writeJSON(w, http.StatusOK, views)
}

type sequenceRequest struct {
	Prefix      string `json:"prefix"`
	Description string `json:"description"`
	StartValue  int64  `json:"start_value"`
	EndValue    int64  `json:"end_value"`
	ExpiresAt   string `json:"expires_at"`
}

func (h *FiscalHandler) createSequence(w http.ResponseWriter, r *http.Request) {
	var req sequenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	req.Prefix = strings.ToUpper(strings.TrimSpace(req.Prefix))
	if !sequence.ValidPrefix(req.Prefix) {
		http.Error(w, "invalid prefix", http.StatusBadRequest)
		return
	}
	if req.StartValue < 0 || req.EndValue <= req.StartValue {
		http.Error(w, "end_value must be greater than start_value", http.StatusBadRequest)
		return
	}
	expiresAt, err := time.ParseInLocation("2006-01-02", req.ExpiresAt, time.UTC)
	if err != nil {
		http.Error(w, "invalid expires_at, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	err = h.store.CreateSequence(r.Context(), sequence.Sequence{
		Prefix:       req.Prefix,
		Description:  req.Description,
		CurrentValue: req.StartValue,
		EndValue:     req.EndValue,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		if storage.IsDuplicate(err) {
			http.Error(w, "sequence already exists for prefix "+req.Prefix, http.StatusConflict)
			return
		}
		h.logger.Error("create sequence failed", "prefix", req.Prefix, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("sequence created", "prefix", req.Prefix, "end_value", req.EndValue)
	seq, err := h.store.GetSequence(r.Context(), req.Prefix)
	if err != nil {
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(seq, time.Now()))
}

// Sequence serves single-prefix reads and updates at /internal/v1/ncf/sequences/{prefix}.
func (h *FiscalHandler) Sequence(w http.ResponseWriter, r *http.Request) {
	prefix := strings.ToUpper(strings.TrimSpace(r.PathValue("prefix")))
	if !sequence.ValidPrefix(prefix) {
		http.Error(w, "invalid prefix", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		seq, err := h.store.GetSequence(r.Context(), prefix)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "sequence not found", http.StatusNotFound)
				return
			}
			h.logger.Error("get sequence failed", "prefix", prefix, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(seq, time.Now()))
	case http.MethodPut:
		h.updateSequence(w, r, prefix)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *FiscalHandler) updateSequence(w http.ResponseWriter, r *http.Request, prefix string) {
	var req sequenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.EndValue <= 0 {
		http.Error(w, "end_value must be positive", http.StatusBadRequest)
		return
	}
	expiresAt, err := time.ParseInLocation("2006-01-02", req.ExpiresAt, time.UTC)
	if err != nil {
		http.Error(w, "invalid expires_at, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	if err := h.store.UpdateSequence(r.Context(), prefix, req.Description, req.EndValue, expiresAt); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "sequence not found", http.StatusNotFound)
			return
		}
		h.logger.Error("update sequence failed", "prefix", prefix, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("sequence updated", "prefix", prefix, "end_value", req.EndValue)
	seq, err := h.store.GetSequence(r.Context(), prefix)
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(seq, time.Now()))
}

type issuanceView struct {
	ID          int64  `json:"id"`
	NCF         string `json:"ncf"`
	Prefix      string `json:"prefix"`
	ClientRNC   string `json:"client_rnc,omitempty"`
	ClientName  string `json:"client_name"`
	PaymentRef  string `json:"payment_ref,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	IssuedAt    string `json:"issued_at"`
}

// Issuances serves the audit log, newest first, optionally filtered by prefix.
func (h *FiscalHandler) Issuances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	prefix := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("prefix")))
	if prefix != "" && !sequence.ValidPrefix(prefix) {
		http.Error(w, "invalid prefix", http.StatusBadRequest)
		return
	}
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	issuances, err := h.store.ListIssuances(r.Context(), prefix, limit)
	if err != nil {
		h.logger.Error("list issuances failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	views := make([]issuanceView, 0, len(issuances))
	for _, iss := range issuances {
		views = append(views, issuanceView{
			ID:          iss.ID,
			NCF:         iss.NCF,
			Prefix:      iss.Prefix,
			ClientRNC:   iss.ClientRNC,
			ClientName:  iss.ClientName,
			PaymentRef:  iss.PaymentRef,
			AmountCents: iss.AmountCents,
			IssuedAt:    iss.IssuedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func writeErrorCode(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
