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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/santanalegal/lexcita/services/booking-service/internal/availability"
	"github.com/santanalegal/lexcita/services/booking-service/internal/fiscal"
	"github.com/santanalegal/lexcita/services/booking-service/internal/model"
	"github.com/santanalegal/lexcita/services/booking-service/internal/outbox"
	"github.com/santanalegal/lexcita/services/booking-service/internal/payment"
	"github.com/santanalegal/lexcita/services/booking-service/internal/storage"
)

// Allocator mints the next fiscal receipt number for a document-type prefix.
type Allocator interface {
	Allocate(ctx context.Context, prefix string, details fiscal.AllocationDetails) (string, error)
}

type BookingHandler struct {
	repo          *storage.BookingRepository
	outboxRepo    *outbox.Repository
	logger        *slog.Logger
	verifier      payment.Verifier
	allocator     Allocator
	electronicNCF bool
}

func NewBookingHandler(repo *storage.BookingRepository, outboxRepo *outbox.Repository, logger *slog.Logger, verifier payment.Verifier, allocator Allocator, electronicNCF bool) *BookingHandler {
	return &BookingHandler{
		repo:          repo,
		outboxRepo:    outboxRepo,
		logger:        logger,
		verifier:      verifier,
		allocator:     allocator,
		electronicNCF: electronicNCF,
	}
}

type appointmentData struct {
	Date            string `json:"date"`
	Timeslot        string `json:"timeslot"`
	DurationMinutes int    `json:"durationMinutes"`
	Channel         string `json:"channel"`
	ClientName      string `json:"clientName"`
	ClientEmail     string `json:"clientEmail"`
	ClientPhone     string `json:"clientPhone"`
	LawyerID        string `json:"lawyerId"`
	Language        string `json:"language"`
	AmountCents     int64  `json:"amountCents"`
}

type bookRequest struct {
	OrderID         string          `json:"orderID"`
	PaymentMethod   string          `json:"paymentMethod"`
	AppointmentData appointmentData `json:"appointmentData"`
	PaymentData     *struct {
		Reference string `json:"reference"`
	} `json:"paymentData"`
	ClientRNC string `json:"client_rnc"`
}

type bookResponse struct {
	Success         bool   `json:"success"`
	AppointmentID   string `json:"appointmentId"`
	NCF             string `json:"ncf,omitempty"`
	AppointmentCode string `json:"appointmentCode"`
}

type confirmRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

// Slots serves the public availability grid for one date and day window.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		http.Error(w, "date is required", http.StatusBadRequest)
		return
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	windowName := strings.TrimSpace(r.URL.Query().Get("window"))
	if windowName == "" {
		windowName = availability.Morning.Name
	}
	win, ok := availability.WindowByName(windowName)
	if !ok {
		http.Error(w, "invalid window", http.StatusBadRequest)
		return
	}

	durationMins := availability.DefaultDurationMinutes
	if v := strings.TrimSpace(r.URL.Query().Get("duration_minutes")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 4*60 {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
		durationMins = n
	}

	booked, err := h.repo.BusyByDate(r.Context(), date)
	if err != nil {
		// Never fail open: an unknown busy set must not read as "all free".
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}

	slots := availability.GenerateSlots(win, durationMins, availability.BusyIntervals(booked))
	if slots == nil {
		slots = []availability.Slot{}
	}

	body, err := json.Marshal(slots)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// Book commits a reservation: availability re-check, payment verification,
// insert (the exclusion constraint arbitrates races), NCF allocation for
// cleared payments, and notification events, all in one transaction.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "solicitud inválida")
		return
	}

	appt, errMsg := h.buildAppointment(req)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.StatusCode > 0 && len(rec.ResponsePayload) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	// Advisory re-check; two handlers can still pass it concurrently, which is
	// why the insert below relies on the exclusion constraint, not this read.
	booked, err := h.repo.BusyByDate(ctx, appt.Date)
	if err != nil {
		http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
		return
	}
	startMin, err := availability.ParseClock(appt.Timeslot)
	if err != nil {
		writeError(w, http.StatusBadRequest, "horario inválido")
		return
	}
	if availability.Overlaps(startMin, startMin+appt.DurationMinutes, availability.BusyIntervals(booked)) {
		writeError(w, http.StatusConflict, "el horario seleccionado ya no está disponible, elija otro")
		return
	}

	orderRef := req.OrderID
	if orderRef == "" && req.PaymentData != nil {
		orderRef = req.PaymentData.Reference
	}
	result, err := h.verifier.Verify(ctx, req.PaymentMethod, orderRef, appt.AmountCents)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrUnknownMethod):
			writeError(w, http.StatusBadRequest, "método de pago no soportado")
		case errors.Is(err, payment.ErrMissingReference), errors.Is(err, payment.ErrNotAuthorized):
			writeError(w, http.StatusBadRequest, "el pago no fue autorizado")
		default:
			h.logger.Error("payment verification failed", "err", err)
			http.Error(w, "payment verification unavailable", http.StatusServiceUnavailable)
		}
		return
	}
	appt.PaymentRef = result.Ref
	if result.Cleared {
		appt.Status = model.StatusConfirmed
	}

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		if storage.IsConflict(err) {
			writeError(w, http.StatusConflict, "el horario seleccionado ya no está disponible, elija otro")
			return
		}
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}
	appt.ID = id

	if result.Cleared {
		ncf, ok := h.allocateNCF(ctx, w, appt)
		if !ok {
			return
		}
		if err := h.repo.SetNCF(ctx, tx, id, ncf); err != nil {
			http.Error(w, "failed to store ncf", http.StatusInternalServerError)
			return
		}
		appt.NCF = ncf
	}

	if err := h.insertBookedEvents(ctx, tx, appt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	respBody, err := json.Marshal(bookResponse{
		Success:         true,
		AppointmentID:   id,
		NCF:             appt.NCF,
		AppointmentCode: appt.Code,
	})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
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

// Confirm finalizes a pending transfer booking after staff accept the proof:
// status flips to confirmed and the fiscal number is minted now.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if appt.Status == model.StatusConfirmed {
		writeJSON(w, http.StatusOK, map[string]any{"appointment_id": appt.ID, "status": appt.Status, "ncf": appt.NCF})
		return
	}
	if appt.Status != model.StatusPending {
		http.Error(w, "appointment cannot be confirmed", http.StatusConflict)
		return
	}

	if err := h.repo.Confirm(ctx, tx, appt.ID); err != nil {
		http.Error(w, "failed to confirm appointment", http.StatusInternalServerError)
		return
	}
	appt.Status = model.StatusConfirmed

	if appt.NCF == "" {
		ncf, ok := h.allocateNCF(ctx, w, &appt)
		if !ok {
			return
		}
		if err := h.repo.SetNCF(ctx, tx, appt.ID, ncf); err != nil {
			http.Error(w, "failed to store ncf", http.StatusInternalServerError)
			return
		}
		appt.NCF = ncf
	}

	if err := h.insertEmailEvent(ctx, tx, &appt, "confirmed"); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment_id": appt.ID, "status": appt.Status, "ncf": appt.NCF})
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if appt.Status == model.StatusCancelled && appt.CancelledAt != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"appointment_id": appt.ID,
			"status":         appt.Status,
			"cancelled_at":   appt.CancelledAt.UTC().Format(time.RFC3339),
		})
		return
	}

	cancelledAt, err := h.repo.Cancel(ctx, tx, appt.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}
	appt.Status = model.StatusCancelled

	if err := h.insertEmailEvent(ctx, tx, &appt, "cancelled"); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointment_id": appt.ID,
		"status":         appt.Status,
		"cancelled_at":   cancelledAt.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			http.Error(w, "invalid from date", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.repo.List(r.Context(), from, limit)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]any, 0, len(appts))
	for _, appt := range appts {
		item := map[string]any{
			"appointment_id":   appt.ID,
			"appointment_code": appt.Code,
			"date":             appt.Date.Format("2006-01-02"),
			"timeslot":         appt.Timeslot,
			"duration_minutes": appt.DurationMinutes,
			"channel":          appt.Channel,
			"status":           appt.Status,
			"client_name":      appt.ClientName,
			"client_email":     appt.ClientEmail,
			"amount_cents":     appt.AmountCents,
			"ncf":              appt.NCF,
			"created_at":       appt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if appt.CancelledAt != nil {
			item["cancelled_at"] = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) buildAppointment(req bookRequest) (*model.Appointment, string) {
	data := req.AppointmentData
	data.ClientName = strings.TrimSpace(data.ClientName)
	data.ClientEmail = strings.TrimSpace(data.ClientEmail)
	data.ClientPhone = strings.TrimSpace(data.ClientPhone)

	if data.ClientName == "" || data.ClientEmail == "" {
		return nil, "nombre y correo del cliente son requeridos"
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(data.Date), time.UTC)
	if err != nil {
		return nil, "fecha inválida"
	}
	if _, err := availability.ParseClock(strings.TrimSpace(data.Timeslot)); err != nil {
		return nil, "horario inválido"
	}
	duration := data.DurationMinutes
	if duration <= 0 {
		duration = availability.DefaultDurationMinutes
	}
	channel := strings.TrimSpace(data.Channel)
	if channel == "" {
		channel = model.ChannelChatVideo
	}
	if channel != model.ChannelChatVideo && channel != model.ChannelManagedCall {
		return nil, "canal de videollamada inválido"
	}
	lang := strings.ToLower(strings.TrimSpace(data.Language))
	if lang != "en" {
		lang = "es"
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, "método de pago requerido"
	}

	return &model.Appointment{
		Date:            date,
		Timeslot:        strings.TrimSpace(data.Timeslot),
		DurationMinutes: duration,
		Channel:         channel,
		Status:          model.StatusPending,
		ClientName:      data.ClientName,
		ClientEmail:     data.ClientEmail,
		ClientPhone:     data.ClientPhone,
		ClientRNC:       strings.TrimSpace(req.ClientRNC),
		LawyerID:        strings.TrimSpace(data.LawyerID),
		Code:            newAppointmentCode(),
		AmountCents:     data.AmountCents,
		PaymentMethod:   method,
		Language:        lang,
	}, ""
}

// allocateNCF translates allocator failures for the client. On failure it has
// already written the response; callers must return without committing.
func (h *BookingHandler) allocateNCF(ctx context.Context, w http.ResponseWriter, appt *model.Appointment) (string, bool) {
	prefix := fiscal.PrefixFor(appt.ClientRNC, h.electronicNCF)
	ncf, err := h.allocator.Allocate(ctx, prefix, fiscal.AllocationDetails{
		ClientRNC:   appt.ClientRNC,
		ClientName:  appt.ClientName,
		PaymentRef:  appt.PaymentRef,
		AmountCents: appt.AmountCents,
	})
	if err != nil {
		switch {
		case errors.Is(err, fiscal.ErrSequenceExhausted):
			writeError(w, http.StatusBadRequest, "las secuencias de comprobantes fiscales están agotadas, contacte al administrador")
		case errors.Is(err, fiscal.ErrSequenceExpired):
			writeError(w, http.StatusBadRequest, "la secuencia de comprobantes fiscales está vencida, contacte al administrador")
		case errors.Is(err, fiscal.ErrNoActiveSequence):
			writeError(w, http.StatusBadRequest, "no hay una secuencia de comprobantes fiscales configurada, contacte al administrador")
		default:
			h.logger.Error("ncf allocation failed", "err", err, "prefix", prefix)
			http.Error(w, "fiscal service unavailable", http.StatusServiceUnavailable)
		}
		return "", false
	}
	return ncf, true
}

func (h *BookingHandler) insertBookedEvents(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id":   appt.ID,
		"appointment_code": appt.Code,
		"date":             appt.Date.Format("2006-01-02"),
		"timeslot":         appt.Timeslot,
		"duration_minutes": appt.DurationMinutes,
		"channel":          appt.Channel,
		"status":           appt.Status,
		"client_email":     appt.ClientEmail,
		"amount_cents":     appt.AmountCents,
		"ncf":              appt.NCF,
	})
	if err != nil {
		return err
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "booking.appointment.booked.v1",
		Payload:       payload,
	}); err != nil {
		return err
	}

	kind := "booked"
	if appt.Status == model.StatusConfirmed {
		kind = "confirmed"
	}
	return h.insertEmailEvent(ctx, tx, appt, kind)
}

func (h *BookingHandler) insertEmailEvent(ctx context.Context, tx pgx.Tx, appt *model.Appointment, kind string) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id":   appt.ID,
		"kind":             kind,
		"language":         appt.Language,
		"recipient":        appt.ClientEmail,
		"client_name":      appt.ClientName,
		"date":             appt.Date.Format("2006-01-02"),
		"timeslot":         appt.Timeslot,
		"channel":          appt.Channel,
		"appointment_code": appt.Code,
		"ncf":              appt.NCF,
		"amount_cents":     appt.AmountCents,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "notification.email.requested.v1",
		Payload:       payload,
	})
}

func newAppointmentCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "CITA-" + raw[:6]
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
