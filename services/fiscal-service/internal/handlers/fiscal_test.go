package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/santanalegal/lexcita/services/fiscal-service/internal/sequence"
	"github.com/santanalegal/lexcita/services/fiscal-service/internal/storage"
)

// fakeStore keeps sequences in memory with the same allocation semantics the
// SQL statement enforces.
type fakeStore struct {
	sequences   map[string]*sequence.Sequence
	issuances   []storage.Issuance
	issuanceErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sequences: map[string]*sequence.Sequence{}}
}

func (f *fakeStore) AllocateNext(_ context.Context, prefix string) (int64, error) {
	seq, ok := f.sequences[prefix]
	if !ok {
		return 0, sequence.ErrNoActiveSequence
	}
	switch seq.StatusAt(time.Now()) {
	case sequence.StatusExpired:
		return 0, sequence.ErrSequenceExpired
	case sequence.StatusDepleted:
		return 0, sequence.ErrSequenceExhausted
	}
	seq.CurrentValue++
	return seq.CurrentValue, nil
}

func (f *fakeStore) InsertIssuance(_ context.Context, iss storage.Issuance) error {
	if f.issuanceErr != nil {
		return f.issuanceErr
	}
	f.issuances = append(f.issuances, iss)
	return nil
}

func (f *fakeStore) ListIssuances(_ context.Context, prefix string, _ int) ([]storage.Issuance, error) {
	var out []storage.Issuance
	for _, iss := range f.issuances {
		if prefix == "" || iss.Prefix == prefix {
			out = append(out, iss)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSequence(_ context.Context, prefix string) (sequence.Sequence, error) {
	seq, ok := f.sequences[prefix]
	if !ok {
		return sequence.Sequence{}, pgx.ErrNoRows
	}
	return *seq, nil
}

func (f *fakeStore) ListSequences(_ context.Context) ([]sequence.Sequence, error) {
	var out []sequence.Sequence
	for _, seq := range f.sequences {
		out = append(out, *seq)
	}
	return out, nil
}

func (f *fakeStore) CreateSequence(_ context.Context, seq sequence.Sequence) error {
	f.sequences[seq.Prefix] = &seq
	return nil
}

func (f *fakeStore) UpdateSequence(_ context.Context, prefix, description string, endValue int64, expiresAt time.Time) error {
	seq, ok := f.sequences[prefix]
	if !ok {
		return pgx.ErrNoRows
	}
	seq.Description = description
	seq.EndValue = endValue
	seq.ExpiresAt = expiresAt
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func allocate(t *testing.T, h *FiscalHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/internal/v1/ncf/allocate", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Allocate(rec, req)
	return rec
}

func TestAllocateExhaustsSequence(t *testing.T) {
	store := newFakeStore()
	store.sequences["B02"] = &sequence.Sequence{
		Prefix:       "B02",
		CurrentValue: 99,
		EndValue:     100,
		ExpiresAt:    time.Now().UTC().AddDate(1, 0, 0),
	}
	h := NewFiscalHandler(store, testLogger())

	rec := allocate(t, h, `{"prefix":"B02","client_name":"Juan Pérez","amount_cents":250000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first allocate: status %d, body %s", rec.Code, rec.Body.String())
	}
	var ncf string
	if err := json.Unmarshal(rec.Body.Bytes(), &ncf); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if ncf != "B0200000100" {
		t.Fatalf("ncf = %q, want B0200000100", ncf)
	}
	if store.sequences["B02"].CurrentValue != 100 {
		t.Fatalf("current_value = %d, want 100", store.sequences["B02"].CurrentValue)
	}
	if len(store.issuances) != 1 || store.issuances[0].NCF != "B0200000100" {
		t.Fatalf("issuance log = %+v", store.issuances)
	}

	rec = allocate(t, h, `{"prefix":"B02"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("second allocate: status %d, want 409", rec.Code)
	}
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload.Code != "sequence_exhausted" {
		t.Fatalf("code = %q, want sequence_exhausted", payload.Code)
	}
}

func TestAllocateErrorClassification(t *testing.T) {
	store := newFakeStore()
	store.sequences["B01"] = &sequence.Sequence{
		Prefix:       "B01",
		CurrentValue: 10,
		EndValue:     100,
		ExpiresAt:    time.Now().UTC().AddDate(0, 0, -2),
	}
	h := NewFiscalHandler(store, testLogger())

	cases := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"expired", `{"prefix":"B01"}`, http.StatusConflict, "sequence_expired"},
		{"missing", `{"prefix":"B14"}`, http.StatusNotFound, "no_active_sequence"},
		{"bad prefix", `{"prefix":"XYZ9"}`, http.StatusBadRequest, "bad_request"},
	}
	for _, c := range cases {
		rec := allocate(t, h, c.body)
		if rec.Code != c.wantStatus {
			t.Fatalf("%s: status %d, want %d", c.name, rec.Code, c.wantStatus)
		}
		var payload struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("%s: decode: %v", c.name, err)
		}
		if payload.Code != c.wantCode {
			t.Fatalf("%s: code %q, want %q", c.name, payload.Code, c.wantCode)
		}
	}
}

func TestAllocateSurvivesIssuanceLogFailure(t *testing.T) {
	store := newFakeStore()
	store.sequences["E32"] = &sequence.Sequence{
		Prefix:       "E32",
		CurrentValue: 0,
		EndValue:     50,
		ExpiresAt:    time.Now().UTC().AddDate(1, 0, 0),
	}
	store.issuanceErr = context.DeadlineExceeded
	h := NewFiscalHandler(store, testLogger())

	rec := allocate(t, h, `{"prefix":"E32"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, want 200 despite failed audit insert", rec.Code)
	}
	var ncf string
	if err := json.Unmarshal(rec.Body.Bytes(), &ncf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ncf != "E3200000001" {
		t.Fatalf("ncf = %q, want E3200000001", ncf)
	}
}

func TestCreateAndUpdateSequence(t *testing.T) {
	store := newFakeStore()
	h := NewFiscalHandler(store, testLogger())

	body := `{"prefix":"b02","description":"Consumo","start_value":0,"end_value":500,"expires_at":"2027-12-31"}`
	req := httptest.NewRequest(http.MethodPost, "/internal/v1/ncf/sequences", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.Sequences(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rec.Code, rec.Body.String())
	}
	var created sequenceView
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Prefix != "B02" || created.Remaining != 500 || created.Status != "active" {
		t.Fatalf("created view = %+v", created)
	}

	update := `{"description":"Consumo ampliado","end_value":1000,"expires_at":"2028-12-31"}`
	req = httptest.NewRequest(http.MethodPut, "/internal/v1/ncf/sequences/B02", bytes.NewBufferString(update))
	req.SetPathValue("prefix", "B02")
	rec = httptest.NewRecorder()
	h.Sequence(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d, body %s", rec.Code, rec.Body.String())
	}
	if store.sequences["B02"].EndValue != 1000 {
		t.Fatalf("end_value = %d, want 1000", store.sequences["B02"].EndValue)
	}

	req = httptest.NewRequest(http.MethodPut, "/internal/v1/ncf/sequences/B99", bytes.NewBufferString(update))
	req.SetPathValue("prefix", "B99")
	rec = httptest.NewRecorder()
	h.Sequence(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update missing: status %d, want 404", rec.Code)
	}
}
