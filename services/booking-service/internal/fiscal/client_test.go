package fiscal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Allocate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/internal/v1/ncf/allocate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req allocateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Prefix != "B02" {
			t.Fatalf("unexpected prefix %q", req.Prefix)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode("B0200000100")
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ncf, err := client.Allocate(ctx, "B02", AllocationDetails{ClientName: "Ana", AmountCents: 500000})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if ncf != "B0200000100" {
		t.Fatalf("unexpected ncf %q", ncf)
	}
}

func TestClient_AllocateErrorMapping(t *testing.T) {
	cases := []struct {
		code   string
		status int
		want   error
	}{
		{"sequence_exhausted", http.StatusConflict, ErrSequenceExhausted},
		{"sequence_expired", http.StatusConflict, ErrSequenceExpired},
		{"no_active_sequence", http.StatusNotFound, ErrNoActiveSequence},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(allocateError{Error: "no", Code: tc.code})
		}))

		client := NewClient(srv.URL)
		_, err := client.Allocate(context.Background(), "B02", AllocationDetails{})
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %s: got %v, want %v", tc.code, err, tc.want)
		}
	}
}

func TestPrefixFor(t *testing.T) {
	cases := []struct {
		rnc        string
		electronic bool
		want       string
	}{
		{"", false, "B02"},
		{"", true, "E32"},
		{"131246813", false, "B01"},
		{"131246813", true, "E31"},
		{"   ", false, "B02"},
	}
	for _, tc := range cases {
		if got := PrefixFor(tc.rnc, tc.electronic); got != tc.want {
			t.Fatalf("PrefixFor(%q, %v) = %q, want %q", tc.rnc, tc.electronic, got, tc.want)
		}
	}
}
