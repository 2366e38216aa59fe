package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/santanalegal/lexcita/libs/auth"
)

func TestRequireRole(t *testing.T) {
	h := requireRole(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "admin", "staff")

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("X-Role", "client")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}

	reqOK := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqOK.Header.Set("X-Role", "staff")
	rwOK := httptest.NewRecorder()
	h.ServeHTTP(rwOK, reqOK)
	if rwOK.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rwOK.Code)
	}
}

func TestRequireAuthHS256(t *testing.T) {
	secret := "test-secret"
	claims := auth.Claims{
		Sub:   "user-1",
		Email: "staff@santanalegal.com.do",
		Role:  "staff",
		Iat:   time.Now().Unix(),
		Exp:   time.Now().Add(1 * time.Hour).Unix(),
	}
	token, err := auth.SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") != claims.Sub {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("X-User-Email") != claims.Email {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("X-Role") != claims.Role {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), secret)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	// Spoofed identity headers must be replaced with claim values.
	reqSpoof := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqSpoof.Header.Set("Authorization", "Bearer "+token)
	reqSpoof.Header.Set("X-Role", "admin")
	rwSpoof := httptest.NewRecorder()
	h.ServeHTTP(rwSpoof, reqSpoof)
	if rwSpoof.Code != http.StatusOK {
		t.Fatalf("expected 200 with spoofed header replaced, got %d", rwSpoof.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}
}

func TestPublicReadsSplitsByMethod(t *testing.T) {
	read := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	write := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	h := publicReads(read, write)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/lawyers", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("GET: expected 200, got %d", rw.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/lawyers", nil)
	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusUnauthorized {
		t.Fatalf("POST: expected write handler, got %d", rw.Code)
	}
}

func TestRewritePrefix(t *testing.T) {
	var got string
	h := rewritePrefix("/api/v1/ncf", "/internal/v1/ncf", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/ncf/sequences/B02", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if got != "/internal/v1/ncf/sequences/B02" {
		t.Fatalf("rewritten path = %q", got)
	}
}
