package handlers

import (
	"testing"

	"github.com/santanalegal/lexcita/libs/auth"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := hashPassword("correcto-horse-bateria")
	if err != nil {
		t.Fatalf("hashPassword: %v", err)
	}
	if hash == "correcto-horse-bateria" {
		t.Fatal("hash equals plaintext")
	}
	if err := verifyPassword(hash, "correcto-horse-bateria"); err != nil {
		t.Fatalf("verifyPassword: %v", err)
	}
	if err := verifyPassword(hash, "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestLoginTokenCarriesRole(t *testing.T) {
	token, err := auth.SignHS256(auth.Claims{
		Sub:   "user-1",
		Email: "admin@santanalegal.com.do",
		Role:  "admin",
		Iat:   1,
		Exp:   1<<31 - 1,
	}, "test-secret")
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	claims, err := auth.ParseAndVerifyHS256(token, "test-secret")
	if err != nil {
		t.Fatalf("ParseAndVerifyHS256: %v", err)
	}
	if claims.Role != "admin" || claims.Email != "admin@santanalegal.com.do" {
		t.Fatalf("claims = %+v", claims)
	}
}
