package handlers

import (
	"testing"
)

func TestSlugPattern(t *testing.T) {
	valid := []string{"derecho-laboral", "divorcio", "visa-de-trabajo-2026"}
	for _, s := range valid {
		if !slugPattern.MatchString(s) {
			t.Fatalf("slug %q rejected", s)
		}
	}
	invalid := []string{"", "Derecho", "doble--guion", "-inicio", "fin-", "con espacio", "acentó"}
	for _, s := range invalid {
		if slugPattern.MatchString(s) {
			t.Fatalf("slug %q accepted", s)
		}
	}
}
