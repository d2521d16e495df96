package auth

import (
	"testing"
	"time"
)

func TestJWT_RoundTripCarriesUserType(t *testing.T) {
	token, err := SignJWT(42, UserTypeElevated, "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("expected uid 42, got %d", claims.UserID)
	}
	if claims.UserType != UserTypeElevated {
		t.Fatalf("expected elevated classification, got %q", claims.UserType)
	}
}

func TestJWT_WrongSecretRejected(t *testing.T) {
	token, err := SignJWT(1, UserTypeStandard, "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(token, "other"); err == nil {
		t.Fatalf("expected rejection with wrong secret")
	}
}

func TestJWT_ExpiredRejected(t *testing.T) {
	token, err := SignJWT(1, UserTypeStandard, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(token, "secret"); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestParseUserType_DefaultsToStandard(t *testing.T) {
	if got := ParseUserType("elevated"); got != UserTypeElevated {
		t.Fatalf("expected elevated, got %q", got)
	}
	for _, s := range []string{"", "standard", "admin", "premium"} {
		if s == "elevated" {
			continue
		}
		if got := ParseUserType(s); got != UserTypeStandard {
			t.Fatalf("expected %q to map to standard, got %q", s, got)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatalf("expected password to verify")
	}
	if CheckPassword(hash, "hunter3") {
		t.Fatalf("expected wrong password to fail")
	}
}
