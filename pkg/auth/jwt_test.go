package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateJWT("op-1", "op@example.com", "admin", 15*time.Minute, secret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateJWT(token, secret)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.OperatorID != "op-1" || claims.Email != "op@example.com" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	token, err := GenerateJWT("op-1", "op@example.com", "admin", 15*time.Minute, []byte("secret-a"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ValidateJWT(token, []byte("secret-b")); !errors.Is(err, ErrInvalidJWT) {
		t.Fatalf("expected ErrInvalidJWT, got %v", err)
	}
}

func TestValidateJWTExpired(t *testing.T) {
	secret := []byte("test-secret")
	token, err := GenerateJWT("op-1", "op@example.com", "admin", -time.Minute, secret)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ValidateJWT(token, secret); !errors.Is(err, ErrExpiredJWT) {
		t.Fatalf("expected ErrExpiredJWT, got %v", err)
	}
}
