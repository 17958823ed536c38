package auth

import (
	"errors"
	"testing"
	"time"
)

func TestMintAndParse(t *testing.T) {
	m := NewMinter("shared-secret", time.Minute)

	token, err := m.Mint("user-123")
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if token == "" {
		t.Fatal("minted token is empty")
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("user id = %q, want user-123", claims.UserID)
	}
}

func TestExpiredToken(t *testing.T) {
	m := NewMinter("shared-secret", -time.Minute)

	token, err := m.Mint("u1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Parse(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestWrongSecret(t *testing.T) {
	m1 := NewMinter("secret1", time.Minute)
	m2 := NewMinter("secret2", time.Minute)

	token, _ := m1.Mint("u1")

	if _, err := m2.Parse(token); err == nil {
		t.Fatal("expected error for wrong secret, got nil")
	}
}
