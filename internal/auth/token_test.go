package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestTokenRoundtrip(t *testing.T) {
	token, err := GenerateToken("secret", "emp1", "carlos.mendez@condor.cl", "Carlos Méndez")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := VerifyToken("secret", token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.UserID != "emp1" {
		t.Errorf("UserID = %q", claims.UserID)
	}
	if claims.Email != "carlos.mendez@condor.cl" {
		t.Errorf("Email = %q", claims.Email)
	}
	if claims.Nombre != "Carlos Méndez" {
		t.Errorf("Nombre = %q", claims.Nombre)
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl < TokenTTL-time.Minute || ttl > TokenTTL {
		t.Errorf("token TTL = %v, want about %v", ttl, TokenTTL)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken("secret", "emp1", "a@b.cl", "A")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyToken("other-secret", token); err == nil {
		t.Error("token signed with a different secret should be rejected")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	claims := Claims{
		UserID: "emp1",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * TokenTTL)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := VerifyToken("secret", token); err == nil {
		t.Error("expired token should be rejected")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	if _, err := VerifyToken("secret", "not.a.token"); err == nil {
		t.Error("garbage token should be rejected")
	}
}
