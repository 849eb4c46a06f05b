package utils

import (
	"testing"
)

func TestJwtGenerateAndValidate(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "1")

	token, err := JwtGenerate(42, "admin")
	if err != nil {
		t.Fatalf("JwtGenerate error: %v", err)
	}

	parsed, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate error: %v", err)
	}
	if !parsed.Valid {
		t.Fatalf("expected token to be valid")
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if claims.ID != 42 || claims.Role != "admin" {
		t.Fatalf("claims = {id:%d role:%q}, want {id:42 role:\"admin\"}", claims.ID, claims.Role)
	}
}

func TestJwtValidateRejectsTampering(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "1")

	token, err := JwtGenerate(7, "viewer")
	if err != nil {
		t.Fatalf("JwtGenerate error: %v", err)
	}

	if _, err := JwtValidate(token + "x"); err == nil {
		t.Fatalf("expected tampered token to fail validation")
	}

	if _, err := JwtValidate("not-a-jwt"); err == nil {
		t.Fatalf("expected malformed token to fail validation")
	}
}
