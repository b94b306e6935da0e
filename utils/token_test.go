package utils

import "testing"

func TestJwtGenerateAndValidate(t *testing.T) {
	token, err := JwtGenerate(42, "admin")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	parsed, err := JwtValidate(token)
	if err != nil || !parsed.Valid {
		t.Fatalf("validate: %v", err)
	}
	claim, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatal("unexpected claims type")
	}
	if claim.ID != 42 || claim.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claim)
	}
}

func TestJwtValidateGarbage(t *testing.T) {
	if _, err := JwtValidate("not-a-token"); err == nil {
		t.Fatal("garbage token must fail validation")
	}
}
