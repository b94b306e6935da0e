package models

import (
	"context"
	"errors"
	"testing"

	"github.com/abdoul9859/techplus/utils"
)

func TestAuthenticate(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, &NewUser{Username: "vendeur1", Password: "secret123", Role: RoleSeller}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	user, err := Authenticate(ctx, "vendeur1", "secret123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Role != RoleSeller {
		t.Fatalf("unexpected role %q", user.Role)
	}

	if _, err := Authenticate(ctx, "vendeur1", "wrong"); !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("wrong password must fail, got %v", err)
	}
	if _, err := Authenticate(ctx, "ghost", "secret123"); !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("unknown user must fail, got %v", err)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()

	input := &NewUser{Username: "admin", Password: "secret123"}
	if _, err := CreateUser(ctx, input); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateUser(ctx, input); !errors.Is(err, utils.ErrorConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}
