package store

import (
	"context"
	"testing"

	"github.com/dukerupert/academy/internal/model"
)

func TestUserCreateDefaults(t *testing.T) {
	us := NewUserStore(openTestDB(t))
	ctx := context.Background()

	u, err := us.Create(ctx, "", " Alice@Example.com ", "Alice", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == "" {
		t.Error("expected generated id")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want normalized address", u.Email)
	}
	if u.Role != model.RoleStudent {
		t.Errorf("role = %q, want %q", u.Role, model.RoleStudent)
	}
}

func TestUserGetByEmail(t *testing.T) {
	us := NewUserStore(openTestDB(t))
	ctx := context.Background()

	created, _ := us.Create(ctx, "uid-1", "bob@example.com", "Bob", model.RoleAdmin)

	u, err := us.GetByEmail(ctx, "BOB@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("got %+v, want user %q", u, created.ID)
	}
	if !u.IsAdmin() {
		t.Error("expected admin")
	}
}

func TestUserGetMissing(t *testing.T) {
	us := NewUserStore(openTestDB(t))

	u, err := us.GetByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil, got %+v", u)
	}
}

func TestUserSetRoleAndPassword(t *testing.T) {
	us := NewUserStore(openTestDB(t))
	ctx := context.Background()

	u, _ := us.Create(ctx, "", "carol@example.com", "Carol", "")
	if err := us.SetRole(ctx, u.ID, model.RoleAdmin); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if err := us.SetPasswordHash(ctx, u.ID, "hash"); err != nil {
		t.Fatalf("set password: %v", err)
	}

	got, _ := us.GetByID(ctx, u.ID)
	if got.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", got.Role)
	}
	if got.PasswordHash != "hash" {
		t.Errorf("password hash = %q, want %q", got.PasswordHash, "hash")
	}
}
