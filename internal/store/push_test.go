package store

import (
	"context"
	"testing"
)

func TestPushSubscriptionLifecycle(t *testing.T) {
	db := openTestDB(t)
	us, ps := NewUserStore(db), NewPushStore(db)
	ctx := context.Background()

	u, _ := us.Create(ctx, "", "alice@example.com", "Alice", "")

	sub, err := ps.CreateSubscription(ctx, u.ID, "https://push.example/1", "p256", "auth", "Laptop")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub == nil || sub.ID == 0 {
		t.Fatalf("expected stored subscription, got %+v", sub)
	}

	// Same endpoint again updates keys instead of duplicating.
	again, err := ps.CreateSubscription(ctx, u.ID, "https://push.example/1", "p256-new", "auth-new", "Laptop")
	if err != nil {
		t.Fatalf("re-create subscription: %v", err)
	}
	if again.ID != sub.ID {
		t.Errorf("id = %d, want %d", again.ID, sub.ID)
	}
	if again.P256dhKey != "p256-new" {
		t.Errorf("p256dh = %q, want updated key", again.P256dhKey)
	}

	subs, err := ps.ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}

	if err := ps.DeleteByEndpoint(ctx, "https://push.example/1"); err != nil {
		t.Fatalf("delete by endpoint: %v", err)
	}
	subs, _ = ps.ListByUser(ctx, u.ID)
	if len(subs) != 0 {
		t.Errorf("expected no subscriptions after delete, got %d", len(subs))
	}
}

func TestPushSubscriptionScopedToUser(t *testing.T) {
	db := openTestDB(t)
	us, ps := NewUserStore(db), NewPushStore(db)
	ctx := context.Background()

	alice, _ := us.Create(ctx, "", "alice@example.com", "Alice", "")
	bob, _ := us.Create(ctx, "", "bob@example.com", "Bob", "")
	sub, _ := ps.CreateSubscription(ctx, alice.ID, "https://push.example/a", "k", "a", "")

	got, err := ps.GetByID(ctx, sub.ID, bob.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("bob should not see alice's subscription")
	}

	if err := ps.DeleteSubscription(ctx, sub.ID, bob.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := ps.GetByID(ctx, sub.ID, alice.ID); got == nil {
		t.Error("delete by another user must not remove the subscription")
	}
}
