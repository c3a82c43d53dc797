package store

import (
	"context"
	"testing"
	"time"

	"user-auth-service/internal/verification/domain"
)

func TestMemoryStore_PutReplacesAndGetCopies(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := &domain.Code{Identity: "+15550001111", Channel: domain.ChannelSMS, Value: "111111", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	if err := s.Put(ctx, first); err != nil {
		t.Fatalf("Put: %v", err)
	}
	second := &domain.Code{Identity: "+15550001111", Channel: domain.ChannelSMS, Value: "222222", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	if err := s.Put(ctx, second); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "+15550001111")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Value != "222222" {
		t.Errorf("Get value = %q, want the replacing code", got.Value)
	}

	got.Value = "mutated"
	again, _ := s.Get(ctx, "+15550001111")
	if again.Value != "222222" {
		t.Error("Get returned shared state, want a copy")
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore(nil)
	got, err := s.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("Get missing = %+v, want nil", got)
	}
}

func TestMemoryStore_IncrementAttempt(t *testing.T) {
	s := NewMemoryStore(nil)
	ctx := context.Background()

	_ = s.Put(ctx, &domain.Code{Identity: "a@example.com", Channel: domain.ChannelEmail, Value: "123456"})
	for want := 1; want <= 3; want++ {
		n, err := s.IncrementAttempt(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("IncrementAttempt: %v", err)
		}
		if n != want {
			t.Errorf("IncrementAttempt = %d, want %d", n, want)
		}
	}
}

func TestMemoryStore_VerifiedMarker(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	if err := s.MarkVerified(ctx, "+15550001111", 30*time.Minute); err != nil {
		t.Fatalf("MarkVerified: %v", err)
	}

	ok, err := s.IsVerified(ctx, "+15550001111", false)
	if err != nil || !ok {
		t.Fatalf("IsVerified peek = %v, %v, want true", ok, err)
	}
	// Peek does not consume.
	if ok, _ := s.IsVerified(ctx, "+15550001111", true); !ok {
		t.Fatal("IsVerified consume = false, want true")
	}
	// Consume removes the marker.
	if ok, _ := s.IsVerified(ctx, "+15550001111", false); ok {
		t.Error("marker survived consume")
	}
}

func TestMemoryStore_VerifiedMarkerExpires(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	_ = s.MarkVerified(ctx, "a@example.com", 30*time.Minute)
	now = now.Add(30 * time.Minute)

	if ok, _ := s.IsVerified(ctx, "a@example.com", false); ok {
		t.Error("IsVerified after TTL = true, want false")
	}
}
