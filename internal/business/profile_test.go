package business

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testProfile() Profile {
	return Profile{
		Name:     "Studio",
		Tag:      "agency",
		Services: []string{"SEO", "Branding"},
		Hours:    DefaultPolicy("UTC"),
	}
}

func TestStoreReturnsSeedUntilSaved(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(client, testProfile())
	ctx := context.Background()

	p, err := store.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Studio" {
		t.Fatalf("expected seed profile, got %q", p.Name)
	}

	p.Name = "Renamed"
	p.Hours.SetDay(time.Sunday, &DayHours{Open: "10:00", Close: "12:00"})
	if err := store.Set(ctx, p); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Renamed" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Hours.ForDay(time.Sunday) == nil {
		t.Error("expected Sunday hours after save")
	}
}

func TestStoreRejectsInvalidPolicy(t *testing.T) {
	mr := miniredis.RunT(t)
	store := NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), testProfile())

	p := testProfile()
	p.Hours.Timezone = ""
	if err := store.Set(context.Background(), &p); err == nil {
		t.Fatal("expected validation error")
	}
	if mr.Exists(profileKey) {
		t.Fatal("invalid profile should not be persisted")
	}
}

func TestHasService(t *testing.T) {
	p := testProfile()
	if !p.HasService(" seo ") {
		t.Error("expected case-insensitive match")
	}
	if p.HasService("Hosting") {
		t.Error("unexpected match")
	}
}

func TestMemoryStoreCopies(t *testing.T) {
	store := NewMemoryStore(testProfile())
	p, _ := store.Get(context.Background())
	p.Name = "mutated"
	again, _ := store.Get(context.Background())
	if again.Name != "Studio" {
		t.Fatalf("memory store leaked mutation: %q", again.Name)
	}
}
