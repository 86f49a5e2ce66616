package services_test

import (
	"context"
	"testing"

	"librarian/internal/services"
)

func TestContextTagsRoundTrip(t *testing.T) {
	ctx := services.WithRequestID(
		services.WithProvider(
			services.WithLayer(
				services.WithBookID(context.Background(), 42), "api"),
			"openlibrary"),
		"req-1")

	if id, ok := services.BookIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("book id = %d, %v", id, ok)
	}
	checks := map[string]func(context.Context) (string, bool){
		"api":         services.LayerFromContext,
		"openlibrary": services.ProviderFromContext,
		"req-1":       services.RequestIDFromContext,
	}
	for want, get := range checks {
		if got, ok := get(ctx); !ok || got != want {
			t.Fatalf("got %q (%v), want %q", got, ok, want)
		}
	}
}

func TestContextTagsTreatZeroAsAbsent(t *testing.T) {
	ctx := services.WithLayer(context.Background(), "")
	if _, ok := services.LayerFromContext(ctx); ok {
		t.Fatal("empty layer should not be recorded")
	}
	if _, ok := services.BookIDFromContext(services.WithBookID(ctx, 0)); ok {
		t.Fatal("zero book id should read as absent")
	}
	if _, ok := services.ProviderFromContext(context.Background()); ok {
		t.Fatal("untagged context should have no provider")
	}
}
