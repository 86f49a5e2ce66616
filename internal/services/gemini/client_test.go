package gemini

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"librarian/internal/services"
)

func TestCompleteJSONReturnsContent(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	if c.Model() != DefaultModel {
		t.Fatalf("model = %q", c.Model())
	}
	var gotSystem string
	c.WithGenerator(func(_ context.Context, system, user string) (string, error) {
		gotSystem = system
		return "  {\"title\":\"Dune\"}\n", nil
	})
	content, err := c.CompleteJSON(context.Background(), " identify ", "evidence")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"title":"Dune"}` || gotSystem != "identify" {
		t.Fatalf("content=%q system=%q", content, gotSystem)
	}
}

func TestCompleteJSONClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"quota", status.Error(codes.ResourceExhausted, "quota"), services.ErrRateLimited},
		{"unavailable", status.Error(codes.Unavailable, "down"), services.ErrTransient},
		{"invalid", status.Error(codes.InvalidArgument, "bad"), services.ErrExternalTool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(Config{APIKey: "k"})
			c.WithGenerator(func(context.Context, string, string) (string, error) { return "", tt.err })
			_, err := c.CompleteJSON(context.Background(), "s", "u")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCompleteJSONEmptyIsTransient(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	c.WithGenerator(func(context.Context, string, string) (string, error) { return "", nil })
	if _, err := c.CompleteJSON(context.Background(), "s", "u"); !services.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestCompleteJSONWithoutKey(t *testing.T) {
	c := NewClient(Config{})
	if _, err := c.CompleteJSON(context.Background(), "s", "u"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
