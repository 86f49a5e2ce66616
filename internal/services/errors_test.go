package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"librarian/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "audio", "transcribe", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"audio", "transcribe", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestRateLimitedIsTransient(t *testing.T) {
	err := services.Wrap(services.ErrRateLimited, "api", "audnexus", "http 429", nil)
	if !services.IsTransient(err) {
		t.Fatalf("expected rate limit to be transient: %v", err)
	}
	if got := services.ReasonFor(err); got != "rate_limited" {
		t.Fatalf("expected rate_limited reason, got %q", got)
	}
}

func TestReasonForTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrConflict, "safety", "classify", "occupied", nil), "conflict"},
		{fmt.Errorf("build: %w", services.ErrUnsafePath), "unsafe_path"},
		{services.ErrIdentificationExhausted, "unidentified"},
		{services.Wrap(services.ErrTimeout, "api", "lookup", "", nil), "transient_failure"},
		{errors.New("other"), "error"},
	}
	for _, tc := range cases {
		if got := services.ReasonFor(tc.err); got != tc.want {
			t.Errorf("ReasonFor(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
