package dispatch

import (
	"errors"
	"testing"

	"github.com/lorekeep/lorekeep/internal/domain"
)

func TestValidateUnknownType(t *testing.T) {
	err := validatePayload("mine-bitcoin", map[string]any{})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestValidateTextGeneration(t *testing.T) {
	cases := []struct {
		name    string
		payload map[string]any
		wantErr bool
	}{
		{"valid", map[string]any{"prompt": "write a summary"}, false},
		{"valid with model", map[string]any{"prompt": "hi", "model": "gpt-4o"}, false},
		{"missing prompt", map[string]any{}, true},
		{"empty prompt", map[string]any{"prompt": ""}, true},
		{"prompt wrong type", map[string]any{"prompt": 42}, true},
		{"model wrong type", map[string]any{"prompt": "hi", "model": 1}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validatePayload(domain.TypeTextGeneration, tc.payload)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateVideoIngest(t *testing.T) {
	if err := validatePayload(domain.TypeVideoIngest, map[string]any{
		"source_url": "https://cdn.example.com/recording.mp4",
	}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	for _, bad := range []any{"ftp://host/file", "not a url at all", ""} {
		err := validatePayload(domain.TypeVideoIngest, map[string]any{"source_url": bad})
		if err == nil {
			t.Errorf("source_url %q accepted", bad)
		}
	}
}

func TestValidateIndexRefresh(t *testing.T) {
	if err := validatePayload(domain.TypeIndexRefresh, map[string]any{
		"collection_id": "col-1",
	}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validatePayload(domain.TypeIndexRefresh, map[string]any{}); err == nil {
		t.Error("missing collection_id accepted")
	}
}
