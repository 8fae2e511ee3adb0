package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name      string
		provided  string
		config    string
		wantValid bool
	}{
		{"matching keys", "secret-key", "secret-key", true},
		{"mismatched keys", "wrong-key", "secret-key", false},
		{"empty provided key", "", "secret-key", false},
		{"empty config key", "secret-key", "", false},
		{"both empty", "", "", false},
		{"length mismatch", "short", "much-longer-key", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateAPIKey(tt.provided, tt.config); got != tt.wantValid {
				t.Fatalf("ValidateAPIKey(%q, %q) = %v, want %v", tt.provided, tt.config, got, tt.wantValid)
			}
		})
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		wantKey string
		wantErr bool
	}{
		{"valid bearer", "Bearer my-key", "my-key", false},
		{"trims whitespace", "Bearer   my-key  ", "my-key", false},
		{"missing header", "", "", true},
		{"wrong scheme", "Basic my-key", "", true},
		{"bearer with no key", "Bearer ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			key, err := ExtractAPIKey(req)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got key %q", key)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if key != tt.wantKey {
				t.Fatalf("key = %q, want %q", key, tt.wantKey)
			}
		})
	}
}
