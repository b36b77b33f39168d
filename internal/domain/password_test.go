package domain

import (
	"strings"
	"testing"
)

func TestValidatePassword(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		password  string
		wantError bool
	}{
		{name: "valid", password: "StrongPass123", wantError: false},
		{name: "too short", password: "Ab1", wantError: true},
		{name: "no upper", password: "weakpass123", wantError: true},
		{name: "no lower", password: "WEAKPASS123", wantError: true},
		{name: "no digit", password: "WeakPassword", wantError: true},
		{name: "too long", password: "Aa1" + strings.Repeat("x", 130), wantError: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePassword(tc.password)
			if tc.wantError && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantError && err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
		})
	}
}
