package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"rehearsal-api/internal/config"
	"rehearsal-api/internal/domain/principal"
)

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newDisabledResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(context.Background(), &config.Config{AuthEnabled: false}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return r
}

func TestResolveClaimsMapping(t *testing.T) {
	r := newDisabledResolver(t)

	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   principal.Principal
	}{
		{
			name: "full claims",
			claims: jwt.MapClaims{
				"sub":        "user-1",
				"name":       "Ana",
				"instrument": "guitar",
			},
			want: principal.Principal{UserID: "user-1", DisplayName: "Ana", Instrument: "guitar"},
		},
		{
			name: "preferred_username fallback",
			claims: jwt.MapClaims{
				"sub":                "user-1",
				"preferred_username": "ana.b",
			},
			want: principal.Principal{UserID: "user-1", DisplayName: "ana.b"},
		},
		{
			name:   "sub fallback for display name",
			claims: jwt.MapClaims{"sub": "user-1"},
			want:   principal.Principal{UserID: "user-1", DisplayName: "user-1"},
		},
		{
			name: "explicit admin claim",
			claims: jwt.MapClaims{
				"sub":   "user-1",
				"name":  "Ana",
				"admin": true,
			},
			want: principal.Principal{UserID: "user-1", DisplayName: "Ana", IsAdmin: true},
		},
		{
			name: "realm role grants admin",
			claims: jwt.MapClaims{
				"sub":  "user-1",
				"name": "Ana",
				"realm_access": map[string]any{
					"roles": []any{"uma_authorization", adminRole},
				},
			},
			want: principal.Principal{UserID: "user-1", DisplayName: "Ana", IsAdmin: true},
		},
		{
			name: "other realm roles do not grant admin",
			claims: jwt.MapClaims{
				"sub":  "user-1",
				"name": "Ana",
				"realm_access": map[string]any{
					"roles": []any{"uma_authorization"},
				},
			},
			want: principal.Principal{UserID: "user-1", DisplayName: "Ana"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), signToken(t, tt.claims))
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if *got != tt.want {
				t.Errorf("principal = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestResolveRejectsBadTokens(t *testing.T) {
	r := newDisabledResolver(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "whitespace token", token: "   "},
		{name: "garbage token", token: "not-a-jwt"},
		{name: "missing sub", token: signToken(t, jwt.MapClaims{"name": "Ana"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.token)
			if !errors.Is(err, principal.ErrUnauthenticated) {
				t.Fatalf("error = %v, want %v", err, principal.ErrUnauthenticated)
			}
		})
	}
}

func TestCheckAudience(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		wantErr bool
	}{
		{name: "string match", claims: jwt.MapClaims{"aud": "rehearsal"}},
		{name: "string mismatch", claims: jwt.MapClaims{"aud": "other"}, wantErr: true},
		{name: "list match", claims: jwt.MapClaims{"aud": []any{"other", "rehearsal"}}},
		{name: "list mismatch", claims: jwt.MapClaims{"aud": []any{"other"}}, wantErr: true},
		{name: "missing", claims: jwt.MapClaims{}, wantErr: true},
		{name: "unsupported type", claims: jwt.MapClaims{"aud": 42}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkAudience(tt.claims, "rehearsal")
			if (err != nil) != tt.wantErr {
				t.Fatalf("checkAudience = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
