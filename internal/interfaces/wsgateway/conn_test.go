package wsgateway

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"rehearsal-api/internal/domain/session"
	"rehearsal-api/internal/domain/song"
)

func TestCommandErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "forbidden", err: session.ErrForbidden, want: "Admin privileges required"},
		{name: "session not found", err: session.ErrNotFound, want: "Session not found"},
		{name: "inactive", err: session.ErrInactive, want: "Session is not active"},
		{name: "song not found", err: song.ErrNotFound, want: "Song not found"},
		{name: "version conflict", err: session.ErrVersionConflict, want: "Conflicting update, please retry"},
		{name: "store unavailable", err: session.ErrStoreUnavailable, want: "Temporary storage failure, please retry"},
		{name: "wrapped store failure", err: fmt.Errorf("%w: dial tcp", session.ErrStoreUnavailable), want: "Temporary storage failure, please retry"},
		{name: "timeout", err: context.DeadlineExceeded, want: "Command timed out"},
		{name: "unknown", err: errors.New("boom"), want: "Internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commandErrorMessage(tt.err); got != tt.want {
				t.Errorf("commandErrorMessage(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "empty", header: "", want: ""},
		{name: "bearer", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "wrong scheme", header: "Basic abc", want: ""},
		{name: "scheme only", header: "Bearer", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bearerToken(tt.header); got != tt.want {
				t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
