package session

import (
	"testing"
	"time"
)

func TestUpsertMember(t *testing.T) {
	rec := &Record{ID: "sess-1"}

	prev, rejoined := rec.upsertMember(MemberEntry{UserID: "u1", DisplayName: "Ana", ConnectionID: "c1"})
	if prev != "" || rejoined {
		t.Fatalf("first upsert = (%q, %v), want (\"\", false)", prev, rejoined)
	}

	prev, rejoined = rec.upsertMember(MemberEntry{UserID: "u1", DisplayName: "Ana", ConnectionID: "c2"})
	if prev != "c1" || !rejoined {
		t.Fatalf("rejoin upsert = (%q, %v), want (\"c1\", true)", prev, rejoined)
	}
	if len(rec.Members) != 1 {
		t.Fatalf("members = %d, want 1 (no duplicate per user)", len(rec.Members))
	}
	if rec.Members[0].ConnectionID != "c2" {
		t.Errorf("connection = %s, want c2", rec.Members[0].ConnectionID)
	}
}

func TestRemoveMember(t *testing.T) {
	rec := &Record{Members: []MemberEntry{
		{UserID: "u1", DisplayName: "Ana"},
		{UserID: "u2", DisplayName: "Bram"},
	}}

	entry, ok := rec.removeMember("u1")
	if !ok || entry.DisplayName != "Ana" {
		t.Fatalf("removeMember = (%v, %v), want Ana", entry, ok)
	}
	if len(rec.Members) != 1 || rec.Members[0].UserID != "u2" {
		t.Errorf("remaining members = %v, want only u2", rec.Members)
	}

	if _, ok := rec.removeMember("u-missing"); ok {
		t.Error("removing an unknown user must report false")
	}
}

func TestRecordClone(t *testing.T) {
	ended := time.Now()
	rec := &Record{
		ID:      "sess-1",
		EndedAt: &ended,
		Members: []MemberEntry{{UserID: "u1", ConnectionID: "c1"}},
		Version: 3,
	}

	cp := rec.Clone()
	cp.Members[0].ConnectionID = "mutated"
	*cp.EndedAt = ended.Add(time.Hour)
	cp.Version = 99

	if rec.Members[0].ConnectionID != "c1" {
		t.Error("clone must not share the members slice")
	}
	if !rec.EndedAt.Equal(ended) {
		t.Error("clone must not share the ended_at pointer")
	}
	if rec.Version != 3 {
		t.Error("clone must not share scalar state")
	}
}
