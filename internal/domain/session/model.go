// Package session implements the rehearsal session domain: the durable
// session record and the per-session coordinator that serializes all
// mutations to it.
package session

import "time"

// MemberEntry is one durable membership entry. A record holds at most
// one entry per user id; rejoining replaces the connection id instead
// of appending a duplicate.
type MemberEntry struct {
	UserID       string    `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	Instrument   string    `json:"instrument"`
	ConnectionID string    `json:"connection_id"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Record is the durable session state. The store is the system of
// record; the room registry is a volatile cache of live connections and
// may briefly lag behind Members during reconciliation.
type Record struct {
	ID         string        `json:"id"`
	OwnerID    string        `json:"owner_id"`
	Name       string        `json:"name"`
	ActiveSong string        `json:"active_song,omitempty"`
	Active     bool          `json:"active"`
	EndedAt    *time.Time    `json:"ended_at,omitempty"`
	Members    []MemberEntry `json:"members"`
	CreatedAt  time.Time     `json:"created_at"`

	// Version is bumped by every successful Save and checked against
	// the caller's expectation for optimistic concurrency.
	Version int64 `json:"version"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		cp.EndedAt = &t
	}
	if r.Members != nil {
		cp.Members = make([]MemberEntry, len(r.Members))
		copy(cp.Members, r.Members)
	}
	return &cp
}

// memberIndex returns the index of the entry for userID, or -1.
func (r *Record) memberIndex(userID string) int {
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			return i
		}
	}
	return -1
}

// upsertMember updates the connection id of an existing entry or
// appends a new one. It returns the replaced connection id (empty for
// first joins) and whether the user was already a member.
func (r *Record) upsertMember(entry MemberEntry) (previousConn string, rejoined bool) {
	if i := r.memberIndex(entry.UserID); i >= 0 {
		previousConn = r.Members[i].ConnectionID
		r.Members[i].ConnectionID = entry.ConnectionID
		return previousConn, true
	}
	r.Members = append(r.Members, entry)
	return "", false
}

// removeMember drops the entry for userID and reports whether one was
// removed.
func (r *Record) removeMember(userID string) (MemberEntry, bool) {
	i := r.memberIndex(userID)
	if i < 0 {
		return MemberEntry{}, false
	}
	entry := r.Members[i]
	r.Members = append(r.Members[:i], r.Members[i+1:]...)
	return entry, true
}
