package session

import (
	"encoding/json"
	"time"
)

// Outbound event types. Events are encoded once by the coordinator and
// fanned out as raw frames so every recipient observes identical bytes
// in commit order.
const (
	EventSessionState = "session_state"
	EventUserJoined   = "user_joined"
	EventUserLeft     = "user_left"
	EventSongSelected = "song_selected"
	EventSongQuit     = "song_quit"
	EventSessionEnded = "session_ended"
	EventError        = "error"
)

// MemberView is the presence payload broadcast for join/leave events.
type MemberView struct {
	DisplayName string `json:"display_name"`
	Instrument  string `json:"instrument,omitempty"`
}

// SongView carries the display metadata for the active song.
type SongView struct {
	SongID   string `json:"song_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Language string `json:"language"`
}

// StateEvent is the snapshot sent to a joining connection only.
type StateEvent struct {
	Type       string       `json:"type"`
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Admin      string       `json:"admin"`
	ActiveSong *SongView    `json:"active_song,omitempty"`
	Members    []MemberView `json:"members"`
}

// UserJoinedEvent is broadcast to the other members of the room.
type UserJoinedEvent struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
	Instrument  string `json:"instrument,omitempty"`
}

// UserLeftEvent is broadcast to the remaining members of the room.
type UserLeftEvent struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
}

// SongSelectedEvent is broadcast to the whole room.
type SongSelectedEvent struct {
	Type     string `json:"type"`
	SongID   string `json:"song_id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Language string `json:"language"`
}

// SongQuitEvent is broadcast to the whole room.
type SongQuitEvent struct {
	Type string `json:"type"`
}

// SessionEndedEvent is broadcast to the whole room.
type SessionEndedEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	EndedAt   time.Time `json:"ended_at"`
}

// ErrorEvent goes to the originating connection only.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// EncodeEvent marshals an event to its wire frame.
func EncodeEvent(v any) ([]byte, error) {
	return json.Marshal(v)
}
