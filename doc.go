// Package rehearsalapi implements the rehearsal-api service which coordinates
// shared "now playing" state for live rehearsal sessions.
//
// The service provides:
//   - An authenticated WebSocket channel per musician
//   - Room-scoped presence tracking over live connections
//   - A per-session coordinator serializing join/leave/song transitions
//   - Optimistic-concurrency persistence of session records
//   - JWT authentication via a JWKS endpoint
//
// For more information, see the README.md file.
package rehearsalapi
