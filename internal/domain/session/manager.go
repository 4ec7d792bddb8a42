package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rehearsal-api/internal/domain/principal"
	"rehearsal-api/internal/domain/rooms"
	"rehearsal-api/internal/domain/song"
)

// Manager routes commands to per-session coordinators, creating them
// lazily on first command and retiring them once their room empties.
// Different session ids proceed fully in parallel.
type Manager struct {
	store        Store
	catalog      song.Catalog
	registry     *rooms.Registry
	storeTimeout time.Duration
	log          zerolog.Logger
	now          func() time.Time

	mu     sync.Mutex
	coords map[string]*Coordinator
}

// NewManager creates a command router over the given collaborators.
func NewManager(
	store Store,
	catalog song.Catalog,
	registry *rooms.Registry,
	storeTimeout time.Duration,
	log zerolog.Logger,
) *Manager {
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Manager{
		store:        store,
		catalog:      catalog,
		registry:     registry,
		storeTimeout: storeTimeout,
		log:          log.With().Str("component", "session-manager").Logger(),
		now:          time.Now,
		coords:       make(map[string]*Coordinator),
	}
}

// Join admits a connection into a session room. The joining connection
// receives a session_state snapshot; other members receive user_joined
// unless this was a rejoin of an existing member.
func (m *Manager) Join(ctx context.Context, p principal.Principal, sessionID, connID string, sender rooms.Sender) error {
	return m.dispatch(ctx, sessionID, &command{
		kind:      cmdJoin,
		principal: p,
		connID:    connID,
		sender:    sender,
	})
}

// Leave removes a connection's membership, graceful or synthesized by
// the disconnect reconciler; both paths are identical.
func (m *Manager) Leave(ctx context.Context, p principal.Principal, sessionID, connID string) error {
	return m.dispatch(ctx, sessionID, &command{
		kind:      cmdLeave,
		principal: p,
		connID:    connID,
	})
}

// SelectSong sets the active song and broadcasts its display metadata.
func (m *Manager) SelectSong(ctx context.Context, p principal.Principal, sessionID, songID string) error {
	return m.dispatch(ctx, sessionID, &command{
		kind:      cmdSelectSong,
		principal: p,
		songID:    songID,
	})
}

// QuitSong clears the active song.
func (m *Manager) QuitSong(ctx context.Context, p principal.Principal, sessionID string) error {
	return m.dispatch(ctx, sessionID, &command{
		kind:      cmdQuitSong,
		principal: p,
	})
}

// EndSession deactivates the session and clears its room.
func (m *Manager) EndSession(ctx context.Context, p principal.Principal, sessionID string) error {
	return m.dispatch(ctx, sessionID, &command{
		kind:      cmdEndSession,
		principal: p,
	})
}

// Reconcile prunes membership entries older than grace whose connection
// is no longer live.
func (m *Manager) Reconcile(ctx context.Context, sessionID string, grace time.Duration) error {
	return m.dispatch(ctx, sessionID, &command{
		kind:  cmdReconcile,
		grace: grace,
	})
}

func (m *Manager) dispatch(ctx context.Context, sessionID string, cmd *command) error {
	if sessionID == "" {
		return ErrNotFound
	}
	cmd.reply = make(chan error, 1)

	for {
		c := m.coordinator(sessionID)
		accepted, err := c.submit(ctx, cmd)
		if err != nil {
			return err
		}
		if !accepted {
			// Lost the race with retirement; obtain a fresh coordinator.
			continue
		}

		select {
		case err := <-cmd.reply:
			return err
		case <-ctx.Done():
			// The in-flight durable write completes regardless; only
			// the caller stops observing the result.
			return ctx.Err()
		}
	}
}

func (m *Manager) coordinator(sessionID string) *Coordinator {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.coords[sessionID]; ok {
		return c
	}
	c := &Coordinator{
		sessionID: sessionID,
		inbox:     make(chan *command, inboxSize),
		mgr:       m,
		log:       m.log.With().Str("session_id", sessionID).Logger(),
	}
	m.coords[sessionID] = c
	go c.run()
	return c
}

// retire stops a coordinator whose room has emptied, unless commands
// are already queued or being submitted.
func (m *Manager) retire(c *Coordinator) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c.mu.Lock()
	if c.inflight > 0 || len(c.inbox) > 0 {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	delete(m.coords, c.sessionID)
	close(c.inbox)
}
