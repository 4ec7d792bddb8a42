package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rehearsal-api/internal/domain/principal"
	"rehearsal-api/internal/domain/rooms"
	"rehearsal-api/internal/domain/song"
	"rehearsal-api/internal/infrastructure/metrics"
)

// errNoChange signals that a mutation turned out to be a no-op; the
// commit is skipped and nothing is broadcast.
var errNoChange = errors.New("no state change")

type commandKind string

const (
	cmdJoin       commandKind = "join_session"
	cmdLeave      commandKind = "leave_session"
	cmdSelectSong commandKind = "select_song"
	cmdQuitSong   commandKind = "quit_song"
	cmdEndSession commandKind = "end_session"
	cmdReconcile  commandKind = "reconcile"
)

type command struct {
	kind      commandKind
	principal principal.Principal
	connID    string
	songID    string
	sender    rooms.Sender  // join only
	grace     time.Duration // reconcile only
	reply     chan error
}

// Coordinator is the single serialization point for one session's state.
// It owns an ordered inbox and processes commands sequentially, so two
// admins racing to select a song, or a join interleaved with session
// end, can never produce a lost update.
type Coordinator struct {
	sessionID string
	inbox     chan *command
	mgr       *Manager
	log       zerolog.Logger

	mu       sync.Mutex
	stopped  bool
	inflight int
}

const inboxSize = 64

func (c *Coordinator) run() {
	for cmd := range c.inbox {
		err := c.handle(cmd)

		outcome := "ok"
		if err != nil && !errors.Is(err, errNoChange) {
			outcome = "error"
		}
		metrics.RecordCommand(string(cmd.kind), outcome)

		if errors.Is(err, errNoChange) {
			err = nil
		}
		cmd.reply <- err

		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()

		if c.mgr.registry.Size(c.sessionID) == 0 {
			c.mgr.retire(c)
		}
	}
}

// submit queues a command. The boolean is false when the coordinator
// has been retired and the caller must obtain a fresh one.
func (c *Coordinator) submit(ctx context.Context, cmd *command) (bool, error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false, nil
	}
	c.inflight++
	c.mu.Unlock()

	select {
	case c.inbox <- cmd:
		return true, nil
	case <-ctx.Done():
		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
		return true, ctx.Err()
	}
}

func (c *Coordinator) handle(cmd *command) error {
	switch cmd.kind {
	case cmdJoin:
		return c.handleJoin(cmd)
	case cmdLeave:
		return c.handleLeave(cmd)
	case cmdSelectSong:
		return c.handleSelectSong(cmd)
	case cmdQuitSong:
		return c.handleQuitSong(cmd)
	case cmdEndSession:
		return c.handleEndSession(cmd)
	case cmdReconcile:
		return c.handleReconcile(cmd)
	default:
		return fmt.Errorf("unknown command %q", cmd.kind)
	}
}

// storeCtx bounds durable-store and catalog calls. It is detached from
// the issuing connection: a connection closing mid-command must not
// abort an in-flight durable write.
func (c *Coordinator) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.mgr.storeTimeout)
}

func (c *Coordinator) load(ctx context.Context) (*Record, error) {
	rec, err := c.mgr.store.Load(ctx, c.sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return rec, nil
}

// commit applies mutate as an atomic read-modify-write. A lost
// optimistic race is retried once against the freshly loaded record
// before the conflict surfaces.
func (c *Coordinator) commit(ctx context.Context, mutate func(*Record) error) (*Record, error) {
	for attempt := 0; ; attempt++ {
		rec, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		if err := mutate(rec); err != nil {
			return nil, err
		}

		saveErr := c.mgr.store.Save(ctx, rec, rec.Version)
		if saveErr == nil {
			return rec, nil
		}
		if errors.Is(saveErr, ErrVersionConflict) {
			if attempt == 0 {
				metrics.StoreConflictRetries.Inc()
				continue
			}
			return nil, saveErr
		}
		if errors.Is(saveErr, ErrNotFound) {
			return nil, saveErr
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, saveErr)
	}
}

func authorize(rec *Record, p principal.Principal) error {
	if !p.IsAdmin || p.UserID != rec.OwnerID {
		return ErrForbidden
	}
	return nil
}

func (c *Coordinator) handleJoin(cmd *command) error {
	ctx, cancel := c.storeCtx()
	defer cancel()

	var (
		prevConn string
		rejoined bool
	)
	rec, err := c.commit(ctx, func(rec *Record) error {
		if !rec.Active {
			return ErrInactive
		}
		prevConn, rejoined = rec.upsertMember(MemberEntry{
			UserID:       cmd.principal.UserID,
			DisplayName:  cmd.principal.DisplayName,
			Instrument:   cmd.principal.Instrument,
			ConnectionID: cmd.connID,
			JoinedAt:     c.mgr.now(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	// A stale connection from a previous socket of the same user is
	// silently replaced.
	if prevConn != "" && prevConn != cmd.connID {
		c.mgr.registry.Remove(c.sessionID, prevConn)
	}
	c.mgr.registry.Add(c.sessionID, cmd.connID, cmd.principal, cmd.sender)

	c.sendTo(cmd.sender, c.stateEvent(ctx, rec))
	if !rejoined {
		c.broadcast(UserJoinedEvent{
			Type:        EventUserJoined,
			DisplayName: cmd.principal.DisplayName,
			Instrument:  cmd.principal.Instrument,
		}, cmd.connID)
	}

	c.log.Info().
		Str("user_id", cmd.principal.UserID).
		Str("connection_id", cmd.connID).
		Bool("rejoin", rejoined).
		Msg("member joined")
	return nil
}

func (c *Coordinator) handleLeave(cmd *command) error {
	ctx, cancel := c.storeCtx()
	defer cancel()

	var removed MemberEntry
	_, err := c.commit(ctx, func(rec *Record) error {
		i := rec.memberIndex(cmd.principal.UserID)
		if i < 0 || rec.Members[i].ConnectionID != cmd.connID {
			// Either never durably joined, or the user already rejoined
			// from a newer socket; the newer membership must survive.
			return errNoChange
		}
		removed, _ = rec.removeMember(cmd.principal.UserID)
		return nil
	})

	// Presence is cleared even when the durable record is gone or the
	// membership entry was already superseded.
	c.mgr.registry.Remove(c.sessionID, cmd.connID)

	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errNoChange
		}
		return err
	}

	c.broadcast(UserLeftEvent{Type: EventUserLeft, DisplayName: removed.DisplayName})
	c.log.Info().
		Str("user_id", cmd.principal.UserID).
		Str("connection_id", cmd.connID).
		Msg("member left")
	return nil
}

func (c *Coordinator) handleSelectSong(cmd *command) error {
	ctx, cancel := c.storeCtx()
	defer cancel()

	rec, err := c.load(ctx)
	if err != nil {
		return err
	}
	if err := authorize(rec, cmd.principal); err != nil {
		return err
	}
	if !rec.Active {
		return ErrInactive
	}

	// Resolve first so activeSongRef only ever points at a song the
	// catalog could resolve at the time it was set.
	s, err := c.mgr.catalog.Resolve(ctx, cmd.songID)
	if err != nil {
		if errors.Is(err, song.ErrNotFound) {
			return err
		}
		return fmt.Errorf("resolve song %q: %w", cmd.songID, err)
	}

	_, err = c.commit(ctx, func(rec *Record) error {
		if err := authorize(rec, cmd.principal); err != nil {
			return err
		}
		if !rec.Active {
			return ErrInactive
		}
		rec.ActiveSong = s.ID
		return nil
	})
	if err != nil {
		return err
	}

	c.broadcast(SongSelectedEvent{
		Type:     EventSongSelected,
		SongID:   s.ID,
		Title:    s.Title,
		Artist:   s.Artist,
		Language: s.Language,
	})
	c.log.Info().Str("song_id", s.ID).Msg("song selected")
	return nil
}

func (c *Coordinator) handleQuitSong(cmd *command) error {
	ctx, cancel := c.storeCtx()
	defer cancel()

	_, err := c.commit(ctx, func(rec *Record) error {
		if err := authorize(rec, cmd.principal); err != nil {
			return err
		}
		if !rec.Active {
			return ErrInactive
		}
		rec.ActiveSong = ""
		return nil
	})
	if err != nil {
		return err
	}

	c.broadcast(SongQuitEvent{Type: EventSongQuit})
	c.log.Info().Msg("song quit")
	return nil
}

func (c *Coordinator) handleEndSession(cmd *command) error {
	ctx, cancel := c.storeCtx()
	defer cancel()

	rec, err := c.commit(ctx, func(rec *Record) error {
		if err := authorize(rec, cmd.principal); err != nil {
			return err
		}
		if !rec.Active {
			return ErrInactive
		}
		now := c.mgr.now()
		rec.Active = false
		rec.EndedAt = &now
		rec.Members = nil
		return nil
	})
	if err != nil {
		return err
	}

	c.broadcast(SessionEndedEvent{
		Type:      EventSessionEnded,
		SessionID: rec.ID,
		EndedAt:   *rec.EndedAt,
	})
	c.mgr.registry.DropRoom(c.sessionID)
	c.log.Info().Time("ended_at", *rec.EndedAt).Msg("session ended")
	return nil
}

// handleReconcile prunes durable membership entries whose connection is
// no longer live, covering reconciler messages lost to crashes. Entries
// younger than the grace window are left alone.
func (c *Coordinator) handleReconcile(cmd *command) error {
	ctx, cancel := c.storeCtx()
	defer cancel()

	live := c.mgr.registry.LiveConnections(c.sessionID)
	cutoff := c.mgr.now().Add(-cmd.grace)

	var dropped []MemberEntry
	_, err := c.commit(ctx, func(rec *Record) error {
		dropped = dropped[:0]
		if !rec.Active {
			return errNoChange
		}
		var kept []MemberEntry
		for _, m := range rec.Members {
			if live[m.ConnectionID] || m.JoinedAt.After(cutoff) {
				kept = append(kept, m)
				continue
			}
			dropped = append(dropped, m)
		}
		if len(dropped) == 0 {
			return errNoChange
		}
		rec.Members = kept
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errNoChange
		}
		return err
	}

	for _, m := range dropped {
		metrics.SweepEvictions.Inc()
		c.broadcast(UserLeftEvent{Type: EventUserLeft, DisplayName: m.DisplayName})
	}
	c.log.Info().Int("evicted", len(dropped)).Msg("stale members pruned")
	return nil
}

// stateEvent builds the snapshot for a joining connection, populating
// the active song's display metadata on demand.
func (c *Coordinator) stateEvent(ctx context.Context, rec *Record) StateEvent {
	ev := StateEvent{
		Type:    EventSessionState,
		ID:      rec.ID,
		Name:    rec.Name,
		Admin:   rec.OwnerID,
		Members: make([]MemberView, 0, len(rec.Members)),
	}
	for _, m := range rec.Members {
		ev.Members = append(ev.Members, MemberView{
			DisplayName: m.DisplayName,
			Instrument:  m.Instrument,
		})
	}
	if rec.ActiveSong != "" {
		s, err := c.mgr.catalog.Resolve(ctx, rec.ActiveSong)
		if err != nil {
			c.log.Warn().Err(err).Str("song_id", rec.ActiveSong).Msg("resolve active song for snapshot")
			ev.ActiveSong = &SongView{SongID: rec.ActiveSong}
		} else {
			ev.ActiveSong = &SongView{SongID: s.ID, Title: s.Title, Artist: s.Artist, Language: s.Language}
		}
	}
	return ev
}

func (c *Coordinator) sendTo(s rooms.Sender, v any) {
	frame, err := EncodeEvent(v)
	if err != nil {
		c.log.Error().Err(err).Msg("encode event")
		return
	}
	if err := s.TrySend(frame); err != nil {
		metrics.BroadcastDrops.Inc()
	}
}

func (c *Coordinator) broadcast(v any, exclude ...string) {
	frame, err := EncodeEvent(v)
	if err != nil {
		c.log.Error().Err(err).Msg("encode event")
		return
	}
	c.mgr.registry.Broadcast(c.sessionID, frame, exclude...)
}
