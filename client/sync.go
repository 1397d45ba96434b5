/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/enigma/room"
	"github.com/Seednode/enigma/verdict"
)

const (
	DefaultPollInterval  = 2 * time.Second
	DefaultNotesDebounce = time.Second
	DefaultResetDelay    = 4 * time.Second
)

// Handlers are called from the poll loop as the room changes. Any of them
// may be nil. They run with the Syncer locked and must not call back into
// it.
type Handlers struct {
	// OnCase fires when the room switches to a case this client has not
	// loaded yet.
	OnCase func(id room.CaseID)

	// OnNotes fires after server notes were merged into the local copy.
	OnNotes func(notes room.Notes)

	// OnProgress reports how many players have voted.
	OnProgress func(votes, players int)

	OnVerdict func(out verdict.Outcome)
	OnDispute func(out verdict.Outcome)

	// OnReset fires when a vote set the client had seen was cleared.
	OnReset func()

	OnPlayers func(players []room.Player)
}

// Syncer keeps one player's view of a room in step with the server by
// polling it.
type Syncer struct {
	client *Client
	clock  clockwork.Clock
	log    zerolog.Logger
	on     Handlers

	roomID string
	player string

	interval   time.Duration
	debounce   time.Duration
	resetDelay time.Duration

	mu              sync.Mutex
	host            string
	players         int
	notes           room.Notes
	editing         bool
	edits           uint64
	flushTimer      clockwork.Timer
	lastLocalUpdate int64
	lastSyncedCase  room.CaseID
	lastVoteCount   int
	lastVotes       uint64
	resetTimer      clockwork.Timer
}

type SyncOption func(*Syncer)

func WithSyncClock(c clockwork.Clock) SyncOption {
	return func(s *Syncer) { s.clock = c }
}

func WithSyncLogger(l zerolog.Logger) SyncOption {
	return func(s *Syncer) { s.log = l }
}

func WithHandlers(h Handlers) SyncOption {
	return func(s *Syncer) { s.on = h }
}

func WithPollInterval(d time.Duration) SyncOption {
	return func(s *Syncer) { s.interval = d }
}

func WithNotesDebounce(d time.Duration) SyncOption {
	return func(s *Syncer) { s.debounce = d }
}

// WithResetDelay sets how long a dispute stays on screen before the host
// clears the votes.
func WithResetDelay(d time.Duration) SyncOption {
	return func(s *Syncer) { s.resetDelay = d }
}

func NewSyncer(c *Client, roomID, player string, opts ...SyncOption) *Syncer {
	s := &Syncer{
		client:     c,
		clock:      clockwork.NewRealClock(),
		log:        zerolog.Nop(),
		roomID:     room.NormalizeID(roomID),
		player:     player,
		interval:   DefaultPollInterval,
		debounce:   DefaultNotesDebounce,
		resetDelay: DefaultResetDelay,
		notes:      room.EmptyNotes(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Syncer) RoomID() string {
	return s.roomID
}

// IsHost reports whether this player hosts the room, as of the last poll.
func (s *Syncer) IsHost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.host != "" && s.host == s.player
}

// Join enters the room and adopts its state.
func (s *Syncer) Join(ctx context.Context) error {
	snap, err := s.client.JoinRoom(ctx, s.roomID, s.player)
	if err != nil {
		return err
	}

	s.apply(ctx, snap)

	return nil
}

// Sync polls the room once and applies the result.
func (s *Syncer) Sync(ctx context.Context) error {
	snap, err := s.client.State(ctx, s.roomID)
	if err != nil {
		return err
	}

	s.apply(ctx, snap)

	return nil
}

// Run polls until ctx is done or the room disappears. Other poll failures
// are logged and retried on the next tick.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	defer s.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			err := s.Sync(ctx)
			switch {
			case errors.Is(err, ErrRoomClosed):
				s.log.Warn().Str("room", s.roomID).Msg("room closed by server")
				return err
			case err != nil && ctx.Err() == nil:
				s.log.Debug().Err(err).Str("room", s.roomID).Msg("poll failed")
			}
		}
	}
}

// SelectCase switches the room to id. The case is marked synced first so
// the next poll does not report it back as a change.
func (s *Syncer) SelectCase(ctx context.Context, id room.CaseID) error {
	s.mu.Lock()
	prev := s.lastSyncedCase
	s.lastSyncedCase = id
	s.mu.Unlock()

	if err := s.client.SetActiveCase(ctx, s.roomID, s.player, id); err != nil {
		s.mu.Lock()
		s.lastSyncedCase = prev
		s.mu.Unlock()
		return err
	}

	return nil
}

// Vote submits this player's answer.
func (s *Syncer) Vote(ctx context.Context, answer verdict.Answer) (int, int, error) {
	return s.client.SubmitVote(ctx, s.roomID, s.player, answer)
}

func (s *Syncer) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	if s.resetTimer != nil {
		s.resetTimer.Stop()
	}
}

func (s *Syncer) apply(ctx context.Context, snap *room.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.host = snap.Host
	if len(snap.Players) != s.players {
		s.players = len(snap.Players)
		if s.on.OnPlayers != nil {
			s.on.OnPlayers(snap.Players)
		}
	}

	s.applyCaseLocked(snap)
	s.applyNotesLocked(snap)
	s.applyVotesLocked(ctx, snap)
}

// applyCaseLocked only reacts to a case it has not synced yet, so a switch
// triggered by this client is not loaded twice.
func (s *Syncer) applyCaseLocked(snap *room.Snapshot) {
	if snap.ActiveCaseID == nil || *snap.ActiveCaseID == s.lastSyncedCase {
		return
	}

	s.lastSyncedCase = *snap.ActiveCaseID
	s.log.Info().Str("room", s.roomID).Str("case", s.lastSyncedCase.String()).Msg("active case changed")

	if s.on.OnCase != nil {
		s.on.OnCase(s.lastSyncedCase)
	}
}

// applyNotesLocked merges remote notes unless the player is typing or the
// server has nothing newer than our last flush.
func (s *Syncer) applyNotesLocked(snap *room.Snapshot) {
	if s.editing || snap.LastUpdate <= s.lastLocalUpdate {
		return
	}

	s.notes = room.Merge(s.notes, snap.Notes, s.player)
	s.lastLocalUpdate = snap.LastUpdate

	if s.on.OnNotes != nil {
		s.on.OnNotes(s.notes.Clone())
	}
}

func (s *Syncer) applyVotesLocked(ctx context.Context, snap *room.Snapshot) {
	count := len(snap.Votes)
	players := len(snap.Players)

	if s.lastVoteCount > 0 && count == 0 {
		s.lastVotes = 0
		s.log.Info().Str("room", s.roomID).Msg("votes reset")
		if s.on.OnReset != nil {
			s.on.OnReset()
		}
	}
	s.lastVoteCount = count

	if count == 0 {
		return
	}

	if s.on.OnProgress != nil {
		s.on.OnProgress(count, players)
	}

	if count < players {
		return
	}

	ballots := snap.Ballots()

	fp := verdict.Fingerprint(ballots)
	if fp == s.lastVotes {
		return
	}
	s.lastVotes = fp

	out := verdict.Evaluate(ballots, players)

	switch out.Phase {
	case verdict.PhaseResolved:
		s.log.Info().
			Str("room", s.roomID).
			Str("culprit", out.Consensus.Culprit).
			Int("votes", out.CulpritVotes).
			Msg("consensus reached")
		if s.on.OnVerdict != nil {
			s.on.OnVerdict(out)
		}
	case verdict.PhaseDisputed:
		s.log.Info().
			Str("room", s.roomID).
			Int("top", out.CulpritVotes).
			Int("runnerUp", out.RunnerUpVotes).
			Msg("no consensus")
		if s.on.OnDispute != nil {
			s.on.OnDispute(out)
		}
		if snap.Host == s.player {
			s.scheduleResetLocked(ctx)
		}
	}
}

// scheduleResetLocked has the host clear a disputed round after the
// display delay.
func (s *Syncer) scheduleResetLocked(ctx context.Context) {
	if s.resetTimer != nil {
		s.resetTimer.Stop()
	}

	s.resetTimer = s.clock.AfterFunc(s.resetDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.client.ResetVotes(ctx, s.roomID, s.player); err != nil {
			s.log.Warn().Err(err).Str("room", s.roomID).Msg("could not reset votes")
		}
	})
}
