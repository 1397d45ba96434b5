/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/Seednode/enigma/verdict"
)

const (
	// DefaultTimeout is how long a room may sit untouched before the sweep
	// deletes it.
	DefaultTimeout = time.Hour

	// DefaultSweepInterval is how often the sweep runs.
	DefaultSweepInterval = 30 * time.Minute

	maxIDAttempts = 32
)

// Store is the in-memory room table. Every operation runs under one lock,
// so each one is atomic; sequences of operations are not.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*room

	clock    clockwork.Clock
	log      zerolog.Logger
	timeout  time.Duration
	newID    IDGenerator
	hostOnly bool
}

type Option func(*Store)

func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithTimeout sets the inactivity timeout used by Sweep.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.newID = g }
}

// WithHostOnly restricts SetActiveCase and ResetVotes to the room's host.
func WithHostOnly(enforce bool) Option {
	return func(s *Store) { s.hostOnly = enforce }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		rooms:   make(map[string]*room),
		clock:   clockwork.NewRealClock(),
		log:     zerolog.Nop(),
		timeout: DefaultTimeout,
		newID:   RandomID,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Timeout returns the inactivity timeout.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Len returns the number of live rooms.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.rooms)
}

func (s *Store) now() int64 {
	return s.clock.Now().UnixMilli()
}

func (s *Store) lookupLocked(id string) (*room, error) {
	id = NormalizeID(id)

	r, ok := s.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %q: %w", id, ErrRoomNotFound)
	}

	return r, nil
}

func (s *Store) hostCheckLocked(r *room, playerName string) error {
	if !s.hostOnly {
		return nil
	}
	if strings.TrimSpace(playerName) != r.host {
		return fmt.Errorf("room %q: %w", r.id, ErrNotHost)
	}
	return nil
}

// freeIDLocked draws ids until one is not in use.
func (s *Store) freeIDLocked() (string, error) {
	for range maxIDAttempts {
		id, err := s.newID()
		if err != nil {
			return "", fmt.Errorf("generate room id: %w", err)
		}
		if _, taken := s.rooms[id]; !taken {
			return id, nil
		}
		s.log.Debug().Str("room", id).Msg("room id collision, regenerating")
	}

	return "", ErrIDSpaceExhausted
}

// Create opens a room with playerName as its host and only player.
func (s *Store) Create(playerName string) (*Snapshot, error) {
	name := strings.TrimSpace(playerName)
	if name == "" {
		name = DefaultPlayerName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.freeIDLocked()
	if err != nil {
		return nil, err
	}

	now := s.now()
	r := &room{
		id:         id,
		host:       name,
		players:    []Player{{Name: name, LastSeen: now}},
		notes:      EmptyNotes(),
		votes:      make(map[string]Vote),
		lastUpdate: now,
	}
	s.rooms[id] = r

	s.log.Info().Str("room", id).Str("host", name).Msg("room created")

	return r.snapshot(), nil
}

// Join adds playerName to the room, or refreshes them if they are already
// in it, and returns the room so the client can bootstrap.
func (s *Store) Join(roomID, playerName string) (*Snapshot, error) {
	name := strings.TrimSpace(playerName)
	if name == "" {
		return nil, fmt.Errorf("player name is required: %w", ErrMalformed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookupLocked(roomID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if p := r.player(name); p != nil {
		p.LastSeen = now
		s.log.Debug().Str("room", r.id).Str("player", name).Msg("player rejoined")
	} else {
		r.players = append(r.players, Player{Name: name, LastSeen: now})
		s.log.Info().Str("room", r.id).Str("player", name).Int("players", len(r.players)).Msg("player joined")
	}
	r.lastUpdate = now

	return r.snapshot(), nil
}

// Get returns the current state of a room.
func (s *Store) Get(roomID string) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookupLocked(roomID)
	if err != nil {
		return nil, err
	}

	return r.snapshot(), nil
}

// SetActiveCase switches the case the room is playing. An empty caseID
// clears it.
func (s *Store) SetActiveCase(roomID string, caseID CaseID, playerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookupLocked(roomID)
	if err != nil {
		return err
	}

	if err := s.hostCheckLocked(r, playerName); err != nil {
		return err
	}

	if caseID == "" {
		r.activeCaseID = nil
	} else {
		id := caseID
		r.activeCaseID = &id
	}
	r.lastUpdate = s.now()

	s.log.Info().Str("room", r.id).Str("case", caseID.String()).Msg("active case changed")

	return nil
}

// UpdateNotes replaces the room's whole notes document. Categories outside
// the fixed set are dropped.
func (s *Store) UpdateNotes(roomID string, notes Notes, playerName string) error {
	normalized, dropped := notes.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookupLocked(roomID)
	if err != nil {
		return err
	}

	if len(dropped) > 0 {
		s.log.Debug().Str("room", r.id).Strs("categories", dropped).Msg("dropped unknown notes categories")
	}

	now := s.now()
	r.notes = normalized
	r.lastUpdate = now

	if p := r.player(strings.TrimSpace(playerName)); p != nil {
		p.LastSeen = now
	}

	return nil
}

// SubmitVote records or replaces playerName's vote and returns how many of
// the room's players have voted.
func (s *Store) SubmitVote(roomID, playerName string, answer verdict.Answer) (int, int, error) {
	name := strings.TrimSpace(playerName)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookupLocked(roomID)
	if err != nil {
		return 0, 0, err
	}

	p := r.player(name)
	if p == nil {
		return 0, 0, fmt.Errorf("room %q, player %q: %w", r.id, name, ErrPlayerNotFound)
	}

	now := s.now()
	r.votes[name] = Vote{
		Answer:      answer.Normalize(),
		SubmittedAt: now,
	}
	p.LastSeen = now
	r.lastUpdate = now

	s.log.Info().
		Str("room", r.id).
		Str("player", name).
		Int("votes", len(r.votes)).
		Int("players", len(r.players)).
		Msg("vote received")

	return len(r.votes), len(r.players), nil
}

// ResetVotes clears every vote so the room can vote again. Players and
// notes are left alone.
func (s *Store) ResetVotes(roomID, playerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookupLocked(roomID)
	if err != nil {
		return err
	}

	if err := s.hostCheckLocked(r, playerName); err != nil {
		return err
	}

	r.votes = make(map[string]Vote)
	r.lastUpdate = s.now()

	s.log.Info().Str("room", r.id).Msg("votes reset")

	return nil
}

// Sweep deletes every room idle for longer than the timeout and returns
// their ids.
func (s *Store) Sweep() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	limit := s.timeout.Milliseconds()

	var swept []string
	for id, r := range s.rooms {
		if now-r.lastUpdate > limit {
			delete(s.rooms, id)
			swept = append(swept, id)
			s.log.Info().Str("room", id).Msg("room removed for inactivity")
		}
	}

	return swept
}

// Run sweeps every interval until ctx is done. A non-positive interval
// means half the timeout.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.timeout / 2
	}

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Sweep()
		}
	}
}
