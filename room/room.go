/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package room holds multiplayer detective rooms in memory: who is playing,
// their shared notes, their votes and the case they are working on.
package room

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"
	"strconv"

	"github.com/Seednode/enigma/verdict"
)

// DefaultPlayerName is used when a room is created without a name.
const DefaultPlayerName = "Detective"

// Player is a member of a room, unique by name.
type Player struct {
	Name     string `json:"name"`
	LastSeen int64  `json:"lastSeen"`
}

// Vote is a player's answer plus the server time it arrived.
type Vote struct {
	verdict.Answer
	SubmittedAt int64 `json:"submittedAt"`
}

// CaseID identifies a case. Clients send it either as a JSON string or a
// number; it is always stored and sent back as a string.
type CaseID string

func (c *CaseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CaseID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*c = CaseID(strconv.FormatInt(i, 10))
		return nil
	}
	*c = CaseID(n.String())

	return nil
}

func (c CaseID) String() string {
	return string(c)
}

// Snapshot is a point-in-time copy of a room, safe to hand out.
type Snapshot struct {
	ID           string          `json:"id"`
	Host         string          `json:"host"`
	Players      []Player        `json:"players"`
	Notes        Notes           `json:"notes"`
	Votes        map[string]Vote `json:"votes"`
	VotingStatus verdict.Phase   `json:"votingStatus"`
	ActiveCaseID *CaseID         `json:"activeCaseId"`
	LastUpdate   int64           `json:"lastUpdate"`
}

// HasPlayer reports whether name is in the room.
func (s *Snapshot) HasPlayer(name string) bool {
	return slices.ContainsFunc(s.Players, func(p Player) bool {
		return p.Name == name
	})
}

// Ballots returns the votes in the shape the consensus engine takes.
func (s *Snapshot) Ballots() []verdict.Ballot {
	return ballots(s.Votes)
}

// Outcome evaluates the current round.
func (s *Snapshot) Outcome() verdict.Outcome {
	return verdict.Evaluate(s.Ballots(), len(s.Players))
}

func ballots(votes map[string]Vote) []verdict.Ballot {
	out := make([]verdict.Ballot, 0, len(votes))
	for _, name := range slices.Sorted(maps.Keys(votes)) {
		v := votes[name]
		out = append(out, verdict.Ballot{
			Voter:       name,
			Answer:      v.Answer,
			SubmittedAt: v.SubmittedAt,
		})
	}
	return out
}

type room struct {
	id           string
	host         string
	players      []Player
	notes        Notes
	votes        map[string]Vote
	activeCaseID *CaseID
	lastUpdate   int64
}

func (r *room) player(name string) *Player {
	for i := range r.players {
		if r.players[i].Name == name {
			return &r.players[i]
		}
	}
	return nil
}

func (r *room) snapshot() *Snapshot {
	s := &Snapshot{
		ID:         r.id,
		Host:       r.host,
		Players:    slices.Clone(r.players),
		Notes:      r.notes.Clone(),
		Votes:      make(map[string]Vote, len(r.votes)),
		LastUpdate: r.lastUpdate,
	}

	for name, v := range r.votes {
		v.Evidence = slices.Clone(v.Evidence)
		s.Votes[name] = v
	}

	if r.activeCaseID != nil {
		id := *r.activeCaseID
		s.ActiveCaseID = &id
	}

	s.VotingStatus = verdict.Evaluate(ballots(r.votes), len(r.players)).Phase

	return s
}
