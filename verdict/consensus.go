/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package verdict

import (
	"encoding/json"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Phase is where a room's voting round currently stands. Tallying a
// complete vote set happens inside Evaluate, so there is no phase for it.
type Phase string

const (
	PhaseOpen     Phase = "open"
	PhaseResolved Phase = "resolved"
	PhaseDisputed Phase = "disputed"
)

// unanimityBelow is the player count under which the culprit vote must be
// unanimous. At or above it a strict plurality is enough.
const unanimityBelow = 3

// Ballot is one player's vote in a round.
type Ballot struct {
	Voter       string `json:"voter"`
	Answer      Answer `json:"answer"`
	SubmittedAt int64  `json:"submittedAt"`
}

// Outcome describes the state of a round after evaluation.
type Outcome struct {
	Phase         Phase  `json:"status"`
	Consensus     Answer `json:"consensus"`
	CulpritVotes  int    `json:"culpritVotes"`
	RunnerUpVotes int    `json:"runnerUpVotes"`
	TotalVotes    int    `json:"totalVotes"`
	TotalPlayers  int    `json:"totalPlayers"`
}

// Evaluate computes the group verdict once every player has voted. Until
// then the round is Open and Consensus is empty.
func Evaluate(ballots []Ballot, players int) Outcome {
	out := Outcome{
		Phase:        PhaseOpen,
		TotalVotes:   len(ballots),
		TotalPlayers: players,
	}

	if len(ballots) == 0 || len(ballots) < players {
		return out
	}

	ordered := slices.Clone(ballots)
	slices.SortStableFunc(ordered, func(a, b Ballot) int {
		switch {
		case a.SubmittedAt < b.SubmittedAt:
			return -1
		case a.SubmittedAt > b.SubmittedAt:
			return 1
		default:
			return strings.Compare(a.Voter, b.Voter)
		}
	})

	culprits := make([]string, len(ordered))
	motives := make([]string, len(ordered))
	methods := make([]string, len(ordered))
	for i, b := range ordered {
		culprits[i] = strings.TrimSpace(b.Answer.Culprit)
		motives[i] = strings.TrimSpace(b.Answer.Motive)
		methods[i] = strings.TrimSpace(b.Answer.Method)
	}

	culprit, top, second := plurality(culprits)
	motive, _, _ := plurality(motives)
	method, _, _ := plurality(methods)

	out.Consensus = Answer{
		Culprit:  culprit,
		Motive:   motive,
		Method:   method,
		Evidence: majorityEvidence(ordered),
	}
	out.CulpritVotes = top
	out.RunnerUpVotes = second

	if accepted(top, second, len(ordered), players) {
		out.Phase = PhaseResolved
	} else {
		out.Phase = PhaseDisputed
	}

	return out
}

func accepted(top, second, votes, players int) bool {
	if players < unanimityBelow {
		return top == votes
	}

	return top > second
}

// plurality returns the most frequent value with its count and the count of
// the runner-up. values must be in submission order: on a tie the value
// that appeared first wins.
func plurality(values []string) (string, int, int) {
	counts := make(map[string]int, len(values))
	order := make([]string, 0, len(values))

	for _, v := range values {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	var winner string
	top, second := 0, 0

	for _, v := range order {
		c := counts[v]
		switch {
		case c > top:
			second = top
			winner, top = v, c
		case c > second:
			second = c
		}
	}

	return winner, top, second
}

// majorityEvidence keeps the indices picked by at least half the voters,
// rounded up.
func majorityEvidence(ballots []Ballot) []int {
	threshold := (len(ballots) + 1) / 2

	counts := make(map[int]int)
	for _, b := range ballots {
		for _, idx := range b.Answer.Normalize().Evidence {
			counts[idx]++
		}
	}

	evidence := make([]int, 0, len(counts))
	for idx, c := range counts {
		if c >= threshold {
			evidence = append(evidence, idx)
		}
	}
	slices.Sort(evidence)

	return evidence
}

// Fingerprint hashes a vote set so a client can tell whether it has already
// acted on exactly these votes. Only who voted for what counts: ballot order
// and submission times do not change the result.
func Fingerprint(ballots []Ballot) uint64 {
	if len(ballots) == 0 {
		return 0
	}

	type vote struct {
		Voter  string `json:"v"`
		Answer Answer `json:"a"`
	}

	votes := make([]vote, 0, len(ballots))
	for _, b := range ballots {
		votes = append(votes, vote{Voter: b.Voter, Answer: b.Answer.Normalize()})
	}
	slices.SortFunc(votes, func(a, b vote) int {
		return strings.Compare(a.Voter, b.Voter)
	})

	data, err := json.Marshal(votes)
	if err != nil {
		return 0
	}

	return xxhash.Sum64(data)
}
