/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package verdict

import (
	"math"
	"slices"
	"strings"
)

const (
	culpritPoints  = 40
	motivePoints   = 20
	methodPoints   = 20
	evidencePoints = 20

	wrongEvidencePenalty = 0.5
)

// Breakdown holds the points awarded per question.
type Breakdown struct {
	Culprit  int `json:"culprit"`
	Motive   int `json:"motive"`
	Method   int `json:"method"`
	Evidence int `json:"evidence"`
}

// Result is a scored answer.
type Result struct {
	Total     int       `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	Rank      string    `json:"rank"`
}

// Score grades an answer out of 100. Solo play and group verdicts both go
// through here.
func Score(a Answer, s Solution) Result {
	var b Breakdown

	if a.Culprit == s.Culprit {
		b.Culprit = culpritPoints
	}

	// Any single keyword earns the full motive credit.
	if motiveHits(a.Motive, s.MotiveKeywords) > 0 {
		b.Motive = motivePoints
	}

	if a.Method == s.Method {
		b.Method = methodPoints
	}

	b.Evidence = evidenceScore(a.Evidence, s.KeyEvidence)

	total := b.Culprit + b.Motive + b.Method + b.Evidence

	return Result{
		Total:     total,
		Breakdown: b,
		Rank:      Rank(total),
	}
}

func motiveHits(motive string, keywords []string) int {
	text := strings.ToLower(motive)

	hits := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(text, kw) {
			hits++
		}
	}

	return hits
}

// evidenceScore gives +1 per key index and -0.5 per other index, scales the
// sum against the key set to 0-20, rounds half up and clamps.
func evidenceScore(selected, key []int) int {
	if len(key) == 0 {
		return 0
	}

	raw := 0.0
	for _, idx := range selected {
		if slices.Contains(key, idx) {
			raw++
		} else {
			raw -= wrongEvidencePenalty
		}
	}

	scaled := math.Floor(raw/float64(len(key))*evidencePoints + 0.5)

	return int(math.Max(0, math.Min(evidencePoints, scaled)))
}

// Rank returns the title shown next to a final score.
func Rank(score int) string {
	switch {
	case score >= 90:
		return "Master Detective"
	case score >= 70:
		return "Expert Detective"
	case score >= 50:
		return "Competent Detective"
	case score >= 30:
		return "Apprentice"
	default:
		return "Rookie"
	}
}
