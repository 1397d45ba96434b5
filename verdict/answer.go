/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package verdict scores detective answers against a case solution and
// turns a room's individual votes into a group verdict.
package verdict

import (
	"slices"
	"strings"
)

// Answer is one detective's (or the group's) resolution of a case.
type Answer struct {
	Culprit  string `json:"culprit"`
	Motive   string `json:"motive"`
	Method   string `json:"method"`
	Evidence []int  `json:"evidence"`
}

// Solution is the answer key for a case. It never leaves the server.
type Solution struct {
	Culprit        string   `json:"-" yaml:"culprit"`
	MotiveKeywords []string `json:"-" yaml:"motive_keywords"`
	Method         string   `json:"-" yaml:"method"`
	KeyEvidence    []int    `json:"-" yaml:"key_evidence"`
}

// Normalize trims the free-form fields and reduces Evidence to a sorted set
// of non-negative indices.
func (a Answer) Normalize() Answer {
	out := Answer{
		Culprit: strings.TrimSpace(a.Culprit),
		Motive:  strings.TrimSpace(a.Motive),
		Method:  strings.TrimSpace(a.Method),
	}

	out.Evidence = make([]int, 0, len(a.Evidence))
	for _, idx := range a.Evidence {
		if idx < 0 {
			continue
		}
		out.Evidence = append(out.Evidence, idx)
	}
	slices.Sort(out.Evidence)
	out.Evidence = slices.Compact(out.Evidence)

	return out
}
