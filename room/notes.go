/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"fmt"
	"maps"
	"slices"
)

// Notes categories.
const (
	Suspects = "suspects"
	Clues    = "clues"
	Theories = "theories"
	Timeline = "timeline"
	General  = "general"
)

// Categories lists every notes category in display order.
var Categories = []string{Suspects, Clues, Theories, Timeline, General}

// Notes maps category -> player name -> text. Each player owns the slot
// under their own name.
type Notes map[string]map[string]string

// EmptyNotes returns a document with every category present and empty.
func EmptyNotes() Notes {
	n := make(Notes, len(Categories))
	for _, c := range Categories {
		n[c] = map[string]string{}
	}
	return n
}

// IsCategory reports whether c is one of the fixed categories.
func IsCategory(c string) bool {
	return slices.Contains(Categories, c)
}

// Clone deep-copies the document.
func (n Notes) Clone() Notes {
	if n == nil {
		return nil
	}

	out := make(Notes, len(n))
	for c, slots := range n {
		out[c] = maps.Clone(slots)
		if out[c] == nil {
			out[c] = map[string]string{}
		}
	}
	return out
}

// Normalize returns a copy restricted to the fixed categories, with every
// category present. The names of any dropped categories are returned.
func (n Notes) Normalize() (Notes, []string) {
	out := EmptyNotes()

	var dropped []string
	for c, slots := range n {
		if !IsCategory(c) {
			dropped = append(dropped, c)
			continue
		}
		maps.Copy(out[c], slots)
	}
	slices.Sort(dropped)

	return out, dropped
}

// Set writes author's slot in category.
func (n Notes) Set(category, author, text string) error {
	if !IsCategory(category) {
		return fmt.Errorf("%q: %w", category, ErrUnknownCategory)
	}

	if n[category] == nil {
		n[category] = map[string]string{}
	}
	n[category][author] = text

	return nil
}

// Get reads author's slot in category.
func (n Notes) Get(category, author string) string {
	return n[category][author]
}

// Merge builds the document a client should hold after receiving remote
// from the server: every slot comes from remote except author's own, which
// is kept from local so in-progress edits are never overwritten.
func Merge(local, remote Notes, author string) Notes {
	merged, _ := remote.Normalize()

	for c, slots := range local {
		if !IsCategory(c) {
			continue
		}
		if text, ok := slots[author]; ok {
			merged[c][author] = text
		}
	}

	return merged
}
