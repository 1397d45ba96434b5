/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/Seednode/enigma/room"
)

// Notes returns a copy of the local notes document.
func (s *Syncer) Notes() room.Notes {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.notes.Clone()
}

// Edit replaces this player's text in category. The document is sent once
// no further edit has arrived for the debounce interval; until then polls
// leave the local copy alone.
func (s *Syncer) Edit(ctx context.Context, category, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.notes.Set(category, s.player, text); err != nil {
		return err
	}

	s.editing = true
	s.edits++

	s.armFlushLocked(ctx)

	return nil
}

// Flush sends the whole local notes document now. If the send fails with
// anything but a client error, polls resume merging and another send is
// scheduled one debounce interval later.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
		s.flushTimer = nil
	}
	notes := s.notes.Clone()
	gen := s.edits
	s.mu.Unlock()

	if err := s.client.UpdateNotes(ctx, s.roomID, s.player, notes); err != nil {
		s.mu.Lock()
		if s.edits == gen {
			s.editing = false
		}
		if retryable(err) && s.flushTimer == nil {
			s.armFlushLocked(context.WithoutCancel(ctx))
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.edits == gen {
		s.editing = false
	}
	s.lastLocalUpdate = s.clock.Now().UnixMilli()
	s.mu.Unlock()

	return nil
}

func (s *Syncer) armFlushLocked(ctx context.Context) {
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}

	s.flushTimer = s.clock.AfterFunc(s.debounce, func() {
		if ctx.Err() != nil {
			return
		}
		if err := s.Flush(ctx); err != nil {
			s.log.Warn().Err(err).Str("room", s.roomID).Msg("could not save notes")
		}
	})
}

// retryable reports whether a failed send may succeed unchanged later.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}

	return !errors.Is(err, ErrRoomClosed)
}
