/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/Seednode/enigma/cases"
	"github.com/Seednode/enigma/client"
	"github.com/Seednode/enigma/room"
	"github.com/Seednode/enigma/verdict"
)

func caseTitles(list []cases.Case) map[room.CaseID]string {
	titles := make(map[room.CaseID]string, len(list))
	for _, c := range list {
		titles[room.CaseID(c.ID)] = c.Title
	}
	return titles
}

func joinLink(info client.NetworkInfo, roomID string) string {
	u := url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(info.IP, strconv.Itoa(info.Port)),
		Path:     "/",
		RawQuery: url.Values{"room": {roomID}}.Encode(),
	}
	return u.String()
}

func watchHandlers(ctx context.Context, log zerolog.Logger, c *client.Client, roomID string, titles map[room.CaseID]string) client.Handlers {
	return client.Handlers{
		OnCase: func(id room.CaseID) {
			log.Info().Str("case", id.String()).Str("title", titles[id]).Msg("now investigating")
		},
		OnPlayers: func(players []room.Player) {
			names := make([]string, len(players))
			for i, p := range players {
				names[i] = p.Name
			}
			log.Info().Strs("players", names).Msg("players in room")
		},
		OnNotes: func(notes room.Notes) {
			for _, cat := range room.Categories {
				for author, text := range notes[cat] {
					if text != "" {
						log.Debug().Str("category", cat).Str("author", author).Msg(text)
					}
				}
			}
		},
		OnProgress: func(votes, players int) {
			log.Info().Int("votes", votes).Int("players", players).Msg("voting")
		},
		OnVerdict: func(out verdict.Outcome) {
			log.Info().
				Str("culprit", out.Consensus.Culprit).
				Str("motive", out.Consensus.Motive).
				Str("method", out.Consensus.Method).
				Ints("evidence", out.Consensus.Evidence).
				Msg("the group has reached a verdict")

			// Scoring needs the answer key, which only the server has.
			go func() {
				v, err := c.Verdict(ctx, roomID)
				if err != nil || v.Result == nil {
					return
				}
				log.Info().Int("score", v.Result.Total).Str("rank", v.Result.Rank).Msg("case closed")
			}()
		},
		OnDispute: func(out verdict.Outcome) {
			log.Warn().
				Int("top", out.CulpritVotes).
				Int("runnerUp", out.RunnerUpVotes).
				Msg("no agreement on the culprit, debate and vote again")
		},
		OnReset: func() {
			log.Info().Msg("votes cleared")
		},
	}
}

func watchRoom(ctx context.Context, cfg *WatchConfig) error {
	log := newLogger(os.Stderr, cfg.verbose)

	c := client.New(cfg.server,
		client.WithLogger(log),
		client.WithCacheFile(cfg.cache),
	)

	list, err := c.Cases(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("case list unavailable")
	}

	roomID := cfg.room
	if cfg.host {
		roomID, err = c.CreateRoom(ctx, cfg.name)
		if err != nil {
			return err
		}

		log.Info().Str("room", roomID).Msg("room created")

		if info, err := c.NetworkInfo(ctx); err == nil {
			log.Info().Str("link", joinLink(info, roomID)).Msg("share this link to invite players")
		}
	}

	s := client.NewSyncer(c, roomID, cfg.name,
		client.WithPollInterval(cfg.interval),
		client.WithSyncLogger(log),
		client.WithHandlers(watchHandlers(ctx, log, c, room.NormalizeID(roomID), caseTitles(list))),
	)

	if err := s.Join(ctx); err != nil {
		return err
	}

	log.Info().Str("room", s.RoomID()).Bool("host", s.IsHost()).Msg("joined room")

	if cfg.caseID != "" {
		if err := s.SelectCase(ctx, room.CaseID(cfg.caseID)); err != nil {
			return err
		}
	}

	err = s.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}
