/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/enigma/room"
	"github.com/Seednode/enigma/verdict"
)

const qrSize = 320

type createRoomRequest struct {
	PlayerName string `json:"playerName"`
}

type createRoomResponse struct {
	RoomID  string `json:"roomId"`
	Success bool   `json:"success"`
}

type joinRoomRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type joinRoomResponse struct {
	Success   bool           `json:"success"`
	RoomState *room.Snapshot `json:"roomState"`
}

type updateNotesRequest struct {
	RoomID     string     `json:"roomId"`
	Notes      room.Notes `json:"notes"`
	PlayerName string     `json:"playerName"`
}

type setActiveCaseRequest struct {
	RoomID     string      `json:"roomId"`
	CaseID     room.CaseID `json:"caseId"`
	PlayerName string      `json:"playerName"`
}

type submitVoteRequest struct {
	RoomID     string          `json:"roomId"`
	PlayerName string          `json:"playerName"`
	VoteData   *verdict.Answer `json:"voteData"`
}

type submitVoteResponse struct {
	Success      bool `json:"success"`
	TotalVotes   int  `json:"totalVotes"`
	TotalPlayers int  `json:"totalPlayers"`
}

type resetVotesRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type networkInfoResponse struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

type evaluateRequest struct {
	CaseID room.CaseID     `json:"caseId"`
	Answer *verdict.Answer `json:"answer"`
}

type evaluateResponse struct {
	Success bool `json:"success"`
	verdict.Result
}

type verdictResponse struct {
	verdict.Outcome
	CaseID string          `json:"caseId,omitempty"`
	Result *verdict.Result `json:"result,omitempty"`
}

func serveCreateRoom(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req createRoomRequest
		if err := a.decode(w, r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}

		snap, err := a.store.Create(req.PlayerName)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, createRoomResponse{RoomID: snap.ID, Success: true})
	}
}

func serveJoinRoom(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req joinRoomRequest
		if err := a.decode(w, r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := required("roomId", req.RoomID); err != nil {
			a.writeError(w, r, err)
			return
		}

		snap, err := a.store.Join(req.RoomID, req.PlayerName)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, joinRoomResponse{Success: true, RoomState: snap})
	}
}

func serveRoomState(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		snap, err := a.store.Get(p.ByName("roomId"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

func serveUpdateNotes(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req updateNotesRequest
		if err := a.decode(w, r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := required("roomId", req.RoomID); err != nil {
			a.writeError(w, r, err)
			return
		}
		if req.Notes == nil {
			a.writeError(w, r, required("notes", ""))
			return
		}

		if err := a.store.UpdateNotes(req.RoomID, req.Notes, req.PlayerName); err != nil {
			a.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, successBody{Success: true})
	}
}

func serveSetActiveCase(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req setActiveCaseRequest
		if err := a.decode(w, r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := required("roomId", req.RoomID); err != nil {
			a.writeError(w, r, err)
			return
		}

		if req.CaseID != "" {
			if _, err := a.catalog.Get(req.CaseID.String()); err != nil {
				a.writeError(w, r, err)
				return
			}
		}

		if err := a.store.SetActiveCase(req.RoomID, req.CaseID, req.PlayerName); err != nil {
			a.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, successBody{Success: true})
	}
}

func serveSubmitVote(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req submitVoteRequest
		if err := a.decode(w, r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := required("roomId", req.RoomID); err != nil {
			a.writeError(w, r, err)
			return
		}
		if req.VoteData == nil {
			a.writeError(w, r, required("voteData", ""))
			return
		}

		votes, players, err := a.store.SubmitVote(req.RoomID, req.PlayerName, *req.VoteData)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, submitVoteResponse{
			Success:      true,
			TotalVotes:   votes,
			TotalPlayers: players,
		})
	}
}

func serveResetVotes(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req resetVotesRequest
		if err := a.decode(w, r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := required("roomId", req.RoomID); err != nil {
			a.writeError(w, r, err)
			return
		}

		if err := a.store.ResetVotes(req.RoomID, req.PlayerName); err != nil {
			a.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, successBody{Success: true})
	}
}

func serveNetworkInfo(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, networkInfoResponse{IP: a.localIP(), Port: a.port})
	}
}

func serveCases(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(w, http.StatusOK, a.catalog.List())
	}
}

// serveVerdict evaluates the room's current round server-side and, once
// it is resolved, scores the consensus against the active case.
func serveVerdict(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		snap, err := a.store.Get(p.ByName("roomId"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		resp := verdictResponse{Outcome: snap.Outcome()}

		if snap.ActiveCaseID != nil {
			resp.CaseID = snap.ActiveCaseID.String()
		}

		if resp.Phase == verdict.PhaseResolved && resp.CaseID != "" {
			res, err := a.catalog.Score(resp.CaseID, resp.Consensus)
			if err != nil {
				a.writeError(w, r, err)
				return
			}
			resp.Result = &res
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func serveEvaluate(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req evaluateRequest
		if err := a.decode(w, r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
		if err := required("caseId", req.CaseID.String()); err != nil {
			a.writeError(w, r, err)
			return
		}
		if req.Answer == nil {
			a.writeError(w, r, required("answer", ""))
			return
		}

		res, err := a.catalog.Score(req.CaseID.String(), *req.Answer)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, evaluateResponse{Success: true, Result: res})
	}
}

// serveJoinQR renders the room's join link as a PNG.
func serveJoinQR(a *API) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		snap, err := a.store.Get(p.ByName("roomId"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		png, err := qrcode.Encode(a.joinURL(r, snap.ID), qrcode.Medium, qrSize)
		if err != nil {
			a.writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(png)
	}
}
