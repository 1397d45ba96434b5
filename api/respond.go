/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Seednode/enigma/cases"
	"github.com/Seednode/enigma/room"
)

var (
	errInvalidJSON  = errors.New("invalid JSON")
	errBodyTooLarge = errors.New("request body too large")
)

type errorBody struct {
	Error string `json:"error"`
}

type successBody struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidJSON), errors.Is(err, room.ErrMalformed):
		return http.StatusBadRequest
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, room.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, room.ErrPlayerNotFound),
		errors.Is(err, cases.ErrCaseNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		a.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "internal server error"
	}

	writeJSON(w, status, errorBody{Error: msg})
}

// decode reads a single JSON value from the body into v. An empty body
// decodes as {}.
func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.bodyLimit))

	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		err = dec.Decode(&struct{}{})
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err == nil {
			err = errors.New("unexpected data after JSON value")
		}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
	}

	return fmt.Errorf("%w: %v", errInvalidJSON, err)
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required: %w", field, room.ErrMalformed)
	}
	return nil
}

// UnknownEndpoint answers any unrouted /api/ path.
func UnknownEndpoint(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "endpoint not found"})
}
