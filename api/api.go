/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package api exposes the room store and case catalog over HTTP/JSON. All
// routes live under /api/ and are meant to be polled.
package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/Seednode/enigma/cases"
	"github.com/Seednode/enigma/room"
)

const defaultBodyLimit = 1 << 20

// API serves the multiplayer endpoints.
type API struct {
	store   *room.Store
	catalog *cases.Catalog
	log     zerolog.Logger

	port      int
	prefix    string
	localIP   func() string
	bodyLimit int64
}

type Option func(*API)

func WithLogger(l zerolog.Logger) Option {
	return func(a *API) { a.log = l }
}

// WithPort sets the port reported by /api/network-info.
func WithPort(port int) Option {
	return func(a *API) { a.port = port }
}

// WithLocalIP overrides how the server's LAN address is discovered.
func WithLocalIP(f func() string) Option {
	return func(a *API) { a.localIP = f }
}

// WithBodyLimit caps the size of request bodies.
func WithBodyLimit(n int64) Option {
	return func(a *API) { a.bodyLimit = n }
}

func New(store *room.Store, catalog *cases.Catalog, opts ...Option) *API {
	a := &API{
		store:     store,
		catalog:   catalog,
		log:       zerolog.Nop(),
		port:      8080,
		localIP:   LocalIP,
		bodyLimit: defaultBodyLimit,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Register adds every /api/ route to mux under prefix.
func (a *API) Register(mux *httprouter.Router, prefix string) {
	a.prefix = prefix

	mux.POST(prefix+"/api/create-room", serveCreateRoom(a))
	mux.POST(prefix+"/api/join-room", serveJoinRoom(a))
	mux.GET(prefix+"/api/room/:roomId", serveRoomState(a))
	mux.GET(prefix+"/api/room/:roomId/verdict", serveVerdict(a))
	mux.GET(prefix+"/api/room/:roomId/qr", serveJoinQR(a))
	mux.POST(prefix+"/api/update-notes", serveUpdateNotes(a))
	mux.POST(prefix+"/api/set-active-case", serveSetActiveCase(a))
	mux.POST(prefix+"/api/submit-vote", serveSubmitVote(a))
	mux.POST(prefix+"/api/reset-votes", serveResetVotes(a))
	mux.GET(prefix+"/api/network-info", serveNetworkInfo(a))
	mux.GET(prefix+"/api/cases", serveCases(a))
	mux.POST(prefix+"/api/evaluate", serveEvaluate(a))
}

// PanicHandler answers with a JSON 500 instead of dropping the connection.
func (a *API) PanicHandler(w http.ResponseWriter, r *http.Request, i any) {
	a.log.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("recovered from panic")

	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

// Handler returns a standalone router with only the API routes, wrapped in
// CORS.
func (a *API) Handler() http.Handler {
	mux := httprouter.New()
	mux.PanicHandler = a.PanicHandler
	mux.NotFound = http.HandlerFunc(UnknownEndpoint)

	a.Register(mux, "")

	return CORS(mux)
}

// CORS allows any origin to call the API.
func CORS(h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(h)
}
