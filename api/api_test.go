/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/enigma/cases"
	"github.com/Seednode/enigma/room"
)

const (
	testRoom = "ABC123"
	testIP   = "192.168.1.5"
)

type fixture struct {
	clock   *clockwork.FakeClock
	store   *room.Store
	api     *API
	handler http.Handler
}

func newFixture(t *testing.T, opts ...room.Option) *fixture {
	t.Helper()

	catalog, err := cases.Default()
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC))

	opts = append([]room.Option{
		room.WithClock(clock),
		room.WithIDGenerator(func() (string, error) { return testRoom, nil }),
	}, opts...)
	store := room.NewStore(opts...)

	a := New(store, catalog,
		WithPort(8080),
		WithLocalIP(func() string { return testIP }),
	)

	return &fixture{clock: clock, store: store, api: a, handler: a.Handler()}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// seed creates the test room hosted by Ana and joins the given players.
func (f *fixture) seed(t *testing.T, players ...string) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/create-room", map[string]string{"playerName": "Ana"})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, p := range players {
		rec := f.do(t, http.MethodPost, "/api/join-room", map[string]string{"roomId": testRoom, "playerName": p})
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/create-room", map[string]string{"playerName": "Ana"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decodeBody[createRoomResponse](t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, testRoom, body.RoomID)

	snap, err := f.store.Get(testRoom)
	require.NoError(t, err)
	assert.Equal(t, "Ana", snap.Host)
}

func TestCreateRoom_DefaultName(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/create-room", "")
	require.Equal(t, http.StatusOK, rec.Code)

	snap, err := f.store.Get(testRoom)
	require.NoError(t, err)
	assert.Equal(t, room.DefaultPlayerName, snap.Host)
}

func TestJoinRoom(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, http.MethodPost, "/api/join-room", map[string]string{"roomId": "abc123", "playerName": "Bruno"})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[joinRoomResponse](t, rec)
	assert.True(t, body.Success)
	require.NotNil(t, body.RoomState)
	assert.Equal(t, testRoom, body.RoomState.ID)
	assert.True(t, body.RoomState.HasPlayer("Bruno"))
	assert.Len(t, body.RoomState.Players, 2)
}

func TestJoinRoom_Errors(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"unknown room", map[string]string{"roomId": "ZZZZZZ", "playerName": "Bruno"}, http.StatusNotFound},
		{"missing room", map[string]string{"playerName": "Bruno"}, http.StatusBadRequest},
		{"missing name", map[string]string{"roomId": testRoom}, http.StatusBadRequest},
		{"malformed", `{"roomId":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/join-room", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			body := decodeBody[errorBody](t, rec)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestDecode_Body(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/create-room", `{"playerName":"Ana"}{"playerName":"Bruno"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Error, "invalid JSON")

	huge := `{"playerName":"` + strings.Repeat("a", 2<<20) + `"}`
	rec = f.do(t, http.MethodPost, "/api/create-room", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, decodeBody[errorBody](t, rec).Error, "too large")

	rec = f.do(t, http.MethodPost, "/api/create-room", "{\"playerName\":\"Ana\"}\n")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoomState(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Bruno")

	rec := f.do(t, http.MethodGet, "/api/room/"+testRoom, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"id", "host", "players", "notes", "votes", "votingStatus", "activeCaseId", "lastUpdate"} {
		assert.Contains(t, raw, key)
	}
	assert.JSONEq(t, "null", string(raw["activeCaseId"]))
	assert.JSONEq(t, `"open"`, string(raw["votingStatus"]))

	rec = f.do(t, http.MethodGet, "/api/room/NOPE00", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateNotes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Bruno")

	rec := f.do(t, http.MethodPost, "/api/update-notes", map[string]any{
		"roomId":     testRoom,
		"playerName": "Bruno",
		"notes": map[string]map[string]string{
			"suspects": {"Bruno": "Laura miente"},
			"recipes":  {"Bruno": "paella"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[successBody](t, rec).Success)

	snap, err := f.store.Get(testRoom)
	require.NoError(t, err)
	assert.Equal(t, "Laura miente", snap.Notes.Get(room.Suspects, "Bruno"))
	assert.NotContains(t, snap.Notes, "recipes")

	rec = f.do(t, http.MethodPost, "/api/update-notes", map[string]any{"roomId": testRoom})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetActiveCase(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, http.MethodPost, "/api/set-active-case", `{"roomId":"ABC123","caseId":1,"playerName":"Ana"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	snap, err := f.store.Get(testRoom)
	require.NoError(t, err)
	require.NotNil(t, snap.ActiveCaseID)
	assert.Equal(t, room.CaseID("1"), *snap.ActiveCaseID)

	rec = f.do(t, http.MethodPost, "/api/set-active-case", `{"roomId":"ABC123","caseId":"99","playerName":"Ana"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/set-active-case", `{"roomId":"ABC123","caseId":null,"playerName":"Ana"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	snap, err = f.store.Get(testRoom)
	require.NoError(t, err)
	assert.Nil(t, snap.ActiveCaseID)
}

func TestHostEnforcement(t *testing.T) {
	f := newFixture(t, room.WithHostOnly(true))
	f.seed(t, "Bruno")

	rec := f.do(t, http.MethodPost, "/api/set-active-case", map[string]string{"roomId": testRoom, "caseId": "1", "playerName": "Bruno"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/reset-votes", map[string]string{"roomId": testRoom, "playerName": "Bruno"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/reset-votes", map[string]string{"roomId": testRoom, "playerName": "Ana"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func vote(culprit, motive, method string, evidence ...int) map[string]any {
	return map[string]any{
		"culprit":  culprit,
		"motive":   motive,
		"method":   method,
		"evidence": evidence,
	}
}

func TestSubmitVoteAndVerdict(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Bruno")

	rec := f.do(t, http.MethodPost, "/api/set-active-case", map[string]string{"roomId": testRoom, "caseId": "1", "playerName": "Ana"})
	require.Equal(t, http.StatusOK, rec.Code)

	laura := "Laura Benítez (Administradora)"
	blow := "Golpe contundente (Traumatismo)"

	rec = f.do(t, http.MethodPost, "/api/submit-vote", map[string]any{
		"roomId": testRoom, "playerName": "Ana", "voteData": vote(laura, "desvío de fondos", blow, 0, 1, 2),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[submitVoteResponse](t, rec)
	assert.Equal(t, submitVoteResponse{Success: true, TotalVotes: 1, TotalPlayers: 2}, resp)

	rec = f.do(t, http.MethodGet, "/api/room/"+testRoom+"/verdict", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	open := decodeBody[verdictResponse](t, rec)
	assert.Equal(t, "open", string(open.Phase))
	assert.Nil(t, open.Result)

	f.clock.Advance(time.Second)

	rec = f.do(t, http.MethodPost, "/api/submit-vote", map[string]any{
		"roomId": testRoom, "playerName": "Bruno", "voteData": vote(laura, "fraude", blow, 1, 2),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/room/"+testRoom+"/verdict", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	v := decodeBody[verdictResponse](t, rec)
	assert.Equal(t, "resolved", string(v.Phase))
	assert.Equal(t, "1", v.CaseID)
	assert.Equal(t, laura, v.Consensus.Culprit)
	assert.Equal(t, "desvío de fondos", v.Consensus.Motive)
	assert.Equal(t, []int{0, 1, 2}, v.Consensus.Evidence)
	require.NotNil(t, v.Result)
	assert.Equal(t, 100, v.Result.Total)
	assert.Equal(t, "Master Detective", v.Result.Rank)

	snap, err := f.store.Get(testRoom)
	require.NoError(t, err)
	assert.Equal(t, "resolved", string(snap.VotingStatus))
}

func TestSubmitVote_Errors(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, http.MethodPost, "/api/submit-vote", map[string]any{"roomId": testRoom, "playerName": "Ana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/submit-vote", map[string]any{
		"roomId": testRoom, "playerName": "Intruso", "voteData": vote("x", "y", "z"),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/submit-vote", map[string]any{
		"roomId": "QQQQQQ", "playerName": "Ana", "voteData": vote("x", "y", "z"),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetVotes(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Bruno")

	for _, p := range []string{"Ana", "Bruno"} {
		rec := f.do(t, http.MethodPost, "/api/submit-vote", map[string]any{
			"roomId": testRoom, "playerName": p, "voteData": vote(p, "m", "x"),
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	snap, err := f.store.Get(testRoom)
	require.NoError(t, err)
	assert.Equal(t, "disputed", string(snap.VotingStatus))

	rec := f.do(t, http.MethodPost, "/api/reset-votes", map[string]string{"roomId": testRoom, "playerName": "Ana"})
	require.Equal(t, http.StatusOK, rec.Code)

	snap, err = f.store.Get(testRoom)
	require.NoError(t, err)
	assert.Empty(t, snap.Votes)
	assert.Equal(t, "open", string(snap.VotingStatus))
	assert.Len(t, snap.Players, 2)
}

func TestNetworkInfo(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/network-info", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ip":"192.168.1.5","port":8080}`, rec.Body.String())
}

func TestCases(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/cases", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decodeBody[[]map[string]any](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "1", list[0]["id"])
	assert.NotContains(t, list[0], "answer_key")
	assert.NotContains(t, rec.Body.String(), "motive_keywords")
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/evaluate", map[string]any{
		"caseId": 1,
		"answer": vote("Roberto Silva (Socio)", "celos", "Golpe contundente (Traumatismo)", 1, 2, 0),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	res := decodeBody[evaluateResponse](t, rec)
	assert.True(t, res.Success)
	assert.Equal(t, 40, res.Total)
	assert.Equal(t, 0, res.Breakdown.Culprit)
	assert.Equal(t, 20, res.Breakdown.Method)
	assert.Equal(t, 20, res.Breakdown.Evidence)
	assert.Equal(t, "Apprentice", res.Rank)

	rec = f.do(t, http.MethodPost, "/api/evaluate", map[string]any{"caseId": "7", "answer": vote("a", "b", "c")})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/evaluate", map[string]any{"caseId": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinQR(t *testing.T) {
	f := newFixture(t)
	f.seed(t)

	rec := f.do(t, http.MethodGet, "/api/room/"+testRoom+"/qr", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = f.do(t, http.MethodGet, "/api/room/XXXXXX/qr", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinURL(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "http://localhost:8080/api/room/ABC123/qr", nil)
	assert.Equal(t, "http://192.168.1.5:8080/?room=ABC123", f.api.joinURL(req, testRoom))

	req = httptest.NewRequest(http.MethodGet, "http://game.example.com/api/room/ABC123/qr", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://game.example.com/?room=ABC123", f.api.joinURL(req, testRoom))
}

func TestUnknownEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"endpoint not found"}`, rec.Body.String())
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/create-room", nil)
	req.Header.Set("Origin", "http://phone.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost))

	req = httptest.NewRequest(http.MethodGet, "/api/network-info", nil)
	req.Header.Set("Origin", "http://phone.local")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestPanicHandler(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.api.PanicHandler(rec, httptest.NewRequest(http.MethodGet, "/api/cases", nil), "boom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}
