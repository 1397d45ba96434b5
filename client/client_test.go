/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/enigma/api"
	"github.com/Seednode/enigma/cases"
	"github.com/Seednode/enigma/room"
	"github.com/Seednode/enigma/verdict"
)

var serverStart = time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)

type testServer struct {
	*httptest.Server
	clock *clockwork.FakeClock
	store *room.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	catalog, err := cases.Default()
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(serverStart)
	store := room.NewStore(room.WithClock(clock))

	a := api.New(store, catalog,
		api.WithPort(8080),
		api.WithLocalIP(func() string { return "10.0.0.7" }),
	)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, clock: clock, store: store}
}

func TestClient_RoomLifecycle(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	id, err := c.CreateRoom(ctx, "Ana")
	require.NoError(t, err)
	require.True(t, room.ValidID(id))

	snap, err := c.JoinRoom(ctx, id, "Bruno")
	require.NoError(t, err)
	assert.Equal(t, "Ana", snap.Host)
	assert.Len(t, snap.Players, 2)

	require.NoError(t, c.SetActiveCase(ctx, id, "Ana", "1"))

	notes := room.EmptyNotes()
	require.NoError(t, notes.Set(room.Clues, "Bruno", "huellas en la puerta"))
	require.NoError(t, c.UpdateNotes(ctx, id, "Bruno", notes))

	snap, err = c.State(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, snap.ActiveCaseID)
	assert.Equal(t, room.CaseID("1"), *snap.ActiveCaseID)
	assert.Equal(t, "huellas en la puerta", snap.Notes.Get(room.Clues, "Bruno"))

	answer := verdict.Answer{
		Culprit:  "Laura Benítez (Administradora)",
		Motive:   "fraude",
		Method:   "Golpe contundente (Traumatismo)",
		Evidence: []int{0, 1, 2},
	}

	votes, players, err := c.SubmitVote(ctx, id, "Ana", answer)
	require.NoError(t, err)
	assert.Equal(t, 1, votes)
	assert.Equal(t, 2, players)

	_, _, err = c.SubmitVote(ctx, id, "Bruno", answer)
	require.NoError(t, err)

	v, err := c.Verdict(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, verdict.PhaseResolved, v.Phase)
	require.NotNil(t, v.Result)
	assert.Equal(t, 100, v.Result.Total)

	require.NoError(t, c.ResetVotes(ctx, id, "Ana"))

	snap, err = c.State(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, snap.Votes)

	info, err := c.NetworkInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, NetworkInfo{IP: "10.0.0.7", Port: 8080}, info)

	res, err := c.Evaluate(ctx, "1", answer)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Total)
	assert.Equal(t, "Master Detective", res.Rank)
}

func TestClient_Errors(t *testing.T) {
	srv := newTestServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.State(ctx, "NOROOM")
	assert.ErrorIs(t, err, ErrRoomClosed)

	_, err = c.JoinRoom(ctx, "NOROOM", "Ana")
	assert.ErrorIs(t, err, ErrRoomClosed)

	id, err := c.CreateRoom(ctx, "Ana")
	require.NoError(t, err)

	_, _, err = c.SubmitVote(ctx, id, "Nadie", verdict.Answer{Culprit: "X"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.NotEmpty(t, se.Message)
	assert.NotErrorIs(t, err, ErrRoomClosed)
}

// flaky fails the first n requests to /api/cases with a 503.
type flaky struct {
	next  http.Handler
	fails atomic.Int32
	hits  atomic.Int32
}

func (f *flaky) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/cases" {
		f.hits.Add(1)
		if f.fails.Add(-1) >= 0 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	f.next.ServeHTTP(w, r)
}

func newFlakyServer(t *testing.T, fails int32) (*httptest.Server, *flaky) {
	t.Helper()

	catalog, err := cases.Default()
	require.NoError(t, err)

	f := &flaky{next: api.New(room.NewStore(), catalog).Handler()}
	f.fails.Store(fails)

	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	return srv, f
}

func TestCases_Retry(t *testing.T) {
	srv, f := newFlakyServer(t, 2)
	c := New(srv.URL, WithCaseRetry(3, time.Millisecond))

	list, err := c.Cases(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "1", list[0].ID)
	assert.Equal(t, int32(3), f.hits.Load())
}

func TestCases_GivesUp(t *testing.T) {
	srv, f := newFlakyServer(t, 100)
	c := New(srv.URL, WithCaseRetry(3, time.Millisecond))

	_, err := c.Cases(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int32(3), f.hits.Load())
}

func TestCases_FallsBackToMemory(t *testing.T) {
	srv, f := newFlakyServer(t, 0)
	c := New(srv.URL, WithCaseRetry(2, time.Millisecond))
	ctx := context.Background()

	first, err := c.Cases(ctx)
	require.NoError(t, err)

	f.fails.Store(100)

	again, err := c.Cases(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestCases_FallsBackToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")

	good, _ := newFlakyServer(t, 0)
	_, err := New(good.URL, WithCacheFile(path)).Cases(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	bad, _ := newFlakyServer(t, 100)
	c := New(bad.URL, WithCacheFile(path), WithCaseRetry(2, time.Millisecond))

	list, err := c.Cases(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Silencio en el apartamento 804", list[0].Title)
}
