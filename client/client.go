/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package client talks to an enigma server over its polling API and keeps
// a player's local view of a room in step with it.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/Seednode/enigma/cases"
	"github.com/Seednode/enigma/room"
	"github.com/Seednode/enigma/verdict"
)

const (
	DefaultTimeout = 10 * time.Second

	// DefaultCaseAttempts and DefaultCaseWait bound how hard the case list
	// is retried before falling back to the cache.
	DefaultCaseAttempts = 5
	DefaultCaseWait     = 3 * time.Second
)

// ErrRoomClosed is returned when the server no longer knows the room,
// usually because it was swept for inactivity.
var ErrRoomClosed = errors.New("room closed")

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

type errorBody struct {
	Error string `json:"error"`
}

// NetworkInfo is where the server can be reached on the LAN.
type NetworkInfo struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// Verdict is the server-side evaluation of a room's round.
type Verdict struct {
	verdict.Outcome
	CaseID string          `json:"caseId"`
	Result *verdict.Result `json:"result"`
}

type Client struct {
	http  *resty.Client
	cases *resty.Client
	log   zerolog.Logger

	timeout      time.Duration
	caseAttempts int
	caseWait     time.Duration
	cachePath    string

	mu     sync.Mutex
	cached []cases.Case
}

type Option func(*Client)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithCaseRetry sets how many times the case list is requested and how long
// to wait between attempts.
func WithCaseRetry(attempts int, wait time.Duration) Option {
	return func(c *Client) {
		c.caseAttempts = attempts
		c.caseWait = wait
	}
}

// WithCacheFile persists the last good case list to path and reads it back
// when the server cannot be reached.
func WithCacheFile(path string) Option {
	return func(c *Client) { c.cachePath = path }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		log:          zerolog.Nop(),
		timeout:      DefaultTimeout,
		caseAttempts: DefaultCaseAttempts,
		caseWait:     DefaultCaseWait,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(c.timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c.cases = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(c.timeout).
		SetRetryCount(max(c.caseAttempts-1, 0)).
		SetRetryWaitTime(c.caseWait).
		SetRetryMaxWaitTime(c.caseWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		}).
		SetHeader("Accept", "application/json")

	return c
}

func (c *Client) do(ctx context.Context, rc *resty.Client, method, path string, body, result any) error {
	var apiErr errorBody

	req := rc.R().SetContext(ctx).SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.IsError() {
		return fmt.Errorf("%s %s: %w", method, path, &StatusError{
			Code:    resp.StatusCode(),
			Message: apiErr.Error,
		})
	}

	return nil
}

type roomRequest struct {
	RoomID     string `json:"roomId,omitempty"`
	PlayerName string `json:"playerName"`
}

// CreateRoom opens a new room hosted by playerName and returns its id.
func (c *Client) CreateRoom(ctx context.Context, playerName string) (string, error) {
	var resp struct {
		RoomID string `json:"roomId"`
	}

	if err := c.do(ctx, c.http, http.MethodPost, "/api/create-room", roomRequest{PlayerName: playerName}, &resp); err != nil {
		return "", err
	}

	c.log.Debug().Str("room", resp.RoomID).Msg("room created")

	return resp.RoomID, nil
}

// JoinRoom enters roomID as playerName and returns the room's state.
func (c *Client) JoinRoom(ctx context.Context, roomID, playerName string) (*room.Snapshot, error) {
	var resp struct {
		RoomState *room.Snapshot `json:"roomState"`
	}

	err := c.do(ctx, c.http, http.MethodPost, "/api/join-room", roomRequest{RoomID: roomID, PlayerName: playerName}, &resp)
	switch {
	case isNotFound(err):
		return nil, fmt.Errorf("room %s: %w", roomID, ErrRoomClosed)
	case err != nil:
		return nil, err
	case resp.RoomState == nil:
		return nil, fmt.Errorf("join %s: empty room state", roomID)
	}

	return resp.RoomState, nil
}

// State polls the room.
func (c *Client) State(ctx context.Context, roomID string) (*room.Snapshot, error) {
	var snap room.Snapshot

	err := c.do(ctx, c.http, http.MethodGet, "/api/room/"+roomID, nil, &snap)
	switch {
	case isNotFound(err):
		return nil, fmt.Errorf("room %s: %w", roomID, ErrRoomClosed)
	case err != nil:
		return nil, err
	}

	return &snap, nil
}

// Verdict asks the server to evaluate the room's round.
func (c *Client) Verdict(ctx context.Context, roomID string) (*Verdict, error) {
	var v Verdict

	if err := c.do(ctx, c.http, http.MethodGet, "/api/room/"+roomID+"/verdict", nil, &v); err != nil {
		return nil, err
	}

	return &v, nil
}

func (c *Client) UpdateNotes(ctx context.Context, roomID, playerName string, notes room.Notes) error {
	body := struct {
		roomRequest
		Notes room.Notes `json:"notes"`
	}{roomRequest{roomID, playerName}, notes}

	return c.do(ctx, c.http, http.MethodPost, "/api/update-notes", body, nil)
}

func (c *Client) SetActiveCase(ctx context.Context, roomID, playerName string, caseID room.CaseID) error {
	body := struct {
		roomRequest
		CaseID room.CaseID `json:"caseId"`
	}{roomRequest{roomID, playerName}, caseID}

	return c.do(ctx, c.http, http.MethodPost, "/api/set-active-case", body, nil)
}

// SubmitVote sends playerName's answer and returns the room's vote
// progress.
func (c *Client) SubmitVote(ctx context.Context, roomID, playerName string, answer verdict.Answer) (int, int, error) {
	body := struct {
		roomRequest
		VoteData verdict.Answer `json:"voteData"`
	}{roomRequest{roomID, playerName}, answer}

	var resp struct {
		TotalVotes   int `json:"totalVotes"`
		TotalPlayers int `json:"totalPlayers"`
	}

	if err := c.do(ctx, c.http, http.MethodPost, "/api/submit-vote", body, &resp); err != nil {
		return 0, 0, err
	}

	return resp.TotalVotes, resp.TotalPlayers, nil
}

func (c *Client) ResetVotes(ctx context.Context, roomID, playerName string) error {
	return c.do(ctx, c.http, http.MethodPost, "/api/reset-votes", roomRequest{roomID, playerName}, nil)
}

func (c *Client) NetworkInfo(ctx context.Context) (NetworkInfo, error) {
	var info NetworkInfo

	err := c.do(ctx, c.http, http.MethodGet, "/api/network-info", nil, &info)

	return info, err
}

// Evaluate scores a single answer against caseID.
func (c *Client) Evaluate(ctx context.Context, caseID room.CaseID, answer verdict.Answer) (verdict.Result, error) {
	body := struct {
		CaseID room.CaseID    `json:"caseId"`
		Answer verdict.Answer `json:"answer"`
	}{caseID, answer}

	var res verdict.Result
	err := c.do(ctx, c.http, http.MethodPost, "/api/evaluate", body, &res)

	return res, err
}

// Cases fetches the case list, retrying server and network failures. When
// every attempt fails the last good list is returned instead, from memory
// or from the cache file.
func (c *Client) Cases(ctx context.Context) ([]cases.Case, error) {
	var list []cases.Case

	err := c.do(ctx, c.cases, http.MethodGet, "/api/cases", nil, &list)
	if err == nil {
		c.remember(list)
		return list, nil
	}

	c.log.Warn().Err(err).Int("attempts", c.caseAttempts).Msg("could not load case list, using cache")

	if cached, cerr := c.cachedCases(); cerr == nil {
		return cached, nil
	}

	return nil, err
}

func (c *Client) remember(list []cases.Case) {
	c.mu.Lock()
	c.cached = list
	c.mu.Unlock()

	if c.cachePath == "" {
		return
	}

	data, err := json.Marshal(list)
	if err != nil {
		c.log.Warn().Err(err).Msg("could not encode case cache")
		return
	}

	if err := os.WriteFile(c.cachePath, data, 0o600); err != nil {
		c.log.Warn().Err(err).Str("path", c.cachePath).Msg("could not write case cache")
	}
}

var errNoCache = errors.New("no cached case list")

func (c *Client) cachedCases() ([]cases.Case, error) {
	c.mu.Lock()
	cached := c.cached
	c.mu.Unlock()

	if cached != nil {
		return cached, nil
	}

	if c.cachePath == "" {
		return nil, errNoCache
	}

	data, err := os.ReadFile(c.cachePath)
	if err != nil {
		return nil, err
	}

	var list []cases.Case
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("case cache %s: %w", c.cachePath, err)
	}

	return list, nil
}
