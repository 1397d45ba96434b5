/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrPlayerNotFound   = errors.New("player is not in this room")
	ErrNotHost          = errors.New("only the host may do that")
	ErrMalformed        = errors.New("malformed request")
	ErrUnknownCategory  = errors.New("unknown notes category")
	ErrIDSpaceExhausted = errors.New("could not allocate a free room id")
)
