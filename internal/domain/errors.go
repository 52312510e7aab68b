package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotMember       = errors.New("principal is not a member of this room")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidContent  = errors.New("message content must be 1-2000 characters")
	ErrUnauthorized    = errors.New("not authenticated")
	ErrWrongPassword   = errors.New("wrong room password")
	ErrRateLimited     = errors.New("rate limited")
	ErrMessageNotFound = errors.New("message not found")
)
