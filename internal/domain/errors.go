package domain

import "errors"

var (
	ErrQueueFull       = errors.New("queue is full")
	ErrStoreDestroyed  = errors.New("store is destroyed")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrInvalidPayload  = errors.New("invalid JSON")
	ErrInvalidKey      = errors.New("invalid key")

	ErrRoomFull     = errors.New("room is full")
	ErrClientClosed = errors.New("client is closed")
)
