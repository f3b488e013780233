package domain

import "errors"

var (
	ErrInvalidMessage = errors.New("invalid feed message")
	ErrMissingField   = errors.New("missing required field")
	ErrBadPriceLevel  = errors.New("bad price level")
	ErrInvalidParams  = errors.New("invalid simulation parameters")
	ErrNoSnapshot     = errors.New("no orderbook snapshot received yet")
	ErrFeedClosed     = errors.New("feed closed")
	ErrWSDisconnect   = errors.New("websocket disconnected")
)
