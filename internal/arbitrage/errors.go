package arbitrage

import "errors"

var (
	// ErrConfiguration marks a caller mistake at registration or construction time.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks an unregistered symbol or relationship.
	ErrNotFound = errors.New("not found")
	// ErrInvalidBook marks an update carrying a malformed price level.
	ErrInvalidBook = errors.New("invalid order book")
)
