package objectpool

import "errors"

// Sentinel errors for pool operations
var (
	// ErrPoolExhausted indicates all slots are occupied; the pool never
	// blocks or grows, so acquisition fails immediately
	ErrPoolExhausted = errors.New("object pool exhausted")
)
