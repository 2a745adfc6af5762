package store

import (
	"context"
	"fmt"
	"time"
)

// Key prefixes shared by every backend.
const (
	DayPrefix      = "day:"
	CalendarKey    = "calendar:hash"
	LLMCachePrefix = "llm-cache:"
	WorkflowPrefix = "workflow:"
)

// KV is the minimal key-value surface the importer needs. Values are
// strings; a zero ttl means no expiry.
type KV interface {
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetGet stores value and returns the previous value atomically.
	SetGet(ctx context.Context, key, value string) (prev string, existed bool, err error)
	// Del reports whether a key was removed.
	Del(ctx context.Context, key string) (bool, error)
	Close() error
}

// StoreError wraps a backend failure.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
