// Package kv is the persistence seam of the storefront: every piece of state is
// a JSON blob stored under a fixed string key.
package kv

import (
	"context"
	"time"
)

// Store is a string-keyed blob store. Get reports found=false for absent keys
// rather than an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Op describes what happened to a key.
type Op string

const (
	OpSet    Op = "set"
	OpDelete Op = "delete"
)

// Change is delivered to subscribers after a successful write.
type Change struct {
	Key string `json:"key"`
	Op  Op     `json:"op"`
}

// Notifier streams key changes. The channel is closed once ctx is done.
type Notifier interface {
	Subscribe(ctx context.Context) (<-chan Change, error)
}

// Backend is what the binaries wire: a store that can also notify, be pinged
// for readiness, and be closed on shutdown.
type Backend interface {
	Store
	Notifier
	Ping(ctx context.Context) error
	Close() error
}
