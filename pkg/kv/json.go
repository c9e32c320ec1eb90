package kv

import (
	"context"
	"encoding/json"

	"github.com/cespare/xxhash/v2"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
)

// GetJSON decodes the blob at key into dest. Absent keys return found=false
// with a nil error; unreadable blobs return a CodeCorruptData error.
func GetJSON(ctx context.Context, store Store, key string, dest any) (bool, error) {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+key)
	}
	if !found || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return true, pkgerrors.Wrap(pkgerrors.CodeCorruptData, err, "decode "+key)
	}
	return true, nil
}

// SetJSON encodes value and writes it under key.
func SetJSON(ctx context.Context, store Store, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode "+key)
	}
	if err := store.Set(ctx, key, string(payload)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write "+key)
	}
	return nil
}

// Fingerprint hashes a stored blob so a holder can tell whether the key was
// rewritten behind its back. Absent and empty blobs hash to 0.
func Fingerprint(value string, found bool) uint64 {
	if !found || value == "" {
		return 0
	}
	return xxhash.Sum64String(value)
}
