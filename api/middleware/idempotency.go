package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/laglue/storefront/api/responses"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
)

const (
	// IdempotencyKeyHeader lets the browser retry a checkout without
	// generating a second order code.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader marks a response served from a stored record.
	IdempotentReplayHeader = "Idempotent-Replayed"

	idempotencyKeyPrefix  = "laglue_idempotency:"
	defaultIdempotencyTTL = 24 * time.Hour
	inFlightTTL           = 30 * time.Second
	maxIdempotencyKeyLen  = 128
)

type idempotencyState string

const (
	statePending  idempotencyState = "pending"
	stateComplete idempotencyState = "complete"
)

// idempotencyRecord is what sits under a device's idempotency key: a
// short-lived pending claim while the checkout runs, then the response.
type idempotencyRecord struct {
	State       idempotencyState `json:"state"`
	RequestHash string           `json:"request_hash"`
	Status      int              `json:"status,omitempty"`
	ContentType string           `json:"content_type,omitempty"`
	Body        json.RawMessage  `json:"body,omitempty"`
}

// Idempotency replays the stored response when a request repeats its
// Idempotency-Key on the same device. A second request arriving while the
// first is still running gets a conflict instead of a second order. Requests
// without the header pass through and server errors release the key.
func Idempotency(store kv.Store, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if clientKey == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "clé d'idempotence trop longue").
					WithDetails(map[string]any{"header": IdempotencyKeyHeader, "max": maxIdempotencyKeyLen}))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := digest(body)
			key := idempotencyStoreKey(DeviceIDFromContext(ctx), r.Method, r.URL.Path, clientKey)

			claimed, err := claimIdempotencyKey(ctx, store, key, requestHash)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if !claimed {
				existing, err := loadIdempotencyRecord(ctx, store, key)
				if err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				switch {
				case existing == nil:
					// released between our claim and read; treat as a fresh request
					next.ServeHTTP(w, r)
				case existing.RequestHash != requestHash:
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "clé d'idempotence déjà utilisée pour une autre requête"))
				case existing.State == statePending:
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "requête déjà en cours de traitement"))
				default:
					replay(w, existing)
				}
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// the request context may already be canceled by now
			persistCtx := context.WithoutCancel(ctx)
			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Delete(persistCtx, key); err != nil {
					logError(persistCtx, logg, "idempotency.release_failed", err)
				}
				return
			}
			record := idempotencyRecord{
				State:       stateComplete,
				RequestHash: requestHash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
			}
			if captured := capture.body.Bytes(); json.Valid(captured) {
				record.Body = append(json.RawMessage(nil), captured...)
			}
			if err := saveIdempotencyRecord(persistCtx, store, key, record, ttl); err != nil {
				logError(persistCtx, logg, "idempotency.persist_failed", err)
			}
		})
	}
}

func claimIdempotencyKey(ctx context.Context, store kv.Store, key, requestHash string) (bool, error) {
	payload, err := json.Marshal(idempotencyRecord{State: statePending, RequestHash: requestHash})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency claim")
	}
	ok, err := store.SetNX(ctx, key, string(payload), inFlightTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	return ok, nil
}

func loadIdempotencyRecord(ctx context.Context, store kv.Store, key string) (*idempotencyRecord, error) {
	raw, found, err := store.Get(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if !found {
		return nil, nil
	}
	var record idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCorruptData, err, "decode idempotency record")
	}
	return &record, nil
}

// saveIdempotencyRecord swaps the pending claim for the final record. The
// store only applies a TTL through SetNX, hence the delete first.
func saveIdempotencyRecord(ctx context.Context, store kv.Store, key string, record idempotencyRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, key); err != nil {
		return err
	}
	_, err = store.SetNX(ctx, key, string(payload), ttl)
	return err
}

func idempotencyStoreKey(deviceID, method, path, clientKey string) string {
	scope := strings.Join([]string{method, path, clientKey}, "|")
	return kv.DeviceKey(deviceID, idempotencyKeyPrefix+digest([]byte(scope)))
}

func replay(w http.ResponseWriter, record *idempotencyRecord) {
	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(IdempotentReplayHeader, "true")
	w.WriteHeader(record.Status)
	if len(record.Body) > 0 {
		_, _ = w.Write(record.Body)
	}
}

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:16])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
