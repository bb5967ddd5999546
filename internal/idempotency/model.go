// Package idempotency stores the responses of non-idempotent requests under
// a client-chosen Idempotency-Key so a retried request replays the first
// response instead of running twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrKeyNotFound is returned when no completed response exists for a key.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned by Reserve when the key is already claimed.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInFlight is returned by Get while the first request for a key is
	// still running.
	ErrInFlight = errors.New("idempotency key is in flight")

	// ErrInvalidKey is returned when the key is empty or contains
	// characters outside printable ASCII.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 64

// DefaultExpiry is how long a completed response is replayed.
const DefaultExpiry = 24 * time.Hour

// DefaultLockTTL bounds how long an in-flight reservation blocks retries
// when the server dies before completing it.
const DefaultLockTTL = time.Minute

// Record is a stored response.
type Record struct {
	Key         string    `json:"key"`
	Method      string    `json:"method"`
	Route       string    `json:"route"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type,omitempty"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists reservations and completed responses.
type Store interface {
	// Get returns the completed record for key. It returns ErrKeyNotFound
	// when nothing is stored and ErrInFlight while the key is reserved.
	Get(ctx context.Context, key string) (*Record, error)

	// Reserve claims key for an in-flight request. It returns ErrKeyExists
	// when the key is already reserved or completed.
	Reserve(ctx context.Context, key string, ttl time.Duration) error

	// Complete stores rec for a reserved key, replacing the reservation.
	Complete(ctx context.Context, rec *Record, ttl time.Duration) error

	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}

// ValidateKey checks a client-supplied key.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 0x21 || key[i] > 0x7e {
			return ErrInvalidKey
		}
	}
	return nil
}

// ScopedKey binds a client key to the request it was sent with, so the
// same key on two different routes never replays the wrong response.
func ScopedKey(r *http.Request, key string) string {
	sum := sha256.Sum256([]byte(r.Method + " " + r.URL.Path + "\n" + key))
	return hex.EncodeToString(sum[:])
}
