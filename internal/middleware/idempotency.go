package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/viewfinder/internal/idempotency"
)

// IdempotencyKeyHeader is the HTTP header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayedHeader marks a response served from the store.
const IdempotentReplayedHeader = "Idempotent-Replayed"

// IdempotencyConfig configures the Idempotency middleware.
type IdempotencyConfig struct {
	// Expiry is how long a completed response is replayed.
	Expiry time.Duration
	// LockTTL bounds an in-flight reservation.
	LockTTL time.Duration
	Metrics *Metrics
	Logger  *slog.Logger
}

// idempotencyResponseWriter copies the response so it can be stored.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the first 2xx response of a request carrying an
// Idempotency-Key header. Requests without the header pass through. A
// retry that arrives while the first request still runs gets 409. When the
// store is unavailable requests pass through without protection.
func Idempotency(store idempotency.Store, cfg IdempotencyConfig) func(http.Handler) http.Handler {
	if cfg.Expiry <= 0 {
		cfg.Expiry = idempotency.DefaultExpiry
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = idempotency.DefaultLockTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	observe := func(outcome string) {
		if cfg.Metrics != nil {
			cfg.Metrics.IncIdempotency(outcome)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if err := idempotency.ValidateKey(key); err != nil {
				message := "Invalid Idempotency-Key format"
				if errors.Is(err, idempotency.ErrKeyTooLong) {
					message = "Idempotency-Key exceeds maximum length of 64 characters"
				}
				UpdateResponseContext(w, SetErrorCode(r.Context(), "validation_error"))
				writeJSONError(w, http.StatusBadRequest, "validation_error", message)
				return
			}

			ctx := r.Context()
			scoped := idempotency.ScopedKey(r, key)

			rec, err := store.Get(ctx, scoped)
			switch {
			case err == nil:
				observe("replayed")
				cfg.Logger.InfoContext(ctx, "idempotency key found, returning stored response",
					slog.String("route", r.URL.Path),
					slog.Int("status", rec.StatusCode),
				)
				if rec.ContentType != "" {
					w.Header().Set("Content-Type", rec.ContentType)
				}
				w.Header().Set(IdempotentReplayedHeader, "true")
				w.Header().Set("Content-Length", strconv.Itoa(len(rec.Body)))
				w.WriteHeader(rec.StatusCode)
				_, _ = w.Write(rec.Body)
				return
			case errors.Is(err, idempotency.ErrInFlight):
				observe("in_flight")
				UpdateResponseContext(w, SetErrorCode(ctx, "conflict"))
				writeJSONError(w, http.StatusConflict, "conflict", "A request with this Idempotency-Key is still in progress")
				return
			case !errors.Is(err, idempotency.ErrKeyNotFound):
				observe("store_error")
				cfg.Logger.ErrorContext(ctx, "failed to check idempotency key", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			if err := store.Reserve(ctx, scoped, cfg.LockTTL); err != nil {
				if errors.Is(err, idempotency.ErrKeyExists) {
					observe("in_flight")
					UpdateResponseContext(w, SetErrorCode(ctx, "conflict"))
					writeJSONError(w, http.StatusConflict, "conflict", "A request with this Idempotency-Key is still in progress")
					return
				}
				observe("store_error")
				cfg.Logger.ErrorContext(ctx, "failed to reserve idempotency key", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			// A disconnecting client must not leave the key reserved.
			storeCtx := context.WithoutCancel(ctx)
			capture := &idempotencyResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			completed := false
			defer func() {
				if !completed {
					// The handler failed or panicked; let the client retry.
					if err := store.Release(storeCtx, scoped); err != nil {
						cfg.Logger.ErrorContext(ctx, "failed to release idempotency key", slog.String("error", err.Error()))
					}
				}
			}()

			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				return
			}
			err = store.Complete(storeCtx, &idempotency.Record{
				Key:         scoped,
				Method:      r.Method,
				Route:       r.URL.Path,
				StatusCode:  capture.statusCode,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}, cfg.Expiry)
			if err != nil {
				cfg.Logger.ErrorContext(ctx, "failed to store idempotency response", slog.String("error", err.Error()))
				return
			}
			completed = true
			observe("stored")
		})
	}
}
