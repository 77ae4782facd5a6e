package middleware

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/stockledger/internal/usecase"
)

// IdempotencyKeyHeader is the header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotencyMiddleware replays the stored response of a POST or PUT that
// was already answered successfully under the same key. Keys are scoped to
// the owner, so it must run after OwnerAuth.
type IdempotencyMiddleware struct {
	store usecase.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = usecase.IdempotencyKeyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl}
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		ownerID, _ := OwnerIDFromContext(r.Context())
		key = strconv.FormatInt(ownerID, 10) + ":" + r.Method + ":" + key

		exists, cached, err := m.store.CheckAndSet(r.Context(), key, []byte(usecase.IdempotencyPending), m.ttl)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("idempotency check failed")
			writeIdempotencyError(w, http.StatusInternalServerError, "idempotency check failed", true)
			return
		}

		if exists {
			if cached == nil || string(cached) == usecase.IdempotencyPending {
				writeIdempotencyError(w, http.StatusConflict, "a request with this idempotency key is in progress", true)
				return
			}

			status, body := decodeReplay(cached)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Idempotency-Replay", "true")
			w.WriteHeader(status)
			_, _ = w.Write(body)
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		// Only successes are replayed; a failed request may be resubmitted
		// under the same key.
		if recorder.statusCode >= 200 && recorder.statusCode < 300 {
			err = m.store.Update(r.Context(), key, encodeReplay(recorder.statusCode, recorder.body.Bytes()), m.ttl)
		} else {
			err = m.store.Release(r.Context(), key)
		}
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("idempotency store update failed")
		}
	})
}

// encodeReplay prefixes the body with its status line, "201\n{...}".
func encodeReplay(status int, body []byte) []byte {
	out := make([]byte, 0, len(body)+4)
	out = strconv.AppendInt(out, int64(status), 10)
	out = append(out, '\n')
	return append(out, body...)
}

func decodeReplay(stored []byte) (int, []byte) {
	i := bytes.IndexByte(stored, '\n')
	if i <= 0 {
		return http.StatusOK, stored
	}

	status, err := strconv.Atoi(string(stored[:i]))
	if err != nil {
		return http.StatusOK, stored
	}

	return status, stored[i+1:]
}

func writeIdempotencyError(w http.ResponseWriter, status int, msg string, retryable bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"idempotency","message":"` + msg + `","retryable":` + strconv.FormatBool(retryable) + `}`))
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
