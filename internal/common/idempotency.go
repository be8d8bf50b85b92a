package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem provides an Idempotency-Key middleware backed by Redis. A replayed key
// is refused with 409 for TTL, so a double-submitted checkout runs once.
type Idem struct {
	R   redis.Cmdable
	TTL time.Duration
}

func hashKey(r *http.Request, key string) string {
	scope := RegisterID(r)
	sum := sha256.Sum256([]byte(r.Method + " " + r.URL.Path + "|" + scope + "|" + key))
	return "pos:idem:" + hex.EncodeToString(sum[:])
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

// Middleware enforces idempotency semantics for write endpoints. The key
// holds "pending" while the first request runs and its status code after;
// replays get 409 with that value in details.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := hashKey(r, header)
		ok, err := i.R.SetNX(ctx, key, idemPending, i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "idempotency store error", nil)
			return
		}
		if !ok {
			prior, _ := i.R.Get(ctx, key).Result()
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", map[string]string{"first": prior})
			return
		}

		recorder := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		bg := context.WithoutCancel(ctx)
		if recorder.notApplied || (recorder.status >= 400 && recorder.status < 500) {
			// Rejected requests changed nothing; the register may retry the key.
			_ = i.R.Del(bg, key).Err()
			return
		}
		_ = i.R.SetArgs(bg, key, strconv.Itoa(recorder.status), redis.SetArgs{KeepTTL: true}).Err()
	})
}

const idemPending = "pending"

type statusWriter struct {
	http.ResponseWriter
	status     int
	notApplied bool
}

func (s *statusWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// NotApplied marks the response as having changed nothing, so Idem frees the
// key whatever the status. It is a no-op outside the middleware.
func NotApplied(w http.ResponseWriter) {
	for w != nil {
		if sw, ok := w.(*statusWriter); ok {
			sw.notApplied = true
			return
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return
		}
		w = u.Unwrap()
	}
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
