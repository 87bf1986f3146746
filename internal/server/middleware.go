package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pavelanni/examparser/internal/model"
)

// requireAPIKey enforces the configured API keys. With no keys
// configured, authentication is disabled.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.settings.AuthEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key == "" || !s.keyValid(key) {
			w.Header().Set("WWW-Authenticate", "ApiKey")
			writeError(w, http.StatusUnauthorized, model.KindInput, "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) keyValid(key string) bool {
	for _, k := range s.settings.APIKeys {
		if len(k) == len(key) && subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// rateLimit applies the sliding-window limiter per API key, falling
// back to the remote address for unauthenticated deployments.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get("X-API-Key")
		if caller == "" {
			caller = r.URL.Query().Get("api_key")
		}
		if caller == "" {
			caller = r.RemoteAddr
		}

		if retryAfter, ok := s.limiter.allow(caller, time.Now()); !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, model.KindInput, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a per-caller sliding window over the last minute.
type rateLimiter struct {
	mu        sync.Mutex
	perMinute int
	windows   map[string][]time.Time
}

func newRateLimiter(perMinute int) *rateLimiter {
	return &rateLimiter{perMinute: perMinute, windows: make(map[string][]time.Time)}
}

// allow records a request for the caller and reports whether it fits
// in the window. When rejected, retryAfter is the whole-second wait
// until the oldest request ages out.
func (l *rateLimiter) allow(caller string, now time.Time) (retryAfter int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-time.Minute)
	kept := l.windows[caller][:0]
	for _, t := range l.windows[caller] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.perMinute {
		l.windows[caller] = kept
		wait := kept[0].Sub(cutoff)
		secs := int(wait/time.Second) + 1
		return secs, false
	}

	l.windows[caller] = append(kept, now)
	return 0, true
}
