package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

type rateWindow struct {
	remaining int
	resets    time.Time
}

// RateLimit enforces a fixed per-IP request budget per window. Edit jobs
// are expensive on the backend, so rejected calls answer with the same
// JSON error shape the handlers use plus a Retry-After hint. State is
// in-memory; one limiter per process.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	var mu sync.Mutex
	windows := make(map[string]*rateWindow)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			ip := clientIP(r)

			mu.Lock()
			win, ok := windows[ip]
			if !ok || now.After(win.resets) {
				win = &rateWindow{remaining: limit, resets: now.Add(per)}
				windows[ip] = win
			}
			if win.remaining <= 0 {
				wait := time.Until(win.resets)
				mu.Unlock()
				w.Header().Set("Retry-After", strconv.Itoa(int(wait/time.Second)+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			win.remaining--
			mu.Unlock()

			next.ServeHTTP(w, r)
		})
	}
}
