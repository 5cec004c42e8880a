package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"qwenedit/internal/http/handlers"
	"qwenedit/internal/infra"
	"qwenedit/internal/middleware"
)

// Options carries the router's cross-cutting configuration.
type Options struct {
	Logger          infra.Logger
	RateLimitPerMin int
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Locale(opts.DefaultLocale, opts.CountryLookup),
		middleware.Logger(opts.Logger),
	)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(opts.AllowedOrigins))
	}
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)
	r.Route("/v1/edits", func(r chi.Router) {
		r.Post("/", app.CreateEdit)
		r.Post("/batch", app.CreateBatch)
	})
	r.Get("/v1/jobs", app.RecentJobs)

	return r
}

// SplitOrigins turns the comma-separated ALLOWED_ORIGINS value into a
// clean slice.
func SplitOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
