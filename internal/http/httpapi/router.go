package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"text2image/internal/http/handlers"
	"text2image/internal/middleware"
)

// Options carries the pieces of configuration the router needs.
type Options struct {
	CORSAllowedOrigins []string
	RateLimitPerMin    int
	// Static, when set, serves locally stored images under /static.
	Static http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	// Middlewares dasar
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(*app.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.CORSAllowedOrigins),
	)

	// Health
	r.Get("/healthz", app.Health)

	// Docs
	r.Get("/openapi.json", app.OpenAPIJSON)
	r.Get("/docs", app.OpenAPIDocs)
	r.Get("/redoc", app.OpenAPIDocs)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
		r.Post("/image_generation", app.ImageGeneration)
		r.Post("/image_to_image", app.ImageToImage)
	})

	if opts.Static != nil {
		r.Mount("/static", http.StripPrefix("/static", opts.Static))
	}

	return r
}
