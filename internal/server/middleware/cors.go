package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// DefaultAllowedMethods are the methods advertised to cross-origin callers.
var DefaultAllowedMethods = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPut,
	http.MethodPatch,
	http.MethodPost,
	http.MethodDelete,
}

type CORSConfig struct {
	// AllowedOrigins restricts cross-origin access. Empty means any origin ("*").
	AllowedOrigins []string

	// MaxAge is how long (in seconds) browsers may cache a preflight response. 0 omits the header.
	MaxAge int
}

// CORS returns a middleware applying the cross-origin policy. Preflight
// requests are answered here and never reach the router.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: DefaultAllowedMethods,
		AllowedHeaders: []string{"*"},
		MaxAge:         cfg.MaxAge,
		// preflights are answered with an empty 204
		OptionsSuccessStatus: http.StatusNoContent,
	})
}
