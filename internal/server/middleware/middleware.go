package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/information-sharing-networks/ecommerce-api/internal/api"
	"github.com/information-sharing-networks/ecommerce-api/internal/logger"
)

// ContentSecurityPolicy is the default policy sent by SecurityHeaders.
const ContentSecurityPolicy = "default-src 'self';" +
	"base-uri 'self';" +
	"font-src 'self' https: data:;" +
	"form-action 'self';" +
	"frame-ancestors 'self';" +
	"img-src 'self' data:;" +
	"object-src 'none';" +
	"script-src 'self';" +
	"script-src-attr 'none';" +
	"style-src 'self' https: 'unsafe-inline';" +
	"upgrade-insecure-requests"

// securityHeaders are set on every response, in every environment
var securityHeaders = map[string]string{
	"Content-Security-Policy":           ContentSecurityPolicy,
	"Cross-Origin-Opener-Policy":        "same-origin",
	"Cross-Origin-Resource-Policy":      "same-origin",
	"Origin-Agent-Cluster":              "?1",
	"Referrer-Policy":                   "no-referrer",
	"X-Content-Type-Options":            "nosniff",
	"X-DNS-Prefetch-Control":            "off",
	"X-Download-Options":                "noopen",
	"X-Frame-Options":                   "SAMEORIGIN",
	"X-Permitted-Cross-Domain-Policies": "none",
	"X-XSS-Protection":                  "0",
}

// SecurityHeaders adds security-related headers to all responses.
//
// Strict-Transport-Security is only sent in prod and staging, where the service
// is expected to sit behind TLS.
func SecurityHeaders(environment string) func(http.Handler) http.Handler {
	hsts := environment == "prod" || environment == "staging"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range securityHeaders {
				h.Set(name, value)
			}

			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies one token bucket shared by every client. A non-positive
// requestsPerSecond disables it. Rejected requests get a 429 with Retry-After
// set to the whole seconds until the next token is due.
func RateLimit(requestsPerSecond int32, burst int32) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			reservation := limiter.ReserveN(now, 1)
			if reservation.OK() && reservation.DelayFrom(now) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			// give the token back, the request is not going to wait for it
			retryAfter := retryAfterSeconds(reservation, now)
			reservation.CancelAt(now)

			logger.ContextRequestLogger(r.Context()).Warn("Rate limit exceeded",
				slog.String("component", "RateLimit"),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("retry_after", retryAfter),
			)
			logger.ContextWithLogAttrs(r.Context(), slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			api.RespondWithErrorResponse(w, r, api.NewRateLimitError("Too many requests. Please try again later."))
		})
	}
}

func retryAfterSeconds(reservation *rate.Reservation, now time.Time) int {
	if !reservation.OK() {
		return 1
	}
	return max(1, int(math.Ceil(reservation.DelayFrom(now).Seconds())))
}
