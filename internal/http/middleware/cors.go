package middleware

import (
	"net/http"

	"github.com/garagedesk/workshop-api/internal/config"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func allowAnyOrigin(r *http.Request, origin string) bool { return origin != "" }
func denyAllOrigins(r *http.Request, origin string) bool { return false }

func isDevLike(environment string) bool {
	return environment == "development" || environment == "local" || environment == ""
}

// CORS builds the cross-origin policy from config. The frontend origin
// list is explicit in deployed environments; development falls back to
// allowing any origin so local frontends on arbitrary ports work.
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   cfg.ExposedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	switch {
	case containsWildcard(cfg.AllowedOrigins):
		if !isDevLike(environment) {
			logger.Warn("wildcard CORS origin outside development",
				zap.String("environment", environment))
		}
		options.AllowOriginFunc = allowAnyOrigin

	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS origins configured",
			zap.Strings("origins", cfg.AllowedOrigins))

	case isDevLike(environment):
		options.AllowOriginFunc = allowAnyOrigin
		logger.Info("CORS allowing all origins for development")

	default:
		// An empty AllowedOrigins list means "*" to go-chi/cors, so the
		// deny case has to go through AllowOriginFunc.
		options.AllowOriginFunc = denyAllOrigins
		logger.Warn("no CORS origins configured, denying cross-origin requests",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if origin == "*" {
			return true
		}
	}
	return false
}
