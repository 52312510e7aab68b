package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// OpenAPIValidatorConfig holds configuration for request validation
// against the API description.
type OpenAPIValidatorConfig struct {
	// Enabled controls whether validation is active
	Enabled bool
	// SpecPath is the path to the OpenAPI specification file
	SpecPath string
	// SkipPaths are path prefixes to skip (health, metrics, websocket)
	SkipPaths []string
}

// DefaultOpenAPIValidatorConfig returns the default configuration for
// the given environment. Validation is a development aid; production
// runs without it.
func DefaultOpenAPIValidatorConfig(environment string) *OpenAPIValidatorConfig {
	return &OpenAPIValidatorConfig{
		Enabled:  environment != "production",
		SpecPath: "api/openapi.yaml",
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/ws/",
		},
	}
}

// OpenAPIValidator validates incoming requests against the OpenAPI
// document. Any load or parse failure degrades to a no-op middleware so
// a broken spec file never takes the server down.
func OpenAPIValidator(config *OpenAPIValidatorConfig) func(next http.Handler) http.Handler {
	noop := func(next http.Handler) http.Handler { return next }

	if config == nil || !config.Enabled {
		slog.Info("OpenAPI validation disabled")
		return noop
	}

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(config.SpecPath)
	if err != nil {
		slog.Error("failed to load OpenAPI spec",
			slog.String("path", config.SpecPath),
			slog.String("error", err.Error()))
		return noop
	}
	if err := doc.Validate(loader.Context); err != nil {
		slog.Error("OpenAPI spec validation failed", slog.String("error", err.Error()))
		return noop
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		slog.Error("failed to create OpenAPI router", slog.String("error", err.Error()))
		return noop
	}

	slog.Info("OpenAPI request validation enabled", slog.String("spec_path", config.SpecPath))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if shouldSkipPath(r.URL.Path, config.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				slog.Warn("request path not found in OpenAPI spec",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path))
				writeValidationError(w, fmt.Sprintf("path not described: %s %s", r.Method, r.URL.Path))
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			if err := openapi3filter.ValidateRequest(context.Background(), input); err != nil {
				slog.Warn("request validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()))
				writeValidationError(w, err.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

func writeValidationError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
