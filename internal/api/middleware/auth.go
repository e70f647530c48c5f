package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/apisentinel/apisentinel/internal/domain/project"
	"github.com/apisentinel/apisentinel/internal/pkg/errors"
	"github.com/apisentinel/apisentinel/internal/pkg/utils"
)

// ContextKey is a custom type for context keys
type ContextKey string

const (
	// ProjectKey is the context key for the authenticated project
	ProjectKey ContextKey = "project"
	// APIKeyHeader is the HTTP header carrying the ingest API key
	APIKeyHeader = "X-API-Key"
)

// ProjectResolver resolves an ingest API key to a project
type ProjectResolver interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*project.Project, error)
}

// APIKeyAuth returns a middleware that authenticates ingest requests
// by project API key
func APIKeyAuth(resolver ProjectResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(APIKeyHeader)
			if apiKey == "" {
				// Fall back to Authorization: Bearer <key>
				parts := strings.Split(r.Header.Get("Authorization"), " ")
				if len(parts) == 2 && parts[0] == "Bearer" {
					apiKey = parts[1]
				}
			}

			if apiKey == "" {
				utils.WriteError(w, errors.Unauthorized("Missing API key"))
				return
			}

			p, err := resolver.GetByAPIKey(r.Context(), apiKey)
			if err != nil {
				utils.WriteError(w, errors.Unauthorized("Invalid API key"))
				return
			}

			ctx := context.WithValue(r.Context(), ProjectKey, p)

			AddLogField(w, "project_id", p.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetProject extracts the authenticated project from the request context
func GetProject(r *http.Request) (*project.Project, bool) {
	p, ok := r.Context().Value(ProjectKey).(*project.Project)
	return p, ok
}
