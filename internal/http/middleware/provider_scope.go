package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wellfront/scheduling-engine/internal/tenancy"
)

// ProviderScope parses the providerID route param and stores it in the
// request context as the tenancy scope. Handlers below it read the scope
// with tenancy.ProviderIDFromContext instead of reparsing the URL.
func ProviderScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "providerID"))
		if err != nil {
			http.Error(w, `{"error": "invalid provider id"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(tenancy.WithProviderID(r.Context(), id)))
	})
}
