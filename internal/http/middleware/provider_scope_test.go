package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wellfront/scheduling-engine/internal/tenancy"
)

func TestProviderScopeParsesParam(t *testing.T) {
	providerID := uuid.New()
	var seen uuid.UUID

	r := chi.NewRouter()
	r.Route("/providers/{providerID}", func(r chi.Router) {
		r.Use(ProviderScope)
		r.Get("/slots", func(w http.ResponseWriter, req *http.Request) {
			id, ok := tenancy.ProviderIDFromContext(req.Context())
			if !ok {
				t.Fatal("expected provider scope in context")
			}
			seen = id
			w.WriteHeader(http.StatusOK)
		})
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers/"+providerID.String()+"/slots", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen != providerID {
		t.Fatalf("expected scope %s, got %s", providerID, seen)
	}
}

func TestProviderScopeRejectsBadID(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/providers/{providerID}", func(r chi.Router) {
		r.Use(ProviderScope)
		r.Get("/slots", func(w http.ResponseWriter, req *http.Request) {
			t.Fatal("handler must not run for a bad provider id")
		})
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/providers/not-a-uuid/slots", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
