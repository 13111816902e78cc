package rest

import (
	"net/http"

	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/schema"
	"github.com/johnwards/notforce/internal/store"
)

// RegisterRoutes adds the sObject REST endpoints and the OAuth token mock to
// the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, schemas *schema.Registry, ids *idgen.Generator) {
	h := &Handler{records: s.Records, schemas: schemas, ids: ids}

	mux.HandleFunc("POST /services/oauth2/token", h.Token)

	mux.HandleFunc("GET /services/data/{version}/limits", h.Limits)
	mux.HandleFunc("GET /services/data/{version}/query", h.Query)

	mux.HandleFunc("GET /services/data/{version}/sobjects/{objectType}/describe", h.Describe)
	mux.HandleFunc("POST /services/data/{version}/sobjects/{objectType}", h.Create)
	mux.HandleFunc("GET /services/data/{version}/sobjects/{objectType}/{id}", h.Get)
	mux.HandleFunc("PATCH /services/data/{version}/sobjects/{objectType}/{id}", h.Update)
	mux.HandleFunc("DELETE /services/data/{version}/sobjects/{objectType}/{id}", h.Delete)
	mux.HandleFunc("PATCH /services/data/{version}/sobjects/{objectType}/{extField}/{extValue}", h.Upsert)
}
