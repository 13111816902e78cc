// Package admin exposes the emulator's control endpoints under /_notforce/:
// health, state reset, and dumps of records, schemas, and jobs for test
// debugging.
package admin

import (
	"net/http"

	"github.com/johnwards/notforce/internal/api"
	"github.com/johnwards/notforce/internal/domain"
	"github.com/johnwards/notforce/internal/schema"
	"github.com/johnwards/notforce/internal/store"
)

// Handler serves the admin endpoints.
type Handler struct {
	store   *store.Store
	schemas *schema.Registry
}

// RegisterRoutes adds the admin endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, schemas *schema.Registry) {
	h := &Handler{store: s, schemas: schemas}

	mux.HandleFunc("GET /_notforce/health", h.Health)
	mux.HandleFunc("POST /_notforce/reset", h.Reset)
	mux.HandleFunc("GET /_notforce/db", h.Dump)
	mux.HandleFunc("GET /_notforce/db/{objectType}", h.DumpObject)
	mux.HandleFunc("GET /_notforce/schemas", h.Schemas)
	mux.HandleFunc("GET /_notforce/jobs", h.Jobs)
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Reset clears every record and job, returning the emulator to its initial
// state between test runs.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Records.Clear(r.Context()); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	if err := h.store.Jobs.Clear(r.Context()); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Dump returns every stored record grouped by object type.
func (h *Handler) Dump(w http.ResponseWriter, r *http.Request) {
	dump, err := h.store.Records.Dump(r.Context())
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	api.WriteJSON(w, http.StatusOK, dump)
}

// DumpObject returns the records of one object type in insertion order.
func (h *Handler) DumpObject(w http.ResponseWriter, r *http.Request) {
	sch, ok := h.schemas.Get(r.PathValue("objectType"))
	if !ok {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))
		return
	}
	records, err := h.store.Records.All(r.Context(), sch.Name)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	api.WriteJSON(w, http.StatusOK, records)
}

// Schemas returns the registered object schemas keyed by name.
func (h *Handler) Schemas(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]*domain.ObjectSchema)
	for _, name := range h.schemas.Names() {
		if sch, ok := h.schemas.Get(name); ok {
			out[name] = sch
		}
	}
	api.WriteJSON(w, http.StatusOK, out)
}

// Jobs dumps every bulk job across the three pipelines.
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	out := []*domain.Job{}
	for _, jobType := range []domain.JobType{domain.JobTypeIngest, domain.JobTypeQuery, domain.JobTypeBulkV1} {
		jobs, err := h.store.Jobs.List(r.Context(), jobType)
		if err != nil {
			api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
			return
		}
		out = append(out, jobs...)
	}
	api.WriteJSON(w, http.StatusOK, out)
}
