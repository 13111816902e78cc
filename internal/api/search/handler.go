// Package search implements the SOSL endpoint at
// GET /services/data/{version}/search.
package search

import (
	"fmt"
	"net/http"

	"github.com/johnwards/notforce/internal/api"
	"github.com/johnwards/notforce/internal/domain"
	"github.com/johnwards/notforce/internal/schema"
	"github.com/johnwards/notforce/internal/soql"
	"github.com/johnwards/notforce/internal/sosl"
	"github.com/johnwards/notforce/internal/store"
)

// Handler evaluates SOSL searches across the record store.
type Handler struct {
	records store.RecordStore
	schemas *schema.Registry
}

// RegisterRoutes adds the search endpoint to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, schemas *schema.Registry) {
	h := &Handler{records: s.Records, schemas: schemas}
	mux.HandleFunc("GET /services/data/{version}/search", h.Search)
}

// Search runs the statement in the q parameter. RETURNING objects without a
// schema are skipped, matching the platform's behavior.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")
	if text == "" {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeMalformedSearch, "search string was empty"))
		return
	}

	parsed, err := sosl.Parse(text)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewError(api.CodeMalformedSearch, err.Error()))
		return
	}

	version := r.PathValue("version")
	results := []map[string]any{}
	for _, ret := range parsed.Returning {
		sch, ok := h.schemas.Get(ret.Object)
		if !ok {
			continue
		}

		records, err := h.records.All(r.Context(), sch.Name)
		if err != nil {
			api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
			return
		}

		var matched []domain.Record
		for _, rec := range records {
			if !parsed.Match(rec) {
				continue
			}
			if ret.Where != nil && !soql.Eval(ret.Where, rec) {
				continue
			}
			matched = append(matched, rec)
		}
		if ret.Limit >= 0 && len(matched) > ret.Limit {
			matched = matched[:ret.Limit]
		}

		for _, rec := range matched {
			row := map[string]any{
				"attributes": api.Attributes{
					Type: sch.Name,
					URL:  fmt.Sprintf("/services/data/%s/sobjects/%s/%s", version, sch.Name, rec.ID()),
				},
			}
			if len(ret.Fields) == 0 {
				for k, v := range rec {
					row[k] = v
				}
			} else {
				for _, f := range ret.Fields {
					if v, found := rec[f]; found {
						row[f] = v
					}
				}
			}
			results = append(results, row)
		}
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{"searchRecords": results})
}
