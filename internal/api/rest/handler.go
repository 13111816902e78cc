package rest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/johnwards/notforce/internal/api"
	"github.com/johnwards/notforce/internal/domain"
	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/schema"
	"github.com/johnwards/notforce/internal/soql"
	"github.com/johnwards/notforce/internal/store"
	"github.com/johnwards/notforce/internal/validate"
)

// Handler serves the synchronous sObject endpoints.
type Handler struct {
	records store.RecordStore
	schemas *schema.Registry
	ids     *idgen.Generator
}

// saveResult is the create/upsert response body.
type saveResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Created bool   `json:"created,omitempty"`
	Errors  []any  `json:"errors"`
}

// Token mocks the OAuth password/client-credentials flows: any credentials
// are accepted and a static-shaped token comes back.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"access_token": "notforce-" + fmt.Sprintf("%015d", r.ContentLength),
		"instance_url": "http://" + r.Host,
		"id":           "http://" + r.Host + "/id/00D000000000000EAA/" + domain.CreatedByID,
		"token_type":   "Bearer",
		"issued_at":    store.Now(),
		"signature":    "notforce",
	})
}

// Limits reports a static quota snapshot, enough for clients that poll it.
func (h *Handler) Limits(w http.ResponseWriter, _ *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"DailyApiRequests":     map[string]int{"Max": 15000, "Remaining": 14999},
		"DailyBulkApiBatches":  map[string]int{"Max": 15000, "Remaining": 15000},
		"DailyBulkV2QueryJobs": map[string]int{"Max": 10000, "Remaining": 10000},
		"DataStorageMB":        map[string]int{"Max": 1024, "Remaining": 1024},
	})
}

// Describe returns the field metadata for an object.
func (h *Handler) Describe(w http.ResponseWriter, r *http.Request) {
	sch, ok := h.schemas.Get(r.PathValue("objectType"))
	if !ok {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))
		return
	}

	fields := make([]map[string]any, 0, len(sch.Fields))
	for _, f := range sch.Fields {
		entry := map[string]any{
			"name":       f.Name,
			"label":      f.Label,
			"type":       f.Type,
			"length":     f.Length,
			"nillable":   !f.Required,
			"createable": f.Createable,
			"updateable": f.Updateable,
			"externalId": f.ExternalID,
		}
		if len(f.PicklistValues) > 0 {
			values := make([]map[string]any, 0, len(f.PicklistValues))
			for _, v := range f.PicklistValues {
				values = append(values, map[string]any{"active": true, "label": v, "value": v})
			}
			entry["picklistValues"] = values
		}
		fields = append(fields, entry)
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"name":       sch.Name,
		"label":      sch.Label,
		"keyPrefix":  sch.KeyPrefix,
		"createable": true,
		"updateable": true,
		"queryable":  true,
		"fields":     fields,
	})
}

// Create inserts a record from a JSON body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	sch, ok := h.schemas.Get(r.PathValue("objectType"))
	if !ok {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))
		return
	}

	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	if violations := validate.Record(sch, rec, validate.Create); len(violations) > 0 {
		api.WriteError(w, http.StatusBadRequest, api.FromViolations(violations)...)
		return
	}

	id := h.ids.Generate(sch.KeyPrefix)
	ts := store.Now()
	rec["Id"] = id
	rec["CreatedDate"] = ts
	rec["LastModifiedDate"] = ts
	rec["SystemModstamp"] = ts

	if err := h.records.Insert(r.Context(), sch.Name, rec); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}

	api.WriteJSON(w, http.StatusCreated, saveResult{ID: id, Success: true, Errors: []any{}})
}

// Get reads one record.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sch, ok := h.schemas.Get(r.PathValue("objectType"))
	if !ok {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))
		return
	}

	rec, err := h.records.Get(r.Context(), sch.Name, r.PathValue("id"))
	if err != nil {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))
		return
	}

	body := map[string]any{
		"attributes": api.Attributes{
			Type: sch.Name,
			URL:  recordURL(r.PathValue("version"), sch.Name, rec.ID()),
		},
	}
	for k, v := range rec {
		body[k] = v
	}
	api.WriteJSON(w, http.StatusOK, body)
}

// Update merges a JSON body into an existing record.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	sch, ok := h.schemas.Get(r.PathValue("objectType"))
	if !ok {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))
		return
	}

	existing, err := h.records.Get(r.Context(), sch.Name, r.PathValue("id"))
	if err != nil {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))
		return
	}

	changes, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	delete(changes, "Id")

	if violations := validate.Record(sch, changes, validate.Update); len(violations) > 0 {
		api.WriteError(w, http.StatusBadRequest, api.FromViolations(violations)...)
		return
	}

	merged := existing.Clone()
	for k, v := range changes {
		merged[k] = v
	}
	ts := store.Now()
	merged["LastModifiedDate"] = ts
	merged["SystemModstamp"] = ts

	if err := h.records.Update(r.Context(), sch.Name, existing.ID(), merged); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a record. A missing target reports ENTITY_IS_DELETED the
// way the platform does for repeat deletes.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	sch, ok := h.schemas.Get(r.PathValue("objectType"))
	if !ok {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))
		return
	}

	if err := h.records.Delete(r.Context(), sch.Name, r.PathValue("id")); err != nil {
		if err == store.ErrNotFound {
			api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeEntityIsDeleted, ""))
			return
		}
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Upsert matches on the external ID field in the path. A hit merges the body
// without validation and answers 204; a miss inserts and answers 201 with
// created set.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	sch, ok := h.schemas.Get(r.PathValue("objectType"))
	if !ok {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))
		return
	}
	extField := r.PathValue("extField")
	extValue := r.PathValue("extValue")

	body, ok := decodeRecord(w, r)
	if !ok {
		return
	}

	existing, err := h.records.FindByField(r.Context(), sch.Name, extField, extValue)
	if err == nil {
		merged := existing.Clone()
		for k, v := range body {
			if k == extField || k == "Id" {
				continue
			}
			merged[k] = v
		}
		ts := store.Now()
		merged["LastModifiedDate"] = ts
		merged["SystemModstamp"] = ts

		if err := h.records.Update(r.Context(), sch.Name, existing.ID(), merged); err != nil {
			api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != store.ErrNotFound {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}

	rec := body.Clone()
	rec[extField] = extValue
	if violations := validate.Record(sch, rec, validate.Create); len(violations) > 0 {
		api.WriteError(w, http.StatusBadRequest, api.FromViolations(violations)...)
		return
	}

	id := h.ids.Generate(sch.KeyPrefix)
	ts := store.Now()
	rec["Id"] = id
	rec["CreatedDate"] = ts
	rec["LastModifiedDate"] = ts
	rec["SystemModstamp"] = ts

	if err := h.records.Insert(r.Context(), sch.Name, rec); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	api.WriteJSON(w, http.StatusCreated, saveResult{ID: id, Success: true, Created: true, Errors: []any{}})
}

// Query runs a SOQL statement from the q parameter.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")
	if text == "" {
		api.WriteError(w, http.StatusBadRequest, api.NewError(api.CodeMalformedQuery, "query string was empty"))
		return
	}

	q, err := soql.Parse(text)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewError(api.CodeMalformedQuery, err.Error()))
		return
	}

	sch, ok := h.schemas.Get(q.Object)
	if !ok {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidType, fmt.Sprintf("sObject type '%s' is not supported.", q.Object)))
		return
	}

	records, err := h.records.All(r.Context(), sch.Name)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	matched := soql.Run(q, records)

	if q.Count {
		api.WriteJSON(w, http.StatusOK, api.QueryResponse{
			TotalSize: len(matched),
			Done:      true,
			Records:   []map[string]any{},
		})
		return
	}

	version := r.PathValue("version")
	rows := make([]map[string]any, 0, len(matched))
	for _, rec := range matched {
		var row map[string]any
		if q.Wildcard {
			row = make(map[string]any, len(rec)+1)
			for k, v := range rec {
				row[k] = v
			}
		} else {
			// Fields the record never had are left out of the row, not
			// rendered as null.
			row = make(map[string]any, len(q.Fields)+1)
			for _, f := range q.Fields {
				if v, found := rec[f]; found {
					row[f] = v
				}
			}
		}
		row["attributes"] = api.Attributes{
			Type: sch.Name,
			URL:  recordURL(version, sch.Name, rec.ID()),
		}
		rows = append(rows, row)
	}

	api.WriteJSON(w, http.StatusOK, api.QueryResponse{
		TotalSize: len(rows),
		Done:      true,
		Records:   rows,
	})
}

// decodeRecord reads the JSON body into a Record, writing the error response
// itself on failure.
func decodeRecord(w http.ResponseWriter, r *http.Request) (domain.Record, bool) {
	var rec domain.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError("JSON_PARSER_ERROR", "Unable to parse request body: "+err.Error()))
		return nil, false
	}
	if rec == nil {
		rec = domain.Record{}
	}
	return rec, true
}

func recordURL(version, objectType, id string) string {
	return fmt.Sprintf("/services/data/%s/sobjects/%s/%s", version, objectType, id)
}
