// Package bulkv2 implements the Bulk API 2.0 job endpoints: whole-job CSV
// ingest and query jobs under /services/data/{version}/jobs/.
package bulkv2

import (
	"net/http"

	"github.com/johnwards/notforce/internal/bulk"
	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/store"
)

// RegisterRoutes adds the Bulk API 2.0 endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, ids *idgen.Generator, processor *bulk.Processor) {
	h := &Handler{jobs: s.Jobs, ids: ids, processor: processor}

	mux.HandleFunc("POST /services/data/{version}/jobs/ingest", h.CreateIngest)
	mux.HandleFunc("GET /services/data/{version}/jobs/ingest", h.ListIngest)
	mux.HandleFunc("GET /services/data/{version}/jobs/ingest/{jobId}", h.GetIngest)
	mux.HandleFunc("PUT /services/data/{version}/jobs/ingest/{jobId}/batches", h.UploadBatch)
	mux.HandleFunc("PATCH /services/data/{version}/jobs/ingest/{jobId}", h.SetIngestState)
	mux.HandleFunc("DELETE /services/data/{version}/jobs/ingest/{jobId}", h.DeleteIngest)
	mux.HandleFunc("GET /services/data/{version}/jobs/ingest/{jobId}/successfulResults", h.SuccessfulResults)
	mux.HandleFunc("GET /services/data/{version}/jobs/ingest/{jobId}/failedResults", h.FailedResults)
	mux.HandleFunc("GET /services/data/{version}/jobs/ingest/{jobId}/unprocessedrecords", h.UnprocessedRecords)

	mux.HandleFunc("POST /services/data/{version}/jobs/query", h.CreateQuery)
	mux.HandleFunc("GET /services/data/{version}/jobs/query", h.ListQuery)
	mux.HandleFunc("GET /services/data/{version}/jobs/query/{jobId}", h.GetQuery)
	mux.HandleFunc("GET /services/data/{version}/jobs/query/{jobId}/results", h.QueryResults)
	mux.HandleFunc("PATCH /services/data/{version}/jobs/query/{jobId}", h.SetQueryState)
	mux.HandleFunc("DELETE /services/data/{version}/jobs/query/{jobId}", h.DeleteQuery)
}
