// Package bulkv1 implements the legacy Bulk API surface: XML jobInfo and
// batchInfo documents under /services/async/{version}/job, with batches
// processed synchronously on upload.
package bulkv1

import (
	"net/http"

	"github.com/johnwards/notforce/internal/bulk"
	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/schema"
	"github.com/johnwards/notforce/internal/store"
)

// RegisterRoutes adds the Bulk API v1 endpoints to the given mux.
func RegisterRoutes(mux *http.ServeMux, s *store.Store, schemas *schema.Registry, ids *idgen.Generator, processor *bulk.Processor) {
	h := &Handler{jobs: s.Jobs, schemas: schemas, ids: ids, processor: processor}

	mux.HandleFunc("POST /services/async/{version}/job", h.CreateJob)
	mux.HandleFunc("POST /services/async/{version}/job/{jobId}", h.SetState)
	mux.HandleFunc("GET /services/async/{version}/job/{jobId}", h.GetJob)
	mux.HandleFunc("POST /services/async/{version}/job/{jobId}/batch", h.AddBatch)
	mux.HandleFunc("GET /services/async/{version}/job/{jobId}/batch", h.ListBatches)
	mux.HandleFunc("GET /services/async/{version}/job/{jobId}/batch/{batchId}", h.GetBatch)
	mux.HandleFunc("GET /services/async/{version}/job/{jobId}/batch/{batchId}/result", h.BatchResult)
}
