package bulkv1

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/johnwards/notforce/internal/api"
	"github.com/johnwards/notforce/internal/bulk"
	"github.com/johnwards/notforce/internal/bulkcsv"
	"github.com/johnwards/notforce/internal/domain"
	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/schema"
	"github.com/johnwards/notforce/internal/store"
)

// v1 async-API exception codes.
const (
	codeInvalidJob        = "InvalidJob"
	codeInvalidJobState   = "InvalidJobState"
	codeInvalidBatch      = "InvalidBatch"
	codeInvalidBatchState = "InvalidBatchState"
)

// Handler serves the Bulk API v1 surface under /services/async/.
type Handler struct {
	jobs      store.JobStore
	schemas   *schema.Registry
	ids       *idgen.Generator
	processor *bulk.Processor
}

// CreateJob opens a v1 job from an XML jobInfo body.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.WriteXML(w, http.StatusBadRequest, newErrorXML(codeInvalidJob, "unable to read request body"))
		return
	}
	text := string(body)

	operation, _ := extractTag(text, "operation")
	object, _ := extractTag(text, "object")
	contentType, ok := extractTag(text, "contentType")
	if !ok || contentType == "" {
		contentType = "CSV"
	}
	extField, _ := extractTag(text, "externalIdFieldName")

	if operation == "" {
		api.WriteXML(w, http.StatusBadRequest, newErrorXML(codeInvalidJob, "operation is required"))
		return
	}
	if object == "" {
		api.WriteXML(w, http.StatusBadRequest, newErrorXML(codeInvalidJob, "object is required"))
		return
	}
	if _, found := h.schemas.Get(object); !found {
		api.WriteXML(w, http.StatusBadRequest,
			newErrorXML(codeInvalidJob, fmt.Sprintf("sObject type '%s' is not supported.", object)))
		return
	}

	job := &domain.Job{
		ID:                  h.ids.Generate(idgen.PrefixJob),
		Type:                domain.JobTypeBulkV1,
		Operation:           operation,
		Object:              object,
		State:               domain.JobStateOpen,
		ExternalIDFieldName: extField,
		ContentType:         contentType,
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		api.WriteXML(w, http.StatusInternalServerError, newErrorXML(codeInvalidJob, err.Error()))
		return
	}
	api.WriteXML(w, http.StatusCreated, h.describeJob(r, job))
}

// AddBatch uploads one batch of data to an open job and processes it before
// responding, so the returned batchInfo is already terminal.
func (h *Handler) AddBatch(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	if job.State != domain.JobStateOpen {
		api.WriteXML(w, http.StatusBadRequest,
			newErrorXML(codeInvalidJobState, fmt.Sprintf("Job %s is not open. Current state: %s", job.ID, job.State)))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.WriteXML(w, http.StatusBadRequest, newErrorXML(codeInvalidBatch, "unable to read request body"))
		return
	}

	batch := &domain.Batch{
		ID:    h.ids.Generate(idgen.PrefixBatch),
		JobID: job.ID,
		State: domain.BatchStateQueued,
	}

	rows, err := parsePayload(job.ContentType, string(body))
	if err != nil {
		batch.State = domain.BatchStateFailed
		batch.StateMessage = fmt.Sprintf("InvalidBatch:Failed to parse batch data: %v", err)
	} else {
		h.processor.RunBatch(r.Context(), job, batch, rows)
	}

	if err := h.jobs.AddBatch(r.Context(), batch); err != nil {
		api.WriteXML(w, http.StatusInternalServerError, newErrorXML(codeInvalidBatch, err.Error()))
		return
	}
	if err := h.jobs.Update(r.Context(), job); err != nil {
		api.WriteXML(w, http.StatusInternalServerError, newErrorXML(codeInvalidBatch, err.Error()))
		return
	}
	api.WriteXML(w, http.StatusCreated, describeBatch(batch, true))
}

// SetState closes or aborts a job from an XML <state> body. Abort marks any
// non-terminal batches Not Processed.
func (h *Handler) SetState(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.WriteXML(w, http.StatusBadRequest, newErrorXML(codeInvalidJob, "unable to read request body"))
		return
	}
	state, _ := extractTag(string(body), "state")
	if state != string(domain.JobStateClosed) && state != string(domain.JobStateAborted) {
		api.WriteXML(w, http.StatusBadRequest,
			newErrorXML(codeInvalidJobState, fmt.Sprintf("Invalid state: %s. Use 'Closed' or 'Aborted'.", state)))
		return
	}

	if err := job.Transition(domain.JobState(state)); err != nil {
		api.WriteXML(w, http.StatusBadRequest, newErrorXML(codeInvalidJobState, err.Error()))
		return
	}

	if job.State == domain.JobStateAborted {
		batches, err := h.jobs.ListBatches(r.Context(), job.ID)
		if err == nil {
			for _, b := range batches {
				if b.State == domain.BatchStateQueued || b.State == domain.BatchStateInProgress {
					b.State = domain.BatchStateNotProcessed
					if err := h.jobs.UpdateBatch(r.Context(), b); err != nil {
						api.WriteXML(w, http.StatusInternalServerError, newErrorXML(codeInvalidJob, err.Error()))
						return
					}
				}
			}
		}
	}

	if err := h.jobs.Update(r.Context(), job); err != nil {
		api.WriteXML(w, http.StatusInternalServerError, newErrorXML(codeInvalidJob, err.Error()))
		return
	}
	api.WriteXML(w, http.StatusOK, h.describeJob(r, job))
}

// GetJob reports a job's jobInfo document.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	api.WriteXML(w, http.StatusOK, h.describeJob(r, job))
}

// ListBatches reports every batch of a job.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return
	}
	batches, err := h.jobs.ListBatches(r.Context(), job.ID)
	if err != nil {
		api.WriteXML(w, http.StatusInternalServerError, newErrorXML(codeInvalidJob, err.Error()))
		return
	}
	list := batchInfoListXML{Xmlns: xmlNamespace}
	for _, b := range batches {
		list.Batches = append(list.Batches, describeBatch(b, false))
	}
	api.WriteXML(w, http.StatusOK, list)
}

// GetBatch reports one batch's batchInfo document.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	_, batch, ok := h.loadBatch(w, r)
	if !ok {
		return
	}
	api.WriteXML(w, http.StatusOK, describeBatch(batch, true))
}

// BatchResult streams a terminal batch's per-row results, CSV for CSV jobs
// and an XML result list otherwise.
func (h *Handler) BatchResult(w http.ResponseWriter, r *http.Request) {
	job, batch, ok := h.loadBatch(w, r)
	if !ok {
		return
	}
	if batch.State != domain.BatchStateCompleted && batch.State != domain.BatchStateFailed {
		api.WriteXML(w, http.StatusBadRequest,
			newErrorXML(codeInvalidBatchState, fmt.Sprintf("Batch %s is not complete. State: %s", batch.ID, batch.State)))
		return
	}

	if job.ContentType == "CSV" || job.ContentType == "ZIP_CSV" {
		api.WriteCSV(w, http.StatusOK, bulk.BatchResultCSV(batch))
		return
	}

	results := resultsXML{Xmlns: xmlNamespace}
	for _, res := range batch.Results {
		row := resultXML{ID: res.ID, Success: !res.Failed(), Created: res.Created}
		if res.Failed() {
			code, message := splitRowError(res.Error)
			row.Errors = &resultErrorXML{Message: message, StatusCode: code}
		}
		results.Results = append(results.Results, row)
	}
	api.WriteXML(w, http.StatusOK, results)
}

// parsePayload decodes a batch body according to the job's content type.
func parsePayload(contentType, body string) ([]map[string]string, error) {
	switch contentType {
	case "XML", "ZIP_XML":
		return parseSObjects(body)
	case "JSON", "ZIP_JSON":
		var raw []map[string]any
		if err := json.Unmarshal([]byte(body), &raw); err != nil {
			var single map[string]any
			if err := json.Unmarshal([]byte(body), &single); err != nil {
				return nil, fmt.Errorf("parsing JSON payload: %w", err)
			}
			raw = []map[string]any{single}
		}
		rows := make([]map[string]string, 0, len(raw))
		for _, rec := range raw {
			row := make(map[string]string, len(rec))
			for k, v := range rec {
				row[k] = domain.Stringify(v)
			}
			rows = append(rows, row)
		}
		return rows, nil
	default:
		_, rows := bulkcsv.Parse(body)
		return rows, nil
	}
}

// describeJob renders jobInfo, computing the batch counters from the stored
// batches at read time.
func (h *Handler) describeJob(r *http.Request, job *domain.Job) jobInfoXML {
	info := jobInfoXML{
		Xmlns:                  xmlNamespace,
		ID:                     job.ID,
		Operation:              job.Operation,
		Object:                 job.Object,
		CreatedByID:            domain.CreatedByID,
		CreatedDate:            job.CreatedDate,
		SystemModstamp:         job.SystemModstamp,
		State:                  string(job.State),
		ExternalIDFieldName:    job.ExternalIDFieldName,
		ConcurrencyMode:        "Parallel",
		ContentType:            job.ContentType,
		NumberRecordsProcessed: job.NumberRecordsProcessed,
		NumberRecordsFailed:    job.NumberRecordsFailed,
		NumberRetries:          job.Retries,
		APIVersion:             domain.APIVersion,
		TotalProcessingTime:    job.TotalProcessingTime,
	}

	batches, err := h.jobs.ListBatches(r.Context(), job.ID)
	if err != nil {
		return info
	}
	for _, b := range batches {
		info.NumberBatchesTotal++
		switch b.State {
		case domain.BatchStateQueued:
			info.NumberBatchesQueued++
		case domain.BatchStateInProgress:
			info.NumberBatchesInProgress++
		case domain.BatchStateCompleted:
			info.NumberBatchesCompleted++
		case domain.BatchStateFailed:
			info.NumberBatchesFailed++
		}
	}
	return info
}

func describeBatch(batch *domain.Batch, standalone bool) batchInfoXML {
	info := batchInfoXML{
		ID:                     batch.ID,
		JobID:                  batch.JobID,
		State:                  string(batch.State),
		StateMessage:           batch.StateMessage,
		CreatedDate:            batch.CreatedDate,
		SystemModstamp:         batch.SystemModstamp,
		NumberRecordsProcessed: batch.NumberRecordsProcessed,
		NumberRecordsFailed:    batch.NumberRecordsFailed,
	}
	if standalone {
		info.Xmlns = xmlNamespace
	}
	return info
}

func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	jobID := r.PathValue("jobId")
	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil || job.Type != domain.JobTypeBulkV1 {
		api.WriteXML(w, http.StatusNotFound,
			newErrorXML(codeInvalidJob, fmt.Sprintf("Job not found: %s", jobID)))
		return nil, false
	}
	return job, true
}

func (h *Handler) loadBatch(w http.ResponseWriter, r *http.Request) (*domain.Job, *domain.Batch, bool) {
	job, ok := h.loadJob(w, r)
	if !ok {
		return nil, nil, false
	}
	batchID := r.PathValue("batchId")
	batch, err := h.jobs.GetBatch(r.Context(), job.ID, batchID)
	if err != nil {
		api.WriteXML(w, http.StatusNotFound,
			newErrorXML(codeInvalidBatch, fmt.Sprintf("Batch not found: %s", batchID)))
		return nil, nil, false
	}
	return job, batch, true
}
