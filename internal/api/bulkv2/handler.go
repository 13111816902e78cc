package bulkv2

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/johnwards/notforce/internal/api"
	"github.com/johnwards/notforce/internal/bulk"
	"github.com/johnwards/notforce/internal/bulkcsv"
	"github.com/johnwards/notforce/internal/domain"
	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/store"
)

// Handler serves the Bulk API 2.0 ingest and query surfaces.
type Handler struct {
	jobs      store.JobStore
	ids       *idgen.Generator
	processor *bulk.Processor
}

var ingestOperations = map[string]bool{
	"insert":     true,
	"update":     true,
	"upsert":     true,
	"delete":     true,
	"hardDelete": true,
}

// jobInfo is the job description body shared by every 2.0 response.
type jobInfo struct {
	ID                     string  `json:"id"`
	Operation              string  `json:"operation"`
	Object                 string  `json:"object"`
	CreatedByID            string  `json:"createdById"`
	CreatedDate            string  `json:"createdDate"`
	SystemModstamp         string  `json:"systemModstamp"`
	State                  string  `json:"state"`
	ExternalIDFieldName    string  `json:"externalIdFieldName,omitempty"`
	ConcurrencyMode        string  `json:"concurrencyMode"`
	ContentType            string  `json:"contentType"`
	APIVersion             float64 `json:"apiVersion"`
	JobType                string  `json:"jobType"`
	LineEnding             string  `json:"lineEnding"`
	ColumnDelimiter        string  `json:"columnDelimiter"`
	NumberRecordsProcessed int     `json:"numberRecordsProcessed"`
	NumberRecordsFailed    int     `json:"numberRecordsFailed"`
	Retries                int     `json:"retries"`
	TotalProcessingTime    int64   `json:"totalProcessingTime"`
}

func describeJob(job *domain.Job) jobInfo {
	return jobInfo{
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
		APIVersion:             domain.APIVersion,
		JobType:                string(job.Type),
		LineEnding:             job.LineEnding,
		ColumnDelimiter:        job.ColumnDelimiter,
		NumberRecordsProcessed: job.NumberRecordsProcessed,
		NumberRecordsFailed:    job.NumberRecordsFailed,
		Retries:                job.Retries,
		TotalProcessingTime:    job.TotalProcessingTime,
	}
}

// CreateIngest opens a new ingest job.
func (h *Handler) CreateIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Object              string `json:"object"`
		Operation           string `json:"operation"`
		ExternalIDFieldName string `json:"externalIdFieldName"`
		ContentType         string `json:"contentType"`
		LineEnding          string `json:"lineEnding"`
		ColumnDelimiter     string `json:"columnDelimiter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJob, "Unable to parse job request: "+err.Error()))
		return
	}

	if !ingestOperations[req.Operation] {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJob, fmt.Sprintf("Invalid job operation: %s", req.Operation)))
		return
	}
	if req.Object == "" {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJob, "Object is required"))
		return
	}
	if req.Operation == "upsert" && req.ExternalIDFieldName == "" {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJob, "External ID field name is required for upsert jobs"))
		return
	}

	job := &domain.Job{
		ID:                  h.ids.Generate(idgen.PrefixJob),
		Type:                domain.JobTypeIngest,
		Operation:           req.Operation,
		Object:              req.Object,
		State:               domain.JobStateOpen,
		ExternalIDFieldName: req.ExternalIDFieldName,
		ContentType:         orDefault(req.ContentType, "CSV"),
		LineEnding:          orDefault(req.LineEnding, "LF"),
		ColumnDelimiter:     orDefault(req.ColumnDelimiter, "COMMA"),
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	api.WriteJSON(w, http.StatusOK, describeJob(job))
}

// ListIngest lists ingest jobs newest first.
func (h *Handler) ListIngest(w http.ResponseWriter, r *http.Request) {
	h.listJobs(w, r, domain.JobTypeIngest)
}

// GetIngest reports one ingest job.
func (h *Handler) GetIngest(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r, domain.JobTypeIngest)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, describeJob(job))
}

// UploadBatch appends a CSV body to an open ingest job. Repeat uploads with
// the same header line contribute rows only.
func (h *Handler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r, domain.JobTypeIngest)
	if !ok {
		return
	}
	if job.State != domain.JobStateOpen {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJobState, fmt.Sprintf("Job is in state %s and cannot accept data", job.State)))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewError(api.CodeInvalidJob, "unable to read request body"))
		return
	}

	job.Payload = appendPayload(job.Payload, string(body))
	if err := h.jobs.Update(r.Context(), job); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// appendPayload merges an uploaded chunk into the accumulated payload,
// dropping a repeated header line.
func appendPayload(existing, chunk string) string {
	chunk = strings.TrimRight(chunk, "\r\n")
	if chunk == "" {
		return existing
	}
	if existing == "" {
		return chunk
	}
	if bulkcsv.HeaderLine(chunk) == bulkcsv.HeaderLine(existing) {
		rest := chunk[len(bulkcsv.HeaderLine(chunk)):]
		rest = strings.TrimLeft(rest, "\r\n")
		if rest == "" {
			return existing
		}
		chunk = rest
	}
	return existing + "\n" + chunk
}

// SetIngestState applies a client state change. UploadComplete triggers
// processing before the response is written.
func (h *Handler) SetIngestState(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r, domain.JobTypeIngest)
	if !ok {
		return
	}

	var req struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJob, "Unable to parse job request: "+err.Error()))
		return
	}

	if err := job.Transition(domain.JobState(req.State)); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewError(api.CodeInvalidJobState, err.Error()))
		return
	}

	if job.State == domain.JobStateUploadComplete {
		h.processor.RunIngest(r.Context(), job)
	}

	if err := h.jobs.Update(r.Context(), job); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	api.WriteJSON(w, http.StatusOK, describeJob(job))
}

// DeleteIngest removes a job and its stored results.
func (h *Handler) DeleteIngest(w http.ResponseWriter, r *http.Request) {
	h.deleteJob(w, r, domain.JobTypeIngest)
}

// SuccessfulResults streams the success CSV for a finished ingest job.
func (h *Handler) SuccessfulResults(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadFinishedJob(w, r)
	if !ok {
		return
	}
	api.WriteCSV(w, http.StatusOK, bulk.SuccessCSV(job))
}

// FailedResults streams the failure CSV for a finished ingest job.
func (h *Handler) FailedResults(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadFinishedJob(w, r)
	if !ok {
		return
	}
	api.WriteCSV(w, http.StatusOK, bulk.FailureCSV(job))
}

// UnprocessedRecords streams the unprocessed-rows CSV, which for a job that
// ran to completion is the header line only.
func (h *Handler) UnprocessedRecords(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadFinishedJob(w, r)
	if !ok {
		return
	}
	api.WriteCSV(w, http.StatusOK, bulk.UnprocessedCSV(job))
}

// CreateQuery opens a query job and executes it before responding, so the
// job is already terminal when the client polls.
func (h *Handler) CreateQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operation       string `json:"operation"`
		Query           string `json:"query"`
		ContentType     string `json:"contentType"`
		LineEnding      string `json:"lineEnding"`
		ColumnDelimiter string `json:"columnDelimiter"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJob, "Unable to parse job request: "+err.Error()))
		return
	}
	if req.Operation != "query" && req.Operation != "queryAll" {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJob, fmt.Sprintf("Invalid job operation: %s", req.Operation)))
		return
	}
	if req.Query == "" {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJob, "Query is required"))
		return
	}

	job := &domain.Job{
		ID:              h.ids.Generate(idgen.PrefixJob),
		Type:            domain.JobTypeQuery,
		Operation:       req.Operation,
		State:           domain.JobStateUploadComplete,
		Query:           req.Query,
		ContentType:     orDefault(req.ContentType, "CSV"),
		LineEnding:      orDefault(req.LineEnding, "LF"),
		ColumnDelimiter: orDefault(req.ColumnDelimiter, "COMMA"),
	}

	h.processor.RunQuery(r.Context(), job)

	if err := h.jobs.Create(r.Context(), job); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	api.WriteJSON(w, http.StatusOK, describeJob(job))
}

// ListQuery lists query jobs newest first.
func (h *Handler) ListQuery(w http.ResponseWriter, r *http.Request) {
	h.listJobs(w, r, domain.JobTypeQuery)
}

// GetQuery reports one query job.
func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r, domain.JobTypeQuery)
	if !ok {
		return
	}
	api.WriteJSON(w, http.StatusOK, describeJob(job))
}

// QueryResults streams a query job's result CSV. Every result fits one page,
// so the locator header is always the literal null.
func (h *Handler) QueryResults(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r, domain.JobTypeQuery)
	if !ok {
		return
	}
	if job.State != domain.JobStateJobComplete {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJobState, fmt.Sprintf("Job is in state %s and has no results", job.State)))
		return
	}
	w.Header().Set("Sforce-Locator", "null")
	w.Header().Set("Sforce-NumberOfRecords", fmt.Sprintf("%d", job.NumberRecordsProcessed))
	api.WriteCSV(w, http.StatusOK, job.QueryResults)
}

// SetQueryState handles abort requests for query jobs.
func (h *Handler) SetQueryState(w http.ResponseWriter, r *http.Request) {
	job, ok := h.loadJob(w, r, domain.JobTypeQuery)
	if !ok {
		return
	}

	var req struct {
		State string `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJob, "Unable to parse job request: "+err.Error()))
		return
	}
	if err := job.Transition(domain.JobState(req.State)); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.NewError(api.CodeInvalidJobState, err.Error()))
		return
	}
	if err := h.jobs.Update(r.Context(), job); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	api.WriteJSON(w, http.StatusOK, describeJob(job))
}

// DeleteQuery removes a query job.
func (h *Handler) DeleteQuery(w http.ResponseWriter, r *http.Request) {
	h.deleteJob(w, r, domain.JobTypeQuery)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request, jobType domain.JobType) {
	jobs, err := h.jobs.List(r.Context(), jobType)
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	records := make([]any, 0, len(jobs))
	for _, job := range jobs {
		records = append(records, describeJob(job))
	}
	api.WriteJSON(w, http.StatusOK, api.ListResponse{Done: true, Records: records, NextRecordsURL: nil})
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request, jobType domain.JobType) {
	job, ok := h.loadJob(w, r, jobType)
	if !ok {
		return
	}
	if err := h.jobs.Delete(r.Context(), job.ID); err != nil {
		api.WriteError(w, http.StatusInternalServerError, api.NewError(api.CodeUnknownException, err.Error()))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadJob fetches the path's job and checks it belongs to the surface being
// served, so an ingest job ID cannot be read through the query endpoints.
func (h *Handler) loadJob(w http.ResponseWriter, r *http.Request, jobType domain.JobType) (*domain.Job, bool) {
	job, err := h.jobs.Get(r.Context(), r.PathValue("jobId"))
	if err != nil || job.Type != jobType {
		api.WriteError(w, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))
		return nil, false
	}
	return job, true
}

func (h *Handler) loadFinishedJob(w http.ResponseWriter, r *http.Request) (*domain.Job, bool) {
	job, ok := h.loadJob(w, r, domain.JobTypeIngest)
	if !ok {
		return nil, false
	}
	if !job.Terminal() {
		api.WriteError(w, http.StatusBadRequest,
			api.NewError(api.CodeInvalidJobState, fmt.Sprintf("Job is in state %s and has no results", job.State)))
		return nil, false
	}
	return job, true
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
