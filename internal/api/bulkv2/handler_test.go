package bulkv2

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/johnwards/notforce/internal/bulk"
	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/seed"
	"github.com/johnwards/notforce/internal/store"
	"github.com/johnwards/notforce/internal/testhelpers"
)

func setupMux(t *testing.T) (*http.ServeMux, *store.Store) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	s := store.New(db)
	ids := idgen.NewSeeded(1)
	processor := &bulk.Processor{Records: s.Records, Schemas: seed.Registry(), IDs: ids}
	mux := http.NewServeMux()
	RegisterRoutes(mux, s, ids, processor)
	return mux, s
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeJob(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var job map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decoding job response %q: %v", rec.Body.String(), err)
	}
	return job
}

func TestIngestLifecycle(t *testing.T) {
	mux, _ := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/jobs/ingest",
		`{"object":"Account","operation":"insert"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	job := decodeJob(t, rec)
	if job["state"] != "Open" {
		t.Errorf("state = %v, want Open", job["state"])
	}
	if job["jobType"] != "V2Ingest" {
		t.Errorf("jobType = %v, want V2Ingest", job["jobType"])
	}
	if job["contentType"] != "CSV" {
		t.Errorf("contentType = %v, want CSV", job["contentType"])
	}
	jobID := job["id"].(string)

	rec = do(t, mux, "PUT", "/services/data/v59.0/jobs/ingest/"+jobID+"/batches",
		"Name\nAcme\nInitech")
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, "PATCH", "/services/data/v59.0/jobs/ingest/"+jobID,
		`{"state":"UploadComplete"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("state change status = %d: %s", rec.Code, rec.Body.String())
	}
	job = decodeJob(t, rec)
	if job["state"] != "JobComplete" {
		t.Errorf("state = %v, want JobComplete", job["state"])
	}
	if job["numberRecordsProcessed"] != float64(2) {
		t.Errorf("numberRecordsProcessed = %v, want 2", job["numberRecordsProcessed"])
	}
	if job["numberRecordsFailed"] != float64(0) {
		t.Errorf("numberRecordsFailed = %v, want 0", job["numberRecordsFailed"])
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/jobs/ingest/"+jobID+"/successfulResults", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("successfulResults status = %d", rec.Code)
	}
	lines := strings.Split(rec.Body.String(), "\n")
	if lines[0] != "sf__Id,sf__Created,Name" {
		t.Errorf("success header = %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("got %d success lines, want 3: %q", len(lines), rec.Body.String())
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/jobs/ingest/"+jobID+"/failedResults", "")
	if got := strings.TrimSpace(rec.Body.String()); got != "sf__Id,sf__Error,Name" {
		t.Errorf("failed results = %q, want header only", got)
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/jobs/ingest/"+jobID+"/unprocessedrecords", "")
	if got := strings.TrimSpace(rec.Body.String()); got != "Name" {
		t.Errorf("unprocessed records = %q, want header only", got)
	}
}

func TestIngestRepeatUploadSameHeader(t *testing.T) {
	mux, _ := setupMux(t)

	job := decodeJob(t, do(t, mux, "POST", "/services/data/v59.0/jobs/ingest",
		`{"object":"Account","operation":"insert"}`))
	jobID := job["id"].(string)

	do(t, mux, "PUT", "/services/data/v59.0/jobs/ingest/"+jobID+"/batches", "Name\nAcme")
	do(t, mux, "PUT", "/services/data/v59.0/jobs/ingest/"+jobID+"/batches", "Name\nInitech")

	rec := do(t, mux, "PATCH", "/services/data/v59.0/jobs/ingest/"+jobID,
		`{"state":"UploadComplete"}`)
	job = decodeJob(t, rec)
	if job["numberRecordsProcessed"] != float64(2) {
		t.Errorf("numberRecordsProcessed = %v, want 2", job["numberRecordsProcessed"])
	}
}

func TestIngestUploadAfterClose(t *testing.T) {
	mux, _ := setupMux(t)

	job := decodeJob(t, do(t, mux, "POST", "/services/data/v59.0/jobs/ingest",
		`{"object":"Account","operation":"insert"}`))
	jobID := job["id"].(string)

	do(t, mux, "PATCH", "/services/data/v59.0/jobs/ingest/"+jobID, `{"state":"UploadComplete"}`)

	rec := do(t, mux, "PUT", "/services/data/v59.0/jobs/ingest/"+jobID+"/batches", "Name\nAcme")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("upload after close status = %d, want 400", rec.Code)
	}
	var errs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &errs); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if errs[0]["errorCode"] != "INVALIDJOBSTATE" {
		t.Errorf("errorCode = %v, want INVALIDJOBSTATE", errs[0]["errorCode"])
	}
}

func TestIngestUpsertRequiresExternalID(t *testing.T) {
	mux, _ := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/jobs/ingest",
		`{"object":"Account","operation":"upsert"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var errs []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &errs); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if errs[0]["errorCode"] != "INVALIDJOB" {
		t.Errorf("errorCode = %v, want INVALIDJOB", errs[0]["errorCode"])
	}
}

func TestIngestInvalidOperation(t *testing.T) {
	mux, _ := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/jobs/ingest",
		`{"object":"Account","operation":"merge"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestIngestAbort(t *testing.T) {
	mux, _ := setupMux(t)

	job := decodeJob(t, do(t, mux, "POST", "/services/data/v59.0/jobs/ingest",
		`{"object":"Account","operation":"insert"}`))
	jobID := job["id"].(string)

	rec := do(t, mux, "PATCH", "/services/data/v59.0/jobs/ingest/"+jobID, `{"state":"Aborted"}`)
	job = decodeJob(t, rec)
	if job["state"] != "Aborted" {
		t.Errorf("state = %v, want Aborted", job["state"])
	}

	rec = do(t, mux, "PATCH", "/services/data/v59.0/jobs/ingest/"+jobID, `{"state":"UploadComplete"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("transition from Aborted status = %d, want 400", rec.Code)
	}
}

func TestIngestListAndDelete(t *testing.T) {
	mux, _ := setupMux(t)

	first := decodeJob(t, do(t, mux, "POST", "/services/data/v59.0/jobs/ingest",
		`{"object":"Account","operation":"insert"}`))
	second := decodeJob(t, do(t, mux, "POST", "/services/data/v59.0/jobs/ingest",
		`{"object":"Contact","operation":"insert"}`))

	rec := do(t, mux, "GET", "/services/data/v59.0/jobs/ingest", "")
	var list struct {
		Done    bool             `json:"done"`
		Records []map[string]any `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding list: %v", err)
	}
	if !list.Done || len(list.Records) != 2 {
		t.Fatalf("done = %v records = %d, want true 2", list.Done, len(list.Records))
	}
	if list.Records[0]["id"] != second["id"] {
		t.Errorf("list order: first entry = %v, want newest %v", list.Records[0]["id"], second["id"])
	}

	rec = do(t, mux, "DELETE", "/services/data/v59.0/jobs/ingest/"+first["id"].(string), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	rec = do(t, mux, "GET", "/services/data/v59.0/jobs/ingest/"+first["id"].(string), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", rec.Code)
	}
}

func TestQueryJob(t *testing.T) {
	mux, s := setupMux(t)
	seedAccounts(t, s)

	rec := do(t, mux, "POST", "/services/data/v59.0/jobs/query",
		`{"operation":"query","query":"SELECT Name FROM Account ORDER BY Name ASC"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	job := decodeJob(t, rec)
	if job["state"] != "JobComplete" {
		t.Fatalf("state = %v, want JobComplete", job["state"])
	}
	jobID := job["id"].(string)

	rec = do(t, mux, "GET", "/services/data/v59.0/jobs/query/"+jobID+"/results", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("results status = %d", rec.Code)
	}
	if got := rec.Header().Get("Sforce-Locator"); got != "null" {
		t.Errorf("Sforce-Locator = %q, want null", got)
	}
	if got := rec.Header().Get("Sforce-NumberOfRecords"); got != "2" {
		t.Errorf("Sforce-NumberOfRecords = %q, want 2", got)
	}
	want := "Name\nAcme\nInitech"
	if rec.Body.String() != want {
		t.Errorf("results = %q, want %q", rec.Body.String(), want)
	}
}

func TestQueryJobBadQueryFails(t *testing.T) {
	mux, _ := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/jobs/query",
		`{"operation":"query","query":"SELECT oops"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	job := decodeJob(t, rec)
	if job["state"] != "Failed" {
		t.Errorf("state = %v, want Failed", job["state"])
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/jobs/query/"+job["id"].(string)+"/results", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("results on failed job status = %d, want 400", rec.Code)
	}
}

func TestJobSurfacesAreSeparate(t *testing.T) {
	mux, _ := setupMux(t)

	job := decodeJob(t, do(t, mux, "POST", "/services/data/v59.0/jobs/ingest",
		`{"object":"Account","operation":"insert"}`))

	rec := do(t, mux, "GET", "/services/data/v59.0/jobs/query/"+job["id"].(string), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("ingest job via query surface status = %d, want 404", rec.Code)
	}
}

func seedAccounts(t *testing.T, s *store.Store) {
	t.Helper()
	for _, name := range []string{"Initech", "Acme"} {
		rec := map[string]any{"Id": "001TEST" + name, "Name": name}
		if err := s.Records.Insert(context.Background(), "Account", rec); err != nil {
			t.Fatalf("seeding account: %v", err)
		}
	}
}
