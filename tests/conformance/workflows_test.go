package conformance_test

import (
	"net/http"
	"strings"
	"testing"
)

// Full integration-style pass: load data over Bulk 2.0, reshape it over REST,
// read it back through SOQL and a bulk query job.
func TestIngestQueryRoundTrip(t *testing.T) {
	resetServer(t)

	job := createIngestJob(t, map[string]any{"object": "Contact", "operation": "insert"})
	jobID := assertIsString(t, job, "id")
	job = uploadAndClose(t, jobID,
		"FirstName,LastName,Email\nAda,Lovelace,ada@example.test\nAlan,Turing,alan@example.test")
	if job["state"] != "JobComplete" {
		t.Fatalf("ingest state = %v, want JobComplete", job["state"])
	}

	// Pick up one generated ID from the query surface and update the record.
	resp := doJSON(t, http.MethodGet,
		queryPath("SELECT Id, LastName FROM Contact WHERE LastName = 'Turing'"), nil)
	body := readJSON(t, resp)
	records := assertIsArray(t, body, "records")
	if len(records) != 1 {
		t.Fatalf("got %d Turing records, want 1", len(records))
	}
	id := assertIsString(t, toObject(t, records[0]), "Id")

	resp = doJSON(t, http.MethodPatch, apiBase+"/sobjects/Contact/"+id,
		map[string]any{"Email": "turing@example.test"})
	mustStatus(t, resp, http.StatusNoContent)
	_ = resp.Body.Close()

	// A bulk query job sees the updated value.
	resp = doJSON(t, http.MethodPost, apiBase+"/jobs/query", map[string]any{
		"operation": "query",
		"query":     "SELECT Email FROM Contact WHERE LastName = 'Turing'",
	})
	qjob := readJSON(t, resp)
	resp = doJSON(t, http.MethodGet,
		apiBase+"/jobs/query/"+assertIsString(t, qjob, "id")+"/results", nil)
	results := readBody(t, resp)
	if results != "Email\nturing@example.test" {
		t.Errorf("query job results = %q", results)
	}
}

// Records written through the legacy v1 surface are visible to v2 and REST,
// since all three pipelines share one record store.
func TestV1AndV2ShareRecordStore(t *testing.T) {
	resetServer(t)

	v1job := createV1Job(t, "insert", "Account")
	addV1Batch(t, v1job.ID, "Name,ExternalId__c\nAcme,X-9")

	job := createIngestJob(t, map[string]any{
		"object": "Account", "operation": "upsert", "externalIdFieldName": "ExternalId__c",
	})
	jobID := assertIsString(t, job, "id")
	job = uploadAndClose(t, jobID, "ExternalId__c,Industry\nX-9,Technology")
	if job["state"] != "JobComplete" {
		t.Fatalf("upsert state = %v, want JobComplete", job["state"])
	}

	resp := doJSON(t, http.MethodGet,
		queryPath("SELECT Name, Industry FROM Account WHERE ExternalId__c = 'X-9'"), nil)
	body := readJSON(t, resp)
	records := assertIsArray(t, body, "records")
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := toObject(t, records[0])
	if rec["Name"] != "Acme" || rec["Industry"] != "Technology" {
		t.Errorf("record = %v, want v1 insert merged with v2 upsert", rec)
	}
}

// The documented example flow from the Bulk 2.0 quick start.
func TestBulkQuickStartScenario(t *testing.T) {
	resetServer(t)

	job := createIngestJob(t, map[string]any{"object": "Account", "operation": "insert"})
	jobID := assertIsString(t, job, "id")

	job = uploadAndClose(t, jobID, "Name,Type\nAcme Corp,Customer\nBeta Inc,Partner")
	if job["state"] != "JobComplete" {
		t.Fatalf("state = %v, want JobComplete", job["state"])
	}
	assertNumberField(t, job, "numberRecordsProcessed", 2)
	assertNumberField(t, job, "numberRecordsFailed", 0)

	resp := doJSON(t, http.MethodGet, queryPath("SELECT Id FROM Account"), nil)
	body := readJSON(t, resp)
	records := assertIsArray(t, body, "records")
	if len(records) != 2 {
		t.Fatalf("got %d accounts, want 2", len(records))
	}
	first := assertIsString(t, toObject(t, records[0]), "Id")
	second := assertIsString(t, toObject(t, records[1]), "Id")
	if first == second {
		t.Errorf("generated ids collide: %q", first)
	}
	if !strings.HasPrefix(first, "001") || !strings.HasPrefix(second, "001") {
		t.Errorf("ids = %q, %q, want 001 prefixes", first, second)
	}

	resp = doJSON(t, http.MethodGet, apiBase+"/jobs/ingest", nil)
	list := readJSON(t, resp)
	if list["done"] != true {
		t.Errorf("list done = %v, want true", list["done"])
	}
	if len(assertIsArray(t, list, "records")) != 1 {
		t.Errorf("expected the one ingest job in the listing")
	}
}
