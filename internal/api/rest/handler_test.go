package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/seed"
	"github.com/johnwards/notforce/internal/store"
	"github.com/johnwards/notforce/internal/testhelpers"
)

func setupMux(t *testing.T) *http.ServeMux {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	mux := http.NewServeMux()
	RegisterRoutes(mux, store.New(db), seed.Registry(), idgen.NewSeeded(1))
	return mux
}

func do(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestCreateAndGet(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/sobjects/Account", `{"Name":"Acme"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
	}
	decodeBody(t, rec, &created)
	if !created.Success {
		t.Error("create success = false, want true")
	}
	if !strings.HasPrefix(created.ID, "001") {
		t.Errorf("account id = %q, want 001 prefix", created.ID)
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/sobjects/Account/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rec.Code)
	}
	var got map[string]any
	decodeBody(t, rec, &got)
	if got["Name"] != "Acme" {
		t.Errorf("Name = %v, want Acme", got["Name"])
	}
	if got["CreatedDate"] == nil || got["SystemModstamp"] == nil {
		t.Error("expected audit fields on created record")
	}
	attrs, ok := got["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes missing from record body: %v", got)
	}
	if attrs["type"] != "Account" {
		t.Errorf("attributes.type = %v, want Account", attrs["type"])
	}
}

func TestCreateRequiredFieldMissing(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/sobjects/Account", `{"Industry":"Energy"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var errs []map[string]any
	decodeBody(t, rec, &errs)
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if errs[0]["errorCode"] != "REQUIRED_FIELD_MISSING" {
		t.Errorf("errorCode = %v, want REQUIRED_FIELD_MISSING", errs[0]["errorCode"])
	}
	if errs[0]["message"] != "Required fields are missing: [Name]" {
		t.Errorf("message = %v", errs[0]["message"])
	}
}

func TestCreateBadPicklist(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/sobjects/Account",
		`{"Name":"Acme","Industry":"Alchemy"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var errs []map[string]any
	decodeBody(t, rec, &errs)
	if errs[0]["errorCode"] != "INVALID_OR_NULL_FOR_RESTRICTED_PICKLIST" {
		t.Errorf("errorCode = %v", errs[0]["errorCode"])
	}
}

func TestCreateUnknownObject(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/sobjects/Widget", `{"Name":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCreateMalformedJSON(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/sobjects/Account", `{"Name":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUpdate(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/sobjects/Account", `{"Name":"Acme"}`)
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)

	rec = do(t, mux, "PATCH", "/services/data/v59.0/sobjects/Account/"+created.ID,
		`{"Industry":"Technology"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("update status = %d, want 204: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/sobjects/Account/"+created.ID, "")
	var got map[string]any
	decodeBody(t, rec, &got)
	if got["Industry"] != "Technology" {
		t.Errorf("Industry = %v, want Technology", got["Industry"])
	}
	if got["Name"] != "Acme" {
		t.Errorf("Name = %v, want Acme preserved", got["Name"])
	}
}

func TestUpdateNotFound(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "PATCH", "/services/data/v59.0/sobjects/Account/001000000000000AAA",
		`{"Name":"x"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDelete(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "POST", "/services/data/v59.0/sobjects/Account", `{"Name":"Acme"}`)
	var created struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &created)

	rec = do(t, mux, "DELETE", "/services/data/v59.0/sobjects/Account/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	rec = do(t, mux, "DELETE", "/services/data/v59.0/sobjects/Account/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
	var errs []map[string]any
	decodeBody(t, rec, &errs)
	if errs[0]["errorCode"] != "ENTITY_IS_DELETED" {
		t.Errorf("errorCode = %v, want ENTITY_IS_DELETED", errs[0]["errorCode"])
	}
}

func TestUpsertInsertThenUpdate(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "PATCH",
		"/services/data/v59.0/sobjects/Account/ExternalId__c/EXT-1",
		`{"Name":"Acme"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upsert insert status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID      string `json:"id"`
		Created bool   `json:"created"`
	}
	decodeBody(t, rec, &created)
	if !created.Created {
		t.Error("created = false, want true")
	}

	rec = do(t, mux, "PATCH",
		"/services/data/v59.0/sobjects/Account/ExternalId__c/EXT-1",
		`{"Name":"Acme Renamed"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("upsert update status = %d, want 204: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/sobjects/Account/"+created.ID, "")
	var got map[string]any
	decodeBody(t, rec, &got)
	if got["Name"] != "Acme Renamed" {
		t.Errorf("Name = %v, want Acme Renamed", got["Name"])
	}
	if got["ExternalId__c"] != "EXT-1" {
		t.Errorf("ExternalId__c = %v, want EXT-1", got["ExternalId__c"])
	}
}

func TestQuery(t *testing.T) {
	mux := setupMux(t)

	for _, name := range []string{"Acme", "Initech", "Globex"} {
		do(t, mux, "POST", "/services/data/v59.0/sobjects/Account", `{"Name":"`+name+`"}`)
	}

	rec := do(t, mux, "GET",
		"/services/data/v59.0/query?q="+escape("SELECT Name FROM Account WHERE Name = 'Acme'"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		TotalSize int              `json:"totalSize"`
		Done      bool             `json:"done"`
		Records   []map[string]any `json:"records"`
	}
	decodeBody(t, rec, &resp)
	if resp.TotalSize != 1 || !resp.Done {
		t.Fatalf("totalSize = %d done = %v, want 1 true", resp.TotalSize, resp.Done)
	}
	if resp.Records[0]["Name"] != "Acme" {
		t.Errorf("Name = %v, want Acme", resp.Records[0]["Name"])
	}
	if _, ok := resp.Records[0]["attributes"]; !ok {
		t.Error("expected attributes on query record")
	}
}

func TestQueryOmitsAbsentFields(t *testing.T) {
	mux := setupMux(t)

	do(t, mux, "POST", "/services/data/v59.0/sobjects/Account", `{"Name":"Acme"}`)

	rec := do(t, mux, "GET",
		"/services/data/v59.0/query?q="+escape("SELECT Name, Industry FROM Account"), "")
	var resp struct {
		Records []map[string]any `json:"records"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(resp.Records))
	}
	// Industry was never set, so the key is absent rather than null.
	if _, ok := resp.Records[0]["Industry"]; ok {
		t.Errorf("record = %v, want no Industry key", resp.Records[0])
	}
	if resp.Records[0]["Name"] != "Acme" {
		t.Errorf("Name = %v, want Acme", resp.Records[0]["Name"])
	}
}

func TestQueryCount(t *testing.T) {
	mux := setupMux(t)

	do(t, mux, "POST", "/services/data/v59.0/sobjects/Account", `{"Name":"Acme"}`)
	do(t, mux, "POST", "/services/data/v59.0/sobjects/Account", `{"Name":"Initech"}`)

	rec := do(t, mux, "GET",
		"/services/data/v59.0/query?q="+escape("SELECT COUNT() FROM Account"), "")
	var resp struct {
		TotalSize int              `json:"totalSize"`
		Records   []map[string]any `json:"records"`
	}
	decodeBody(t, rec, &resp)
	if resp.TotalSize != 2 {
		t.Errorf("totalSize = %d, want 2", resp.TotalSize)
	}
	if len(resp.Records) != 0 {
		t.Errorf("records = %v, want empty", resp.Records)
	}
}

func TestQueryErrors(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "GET", "/services/data/v59.0/query", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", rec.Code)
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/query?q="+escape("SELECT FROM"), "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed query status = %d, want 400", rec.Code)
	}
	var errs []map[string]any
	decodeBody(t, rec, &errs)
	if errs[0]["errorCode"] != "MALFORMED_QUERY" {
		t.Errorf("errorCode = %v, want MALFORMED_QUERY", errs[0]["errorCode"])
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/query?q="+escape("SELECT Id FROM Widget"), "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown object status = %d, want 400", rec.Code)
	}
	decodeBody(t, rec, &errs)
	if errs[0]["errorCode"] != "INVALID_TYPE" {
		t.Errorf("errorCode = %v, want INVALID_TYPE", errs[0]["errorCode"])
	}
}

func TestDescribe(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "GET", "/services/data/v59.0/sobjects/Account/describe", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var desc struct {
		Name      string `json:"name"`
		KeyPrefix string `json:"keyPrefix"`
		Fields    []map[string]any
	}
	decodeBody(t, rec, &desc)
	if desc.Name != "Account" {
		t.Errorf("name = %q, want Account", desc.Name)
	}
	if desc.KeyPrefix != "001" {
		t.Errorf("keyPrefix = %q, want 001", desc.KeyPrefix)
	}
	if len(desc.Fields) == 0 {
		t.Fatal("expected field metadata")
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/sobjects/Widget/describe", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown describe status = %d, want 404", rec.Code)
	}
}

func TestTokenAndLimits(t *testing.T) {
	mux := setupMux(t)

	rec := do(t, mux, "POST", "/services/oauth2/token",
		"grant_type=password&username=test&password=test")
	if rec.Code != http.StatusOK {
		t.Fatalf("token status = %d, want 200", rec.Code)
	}
	var tok map[string]any
	decodeBody(t, rec, &tok)
	if tok["access_token"] == "" || tok["token_type"] != "Bearer" {
		t.Errorf("unexpected token payload: %v", tok)
	}

	rec = do(t, mux, "GET", "/services/data/v59.0/limits", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("limits status = %d, want 200", rec.Code)
	}
	var limits map[string]any
	decodeBody(t, rec, &limits)
	if _, ok := limits["DailyApiRequests"]; !ok {
		t.Error("expected DailyApiRequests in limits")
	}
}

func escape(q string) string {
	r := strings.NewReplacer(" ", "%20", "'", "%27", "=", "%3D", ">", "%3E", "<", "%3C")
	return r.Replace(q)
}
