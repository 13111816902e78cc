package conformance_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

const apiBase = "/services/data/v59.0"

// doJSON makes a JSON request to the test server and returns the response.
// The caller is responsible for closing the response body.
func doJSON(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, serverURL+path, bodyReader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// doRaw sends a request with a raw string body and explicit content type.
func doRaw(t *testing.T, method, path, contentType, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, serverURL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// readJSON reads the response body and unmarshals it into a map.
func readJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(b, &result); err != nil {
		t.Fatalf("unmarshal response (status %d): body=%s err=%v", resp.StatusCode, string(b), err)
	}
	return result
}

// readBody reads the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return string(b)
}

// readErrors reads the platform error payload, which is always a JSON array.
func readErrors(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	var result []map[string]any
	if err := json.Unmarshal(b, &result); err != nil {
		t.Fatalf("unmarshal error payload (status %d): body=%s err=%v", resp.StatusCode, string(b), err)
	}
	if len(result) == 0 {
		t.Fatalf("error payload is an empty array (status %d)", resp.StatusCode)
	}
	return result
}

// mustStatus asserts the HTTP response has the expected status code.
func mustStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d; body=%s", expected, resp.StatusCode, string(b))
	}
}

// resetServer clears records and jobs between tests.
func resetServer(t *testing.T) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, "/_notforce/reset", nil)
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("reset server failed: status=%d body=%s", resp.StatusCode, string(b))
	}
}

// assertErrorCode validates an error array entry against the platform format.
func assertErrorCode(t *testing.T, errs []map[string]any, expectedCode string) {
	t.Helper()
	entry := errs[0]
	if _, ok := entry["message"]; !ok {
		t.Errorf("error entry missing message: %v", entry)
	}
	if _, ok := entry["fields"]; !ok {
		t.Errorf("error entry missing fields: %v", entry)
	}
	if entry["errorCode"] != expectedCode {
		t.Errorf("errorCode = %v, want %q", entry["errorCode"], expectedCode)
	}
}

// assertIsString checks that a field is a string and returns its value.
func assertIsString(t *testing.T, m map[string]any, key string) string {
	t.Helper()
	v, ok := m[key]
	if !ok {
		t.Errorf("expected field %q to be present, got keys: %v", key, mapKeys(m))
		return ""
	}
	s, ok := v.(string)
	if !ok {
		t.Errorf("expected field %q to be string, got %T", key, v)
		return ""
	}
	return s
}

// assertIsArray checks that a field is a JSON array and returns it.
func assertIsArray(t *testing.T, m map[string]any, key string) []any {
	t.Helper()
	v, ok := m[key]
	if !ok {
		t.Errorf("expected field %q to be present, got keys: %v", key, mapKeys(m))
		return nil
	}
	a, ok := v.([]any)
	if !ok {
		t.Errorf("expected field %q to be array, got %T", key, v)
		return nil
	}
	return a
}

// assertNumberField checks that a key exists with the expected numeric value.
func assertNumberField(t *testing.T, m map[string]any, key string, expected float64) {
	t.Helper()
	v, ok := m[key]
	if !ok {
		t.Errorf("expected field %q to be present, got keys: %v", key, mapKeys(m))
		return
	}
	n, ok := v.(float64)
	if !ok {
		t.Errorf("expected field %q to be number, got %T", key, v)
		return
	}
	if n != expected {
		t.Errorf("field %q: expected %v, got %v", key, expected, n)
	}
}

// toObject converts a slice element to a map.
func toObject(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", v)
	}
	return m
}

// createRecord creates a record through the REST API and returns its ID.
func createRecord(t *testing.T, objectType string, fields map[string]any) string {
	t.Helper()
	resp := doJSON(t, http.MethodPost, apiBase+"/sobjects/"+objectType, fields)
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		t.Fatalf("create %s: status=%d body=%s", objectType, resp.StatusCode, string(b))
	}
	body := readJSON(t, resp)
	return assertIsString(t, body, "id")
}

// queryPath builds a query endpoint URL with the statement escaped.
func queryPath(soql string) string {
	return apiBase + "/query?q=" + url.QueryEscape(soql)
}

// searchPath builds a search endpoint URL with the statement escaped.
func searchPath(sosl string) string {
	return apiBase + "/search?q=" + url.QueryEscape(sosl)
}

// mapKeys returns the keys of a map for diagnostic output.
func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
