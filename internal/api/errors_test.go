package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/johnwards/notforce/internal/api"
	"github.com/johnwards/notforce/internal/validate"
)

func TestNewErrorDefaultMessage(t *testing.T) {
	err := api.NewError(api.CodeNotFound, "")

	if err.ErrorCode != "NOT_FOUND" {
		t.Errorf("ErrorCode = %q, want %q", err.ErrorCode, "NOT_FOUND")
	}
	if err.Message != "The requested resource does not exist" {
		t.Errorf("Message = %q, want default NOT_FOUND message", err.Message)
	}
	if err.Fields == nil {
		t.Error("Fields is nil, want empty slice")
	}
}

func TestNewErrorExplicitMessage(t *testing.T) {
	err := api.NewError(api.CodeMalformedQuery, "unexpected token: FROM", "Name")

	if err.Message != "unexpected token: FROM" {
		t.Errorf("Message = %q", err.Message)
	}
	if len(err.Fields) != 1 || err.Fields[0] != "Name" {
		t.Errorf("Fields = %v, want [Name]", err.Fields)
	}
}

func TestNewErrorUnknownCodeFallsBackToCode(t *testing.T) {
	err := api.NewError("SOMETHING_ELSE", "")

	if err.Message != "SOMETHING_ELSE" {
		t.Errorf("Message = %q, want the code itself", err.Message)
	}
}

func TestFromViolations(t *testing.T) {
	violations := []validate.Violation{
		{Message: "Required fields are missing: [Name]", Code: validate.CodeRequiredFieldMissing, Fields: []string{"Name"}},
		{Message: "Industry: bad value for restricted picklist field: Alchemy", Code: validate.CodeRestrictedPicklist, Fields: []string{"Industry"}},
	}
	errs := api.FromViolations(violations)

	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2", len(errs))
	}
	if errs[0].ErrorCode != "REQUIRED_FIELD_MISSING" {
		t.Errorf("ErrorCode = %q", errs[0].ErrorCode)
	}
	if errs[1].Fields[0] != "Industry" {
		t.Errorf("Fields = %v, want [Industry]", errs[1].Fields)
	}
}

func TestWriteErrorIsAlwaysAnArray(t *testing.T) {
	rec := httptest.NewRecorder()
	api.WriteError(rec, http.StatusNotFound, api.NewError(api.CodeNotFound, ""))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusNotFound)
	}
	ct := rec.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var result []api.Error
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode JSON array: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("got %d entries, want 1", len(result))
	}
	if result[0].ErrorCode != "NOT_FOUND" {
		t.Errorf("errorCode = %q, want NOT_FOUND", result[0].ErrorCode)
	}
}
