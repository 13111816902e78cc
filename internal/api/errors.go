package api

import (
	"net/http"

	"github.com/johnwards/notforce/internal/validate"
)

// Platform error codes surfaced by the API. Validation codes live in the
// validate package; these cover everything else.
const (
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidField        = "INVALID_FIELD"
	CodeInvalidType         = "INVALID_TYPE"
	CodeMalformedQuery      = "MALFORMED_QUERY"
	CodeMalformedSearch     = "MALFORMED_SEARCH"
	CodeEntityIsDeleted     = "ENTITY_IS_DELETED"
	CodeDuplicateValue      = "DUPLICATE_VALUE"
	CodeInvalidCrossRef     = "INVALID_CROSS_REFERENCE_KEY"
	CodeInvalidSessionID    = "INVALID_SESSION_ID"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeMissingArgument     = "MISSING_ARGUMENT"
	CodeInvalidJob          = "INVALIDJOB"
	CodeInvalidJobState     = "INVALIDJOBSTATE"
	CodeAPIError            = "API_ERROR"
	CodeExceededIDLimit     = "EXCEEDED_ID_LIMIT"
	CodeUnknownException    = "UNKNOWN_EXCEPTION"
	CodeRestrictedPicklist  = validate.CodeRestrictedPicklist
	CodeRequiredFieldMissed = validate.CodeRequiredFieldMissing
)

// defaultMessages supplies a message when a caller raises a bare code.
var defaultMessages = map[string]string{
	CodeNotFound:            "The requested resource does not exist",
	CodeRequiredFieldMissed: "Required fields are missing",
	CodeInvalidField:        "Invalid field",
	CodeInvalidType:         "Invalid type",
	CodeMalformedQuery:      "unexpected token",
	CodeMalformedSearch:     "unexpected token in search",
	CodeEntityIsDeleted:     "entity is deleted",
	CodeDuplicateValue:      "duplicate value found",
	CodeInvalidCrossRef:     "invalid cross reference id",
	CodeInvalidSessionID:    "Session expired or invalid",
	CodeMethodNotAllowed:    "HTTP Method not allowed",
	CodeRestrictedPicklist:  "bad value for restricted picklist field",
}

// Error is one entry of the platform's error payload. The API always responds
// with a JSON array of these, even for a single error.
type Error struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields"`
}

// NewError builds an Error from a code and optional message. An empty message
// falls back to the code's default.
func NewError(code, message string, fields ...string) Error {
	if message == "" {
		message = defaultMessages[code]
	}
	if message == "" {
		message = code
	}
	if fields == nil {
		fields = []string{}
	}
	return Error{Message: message, ErrorCode: code, Fields: fields}
}

// FromViolations converts validation violations into API errors.
func FromViolations(violations []validate.Violation) []Error {
	out := make([]Error, 0, len(violations))
	for _, v := range violations {
		out = append(out, NewError(v.Code, v.Message, v.Fields...))
	}
	return out
}

// WriteError writes one or more errors as the standard JSON array payload.
func WriteError(w http.ResponseWriter, statusCode int, errs ...Error) {
	WriteJSON(w, statusCode, errs)
}
