package api

import (
	"encoding/json"
	"encoding/xml"
	"log/slog"
	"net/http"
)

// WriteJSON marshals v as JSON and writes it to w with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// WriteCSV writes a CSV body with the platform's content type.
func WriteCSV(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		slog.Error("failed to write CSV response", "error", err)
	}
}

// WriteXML marshals v as XML, prepends the declaration, and writes it to w.
func WriteXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		slog.Error("failed to write XML response", "error", err)
		return
	}
	if err := xml.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write XML response", "error", err)
	}
}

// QueryResponse is the REST query result envelope.
type QueryResponse struct {
	TotalSize int              `json:"totalSize"`
	Done      bool             `json:"done"`
	Records   []map[string]any `json:"records"`
}

// ListResponse is the envelope for bulk job listings.
type ListResponse struct {
	Done           bool  `json:"done"`
	Records        []any `json:"records"`
	NextRecordsURL any   `json:"nextRecordsUrl"`
}

// Attributes is the per-record metadata object on REST query and read
// responses.
type Attributes struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}
