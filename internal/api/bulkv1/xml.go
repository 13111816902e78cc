package bulkv1

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// xmlNamespace is the Bulk API v1 wire namespace.
const xmlNamespace = "http://www.force.com/2009/06/asyncapi/dataload"

// extractTag pulls the text content of the first element named tag,
// regardless of namespace prefix. It reports false when the element is
// absent or the document is unreadable.
func extractTag(body, tag string) (string, bool) {
	dec := xml.NewDecoder(strings.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != tag {
			continue
		}
		var text strings.Builder
		for {
			inner, err := dec.Token()
			if err != nil {
				return "", false
			}
			switch t := inner.(type) {
			case xml.CharData:
				text.Write(t)
			case xml.EndElement:
				if t.Name.Local == tag {
					return strings.TrimSpace(text.String()), true
				}
			}
		}
	}
}

// parseSObjects reads an <sObjects> payload into one field map per
// <sObject> child. Empty sObject elements are dropped.
func parseSObjects(body string) ([]map[string]string, error) {
	dec := xml.NewDecoder(strings.NewReader(body))
	var records []map[string]string
	var current map[string]string
	var field string
	var text strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing sObjects payload: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "sObject" {
				current = map[string]string{}
				field = ""
			} else if current != nil {
				field = t.Name.Local
				text.Reset()
			}
		case xml.CharData:
			if field != "" {
				text.Write(t)
			}
		case xml.EndElement:
			if t.Name.Local == "sObject" {
				if len(current) > 0 {
					records = append(records, current)
				}
				current = nil
			} else if current != nil && t.Name.Local == field {
				current[field] = strings.TrimSpace(text.String())
				field = ""
			}
		}
	}
	return records, nil
}

// jobInfoXML is the <jobInfo> response document.
type jobInfoXML struct {
	XMLName                 xml.Name `xml:"jobInfo"`
	Xmlns                   string   `xml:"xmlns,attr"`
	ID                      string   `xml:"id"`
	Operation               string   `xml:"operation"`
	Object                  string   `xml:"object"`
	CreatedByID             string   `xml:"createdById"`
	CreatedDate             string   `xml:"createdDate"`
	SystemModstamp          string   `xml:"systemModstamp"`
	State                   string   `xml:"state"`
	ExternalIDFieldName     string   `xml:"externalIdFieldName"`
	ConcurrencyMode         string   `xml:"concurrencyMode"`
	ContentType             string   `xml:"contentType"`
	NumberBatchesQueued     int      `xml:"numberBatchesQueued"`
	NumberBatchesInProgress int      `xml:"numberBatchesInProgress"`
	NumberBatchesCompleted  int      `xml:"numberBatchesCompleted"`
	NumberBatchesFailed     int      `xml:"numberBatchesFailed"`
	NumberBatchesTotal      int      `xml:"numberBatchesTotal"`
	NumberRecordsProcessed  int      `xml:"numberRecordsProcessed"`
	NumberRetries           int      `xml:"numberRetries"`
	APIVersion              float64  `xml:"apiVersion"`
	NumberRecordsFailed     int      `xml:"numberRecordsFailed"`
	TotalProcessingTime     int64    `xml:"totalProcessingTime"`
}

// batchInfoXML is a <batchInfo> element, standalone or inside a list.
type batchInfoXML struct {
	XMLName                xml.Name `xml:"batchInfo"`
	Xmlns                  string   `xml:"xmlns,attr,omitempty"`
	ID                     string   `xml:"id"`
	JobID                  string   `xml:"jobId"`
	State                  string   `xml:"state"`
	StateMessage           string   `xml:"stateMessage,omitempty"`
	CreatedDate            string   `xml:"createdDate"`
	SystemModstamp         string   `xml:"systemModstamp"`
	NumberRecordsProcessed int      `xml:"numberRecordsProcessed"`
	NumberRecordsFailed    int      `xml:"numberRecordsFailed"`
}

type batchInfoListXML struct {
	XMLName xml.Name       `xml:"batchInfoList"`
	Xmlns   string         `xml:"xmlns,attr"`
	Batches []batchInfoXML `xml:"batchInfo"`
}

// resultXML is one <result> row of a batch result document.
type resultXML struct {
	ID      string          `xml:"id"`
	Success bool            `xml:"success"`
	Created bool            `xml:"created"`
	Errors  *resultErrorXML `xml:"errors,omitempty"`
}

type resultErrorXML struct {
	Message    string `xml:"message"`
	StatusCode string `xml:"statusCode"`
}

type resultsXML struct {
	XMLName xml.Name    `xml:"results"`
	Xmlns   string      `xml:"xmlns,attr"`
	Results []resultXML `xml:"result"`
}

// errorXML is the v1 error document; codes are the CamelCase async-API
// exception codes, not the REST error codes.
type errorXML struct {
	XMLName          xml.Name `xml:"error"`
	Xmlns            string   `xml:"xmlns,attr"`
	ExceptionCode    string   `xml:"exceptionCode"`
	ExceptionMessage string   `xml:"exceptionMessage"`
}

func newErrorXML(code, message string) errorXML {
	return errorXML{Xmlns: xmlNamespace, ExceptionCode: code, ExceptionMessage: message}
}

// splitRowError separates a "CODE:message" row error into its parts.
func splitRowError(s string) (code, message string) {
	if i := strings.Index(s, ":"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return "UNKNOWN_EXCEPTION", s
}
