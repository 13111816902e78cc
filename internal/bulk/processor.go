// Package bulk runs the data movement pipelines behind the Bulk APIs: row
// application for ingest jobs and v1 batches, and query job execution.
package bulk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/johnwards/notforce/internal/bulkcsv"
	"github.com/johnwards/notforce/internal/domain"
	"github.com/johnwards/notforce/internal/idgen"
	"github.com/johnwards/notforce/internal/schema"
	"github.com/johnwards/notforce/internal/soql"
	"github.com/johnwards/notforce/internal/store"
	"github.com/johnwards/notforce/internal/validate"
)

// Row error codes raised by the pipelines themselves.
const (
	codeMissingArgument  = "MISSING_ARGUMENT"
	codeEntityIsDeleted  = "ENTITY_IS_DELETED"
	codeInvalidCrossRef  = "INVALID_CROSS_REFERENCE_KEY"
	codeUnknownException = "UNKNOWN_EXCEPTION"
	codeInvalidType      = "INVALID_TYPE"
)

// Processor applies bulk operations against the record store.
type Processor struct {
	Records store.RecordStore
	Schemas *schema.Registry
	IDs     *idgen.Generator
}

// failure accumulates the error parts for one row, rendered as
// "CODE:message; CODE:message".
type failure []string

func (f failure) String() string { return strings.Join(f, "; ") }

func fail(code, message string) failure {
	return failure{code + ":" + message}
}

func failViolations(violations []validate.Violation) failure {
	var f failure
	for _, v := range violations {
		f = append(f, v.Code+":"+v.Message)
	}
	return f
}

// RunIngest processes an ingest job's accumulated payload and moves the job
// to its terminal state. A job whose object has no schema fails with empty
// results; otherwise the job completes unless every row failed.
func (p *Processor) RunIngest(ctx context.Context, job *domain.Job) {
	start := time.Now()
	job.State = domain.JobStateInProgress

	sch, ok := p.Schemas.Get(job.Object)
	if !ok {
		job.State = domain.JobStateFailed
		job.SuccessfulResults = []domain.RowResult{}
		job.FailedResults = []domain.RowResult{}
		job.TotalProcessingTime = time.Since(start).Milliseconds()
		return
	}

	headers, rows := bulkcsv.Parse(job.Payload)
	job.ResultFields = headers

	succeeded := 0
	for _, row := range rows {
		res := p.processRow(ctx, job.Operation, job.Object, sch, job.ExternalIDFieldName, row, codeInvalidCrossRef)
		if res.Failed() {
			job.FailedResults = append(job.FailedResults, res)
		} else {
			job.SuccessfulResults = append(job.SuccessfulResults, res)
			succeeded++
		}
	}

	job.NumberRecordsProcessed = succeeded
	job.NumberRecordsFailed = len(rows) - succeeded
	job.TotalProcessingTime = time.Since(start).Milliseconds()

	if job.NumberRecordsFailed > 0 && succeeded == 0 {
		job.State = domain.JobStateFailed
	} else {
		job.State = domain.JobStateJobComplete
	}
}

// RunQuery executes a query job synchronously, leaving the serialized CSV on
// the job. An unresolvable query fails the job rather than erroring.
func (p *Processor) RunQuery(ctx context.Context, job *domain.Job) {
	start := time.Now()

	q, err := soql.Parse(job.Query)
	if err != nil {
		p.failQuery(job, start)
		return
	}
	sch, ok := p.Schemas.Get(q.Object)
	if !ok {
		p.failQuery(job, start)
		return
	}

	records, err := p.Records.All(ctx, sch.Name)
	if err != nil {
		p.failQuery(job, start)
		return
	}
	matched := soql.Run(q, records)

	if q.Count {
		job.QueryResults = bulkcsv.Serialize([]string{"count"},
			[]map[string]string{{"count": fmt.Sprintf("%d", len(matched))}})
		job.NumberRecordsProcessed = len(matched)
	} else {
		headers := soql.Headers(q, matched, sch.FieldNames())
		rows := make([]map[string]string, 0, len(matched))
		for _, rec := range matched {
			row := make(map[string]string, len(headers))
			for _, h := range headers {
				row[h] = domain.Stringify(rec[h])
			}
			rows = append(rows, row)
		}
		job.QueryResults = bulkcsv.Serialize(headers, rows)
		job.NumberRecordsProcessed = len(rows)
	}

	job.TotalProcessingTime = time.Since(start).Milliseconds()
	job.State = domain.JobStateJobComplete
}

func (p *Processor) failQuery(job *domain.Job, start time.Time) {
	job.State = domain.JobStateFailed
	job.NumberRecordsFailed = 1
	job.TotalProcessingTime = time.Since(start).Milliseconds()
}

// RunBatch processes one v1 batch's rows in order. The batch fails only when
// it had rows and every one of them was rejected; an update that misses its
// target reports ENTITY_IS_DELETED on the v1 surface.
func (p *Processor) RunBatch(ctx context.Context, job *domain.Job, batch *domain.Batch, rows []map[string]string) {
	start := time.Now()
	batch.State = domain.BatchStateInProgress

	sch, ok := p.Schemas.Get(job.Object)
	if !ok {
		batch.State = domain.BatchStateFailed
		batch.StateMessage = fmt.Sprintf("%s:sObject type '%s' is not supported", codeInvalidType, job.Object)
		return
	}

	failed := 0
	for _, row := range rows {
		res := p.processRow(ctx, job.Operation, job.Object, sch, job.ExternalIDFieldName, row, codeEntityIsDeleted)
		if res.Failed() {
			failed++
		}
		batch.Results = append(batch.Results, res)
	}

	batch.NumberRecordsProcessed = len(rows)
	batch.NumberRecordsFailed = failed

	if len(rows) > 0 && failed == len(rows) {
		batch.State = domain.BatchStateFailed
	} else {
		batch.State = domain.BatchStateCompleted
	}

	job.NumberRecordsProcessed += batch.NumberRecordsProcessed
	job.NumberRecordsFailed += batch.NumberRecordsFailed
	job.TotalProcessingTime += time.Since(start).Milliseconds()
}

// processRow applies one operation to one row. A panic inside the row
// converts to an UNKNOWN_EXCEPTION failure instead of taking down the job.
func (p *Processor) processRow(ctx context.Context, op, objectType string, sch *domain.ObjectSchema, extField string, row map[string]string, notFoundCode string) (res domain.RowResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = domain.RowResult{
				Fields: row,
				Error:  fmt.Sprintf("%s:%v", codeUnknownException, rec),
			}
		}
	}()

	switch op {
	case "insert":
		id, f := p.insertRow(ctx, objectType, sch, row)
		if f != nil {
			return domain.RowResult{Fields: row, Error: f.String()}
		}
		return domain.RowResult{ID: id, Created: true, Fields: row}

	case "update":
		id, f := p.updateRow(ctx, objectType, sch, row, notFoundCode)
		if f != nil {
			return domain.RowResult{Fields: row, Error: f.String()}
		}
		return domain.RowResult{ID: id, Fields: row}

	case "upsert":
		id, created, f := p.upsertRow(ctx, objectType, sch, extField, row)
		if f != nil {
			return domain.RowResult{Fields: row, Error: f.String()}
		}
		return domain.RowResult{ID: id, Created: created, Fields: row}

	case "delete", "hardDelete":
		id, f := p.deleteRow(ctx, objectType, row)
		if f != nil {
			return domain.RowResult{Fields: row, Error: f.String()}
		}
		return domain.RowResult{ID: id, Fields: row}
	}

	return domain.RowResult{
		Fields: row,
		Error:  fail(codeUnknownException, fmt.Sprintf("unsupported operation: %s", op)).String(),
	}
}

func (p *Processor) insertRow(ctx context.Context, objectType string, sch *domain.ObjectSchema, row map[string]string) (string, failure) {
	rec := toRecord(row)
	if violations := validate.Record(sch, rec, validate.Create); len(violations) > 0 {
		return "", failViolations(violations)
	}

	id := p.IDs.Generate(sch.KeyPrefix)
	ts := store.Now()
	rec["Id"] = id
	rec["CreatedDate"] = ts
	rec["LastModifiedDate"] = ts
	rec["SystemModstamp"] = ts

	if err := p.Records.Insert(ctx, objectType, rec); err != nil {
		return "", fail(codeUnknownException, err.Error())
	}
	return id, nil
}

func (p *Processor) updateRow(ctx context.Context, objectType string, sch *domain.ObjectSchema, row map[string]string, notFoundCode string) (string, failure) {
	id := row["Id"]
	if id == "" {
		return "", fail(codeMissingArgument, "Id not specified in an update call")
	}

	existing, err := p.Records.Get(ctx, objectType, id)
	if err != nil {
		if err == store.ErrNotFound {
			return "", fail(notFoundCode, defaultRowMessage(notFoundCode))
		}
		return "", fail(codeUnknownException, err.Error())
	}

	changes := toRecord(row)
	delete(changes, "Id")
	if violations := validate.Record(sch, changes, validate.Update); len(violations) > 0 {
		return "", failViolations(violations)
	}

	merged := existing.Clone()
	for k, v := range changes {
		merged[k] = v
	}
	ts := store.Now()
	merged["LastModifiedDate"] = ts
	merged["SystemModstamp"] = ts

	if err := p.Records.Update(ctx, objectType, id, merged); err != nil {
		return "", fail(codeUnknownException, err.Error())
	}
	return id, nil
}

// upsertRow matches on the external ID field. A hit merges the row without
// validation; a miss (or a row with an empty external ID value) takes the
// insert path, validation included.
func (p *Processor) upsertRow(ctx context.Context, objectType string, sch *domain.ObjectSchema, extField string, row map[string]string) (string, bool, failure) {
	extValue := row[extField]
	if extField == "" || extValue == "" {
		id, f := p.insertRow(ctx, objectType, sch, row)
		return id, true, f
	}

	existing, err := p.Records.FindByField(ctx, objectType, extField, extValue)
	if err != nil {
		if err == store.ErrNotFound {
			id, f := p.insertRow(ctx, objectType, sch, row)
			return id, true, f
		}
		return "", false, fail(codeUnknownException, err.Error())
	}

	merged := existing.Clone()
	for k, v := range row {
		if k == extField || k == "Id" {
			continue
		}
		merged[k] = v
	}
	ts := store.Now()
	merged["LastModifiedDate"] = ts
	merged["SystemModstamp"] = ts

	id := existing.ID()
	if err := p.Records.Update(ctx, objectType, id, merged); err != nil {
		return "", false, fail(codeUnknownException, err.Error())
	}
	return id, false, nil
}

func (p *Processor) deleteRow(ctx context.Context, objectType string, row map[string]string) (string, failure) {
	id := row["Id"]
	if id == "" {
		return "", fail(codeMissingArgument, "Id not specified in an delete call")
	}

	if err := p.Records.Delete(ctx, objectType, id); err != nil {
		if err == store.ErrNotFound {
			return "", fail(codeEntityIsDeleted, "entity is deleted")
		}
		return "", fail(codeUnknownException, err.Error())
	}
	return id, nil
}

func toRecord(row map[string]string) domain.Record {
	rec := make(domain.Record, len(row))
	for k, v := range row {
		rec[k] = v
	}
	return rec
}

func defaultRowMessage(code string) string {
	switch code {
	case codeInvalidCrossRef:
		return "invalid cross reference id"
	case codeEntityIsDeleted:
		return "entity is deleted"
	}
	return code
}
