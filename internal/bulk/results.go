package bulk

import (
	"strings"

	"github.com/johnwards/notforce/internal/bulkcsv"
	"github.com/johnwards/notforce/internal/domain"
)

// SuccessCSV renders a v2 ingest job's successful rows. Delete jobs report
// only the marker columns; everything else echoes the input columns after
// them.
func SuccessCSV(job *domain.Job) string {
	headers := []string{"sf__Id", "sf__Created"}
	echo := job.Operation != "delete" && job.Operation != "hardDelete"
	if echo {
		headers = append(headers, job.ResultFields...)
	}

	rows := make([]map[string]string, 0, len(job.SuccessfulResults))
	for _, res := range job.SuccessfulResults {
		row := map[string]string{
			"sf__Id":      res.ID,
			"sf__Created": boolString(res.Created),
		}
		if echo {
			for k, v := range res.Fields {
				row[k] = v
			}
		}
		rows = append(rows, row)
	}
	return bulkcsv.Serialize(headers, rows)
}

// FailureCSV renders a v2 ingest job's failed rows with their error strings.
func FailureCSV(job *domain.Job) string {
	headers := append([]string{"sf__Id", "sf__Error"}, job.ResultFields...)

	rows := make([]map[string]string, 0, len(job.FailedResults))
	for _, res := range job.FailedResults {
		row := map[string]string{
			"sf__Id":    res.ID,
			"sf__Error": res.Error,
		}
		for k, v := range res.Fields {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return bulkcsv.Serialize(headers, rows)
}

// UnprocessedCSV renders the rows a job never reached. Jobs here always
// process their whole payload, so the body is just the input header.
func UnprocessedCSV(job *domain.Job) string {
	return bulkcsv.Serialize(job.ResultFields, nil)
}

// BatchResultCSV renders a v1 batch result in the classic fixed format: one
// line per input row, every field quoted.
func BatchResultCSV(batch *domain.Batch) string {
	var b strings.Builder
	b.WriteString(`"Id","Success","Created","Error"`)
	for _, res := range batch.Results {
		b.WriteByte('\n')
		values := []string{res.ID, boolString(!res.Failed()), boolString(res.Created), res.Error}
		for i, v := range values {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(`"` + strings.ReplaceAll(v, `"`, `""`) + `"`)
		}
	}
	return b.String()
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
