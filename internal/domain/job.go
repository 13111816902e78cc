package domain

import "fmt"

// JobType distinguishes the three async pipelines.
type JobType string

const (
	JobTypeIngest JobType = "V2Ingest"
	JobTypeQuery  JobType = "V2Query"
	JobTypeBulkV1 JobType = "Classic"
)

// JobState is a bulk job lifecycle state.
type JobState string

const (
	JobStateOpen           JobState = "Open"
	JobStateUploadComplete JobState = "UploadComplete"
	JobStateInProgress     JobState = "InProgress"
	JobStateJobComplete    JobState = "JobComplete"
	JobStateFailed         JobState = "Failed"
	JobStateAborted        JobState = "Aborted"
	JobStateClosed         JobState = "Closed"
)

// BatchState is a Bulk API v1 batch lifecycle state.
type BatchState string

const (
	BatchStateQueued       BatchState = "Queued"
	BatchStateInProgress   BatchState = "InProgress"
	BatchStateCompleted    BatchState = "Completed"
	BatchStateFailed       BatchState = "Failed"
	BatchStateNotProcessed BatchState = "Not Processed"
)

// CreatedByID is the fixed user ID stamped on every job.
const CreatedByID = "005000000000000AAA"

// APIVersion is the emulated platform API version.
const APIVersion = 59.0

// Job is a bulk data job, v1 or v2.
type Job struct {
	ID                  string
	Type                JobType
	Operation           string
	Object              string
	State               JobState
	ExternalIDFieldName string
	ContentType         string
	LineEnding          string
	ColumnDelimiter     string
	Query               string

	// Payload is the accumulated CSV body of a v2 ingest job.
	Payload string
	// QueryResults is the serialized CSV output of a v2 query job.
	QueryResults string
	// ResultFields holds the input header order so result CSVs render
	// columns deterministically.
	ResultFields      []string
	SuccessfulResults []RowResult
	FailedResults     []RowResult

	NumberRecordsProcessed int
	NumberRecordsFailed    int
	TotalProcessingTime    int64
	Retries                int

	CreatedDate    string
	SystemModstamp string
}

// Batch is one uploaded chunk of a Bulk API v1 job.
type Batch struct {
	ID                     string
	JobID                  string
	State                  BatchState
	NumberRecordsProcessed int
	NumberRecordsFailed    int
	Results                []RowResult
	StateMessage           string
	CreatedDate            string
	SystemModstamp         string
}

// RowResult is the outcome of processing one data row.
type RowResult struct {
	ID      string            `json:"id"`
	Created bool              `json:"created"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Failed reports whether the row was rejected.
func (r RowResult) Failed() bool {
	return r.Error != ""
}

// ingest jobs move Open -> UploadComplete -> InProgress -> terminal; the
// client may only request UploadComplete or Aborted. v1 jobs move
// Open -> Closed or Open -> Aborted.
var clientTransitions = map[JobType]map[JobState][]JobState{
	JobTypeIngest: {
		JobStateOpen:           {JobStateUploadComplete, JobStateAborted},
		JobStateUploadComplete: {JobStateAborted},
	},
	JobTypeQuery: {
		JobStateUploadComplete: {JobStateAborted},
		JobStateInProgress:     {JobStateAborted},
	},
	JobTypeBulkV1: {
		JobStateOpen: {JobStateClosed, JobStateAborted},
	},
}

// Transition applies a client-requested state change, rejecting moves the
// lifecycle does not allow.
func (j *Job) Transition(to JobState) error {
	for _, allowed := range clientTransitions[j.Type][j.State] {
		if allowed == to {
			j.State = to
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s for %s job", j.State, to, j.Type)
}

// Terminal reports whether the job can no longer change state.
func (j *Job) Terminal() bool {
	switch j.State {
	case JobStateJobComplete, JobStateFailed, JobStateAborted, JobStateClosed:
		return true
	}
	return false
}
