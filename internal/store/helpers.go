package store

import (
	"fmt"
	"time"
)

// ErrNotFound is returned when a record, job, or batch does not exist.
var ErrNotFound = fmt.Errorf("not found")

// now returns the current UTC time formatted as a platform timestamp.
func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000+0000")
}

// Now is the timestamp helper exposed for callers that stamp audit fields
// onto records before writing them.
func Now() string {
	return now()
}
