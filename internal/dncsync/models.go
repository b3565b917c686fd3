// Package dncsync tracks registry refresh jobs per tenant and source and
// computes the compliance deadlines that make a stale registry visible before
// it becomes a violation.
package dncsync

import (
	"time"

	"github.com/google/uuid"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
)

// External registries must be refreshed at least every 31 days; a tenant
// within 5 days of that deadline is flagged as approaching. Statutory and
// policy values, not configuration.
const (
	ExternalSyncInterval = 31 * 24 * time.Hour
	WarningWindow        = 5 * 24 * time.Hour
	// ImportChunkSize bounds per-call payloads so a long import shows partial
	// progress instead of an all-or-nothing write.
	ImportChunkSize = 100
)

// JobStatus tracks one sync attempt. Only a completed job moves the
// last-synced clock used for deadline math.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status accepts no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// validTransitions holds the allowed status edges.
var validTransitions = map[JobStatus][]JobStatus{
	JobPending:    {JobInProgress, JobFailed},
	JobInProgress: {JobCompleted, JobFailed},
}

// CanTransition reports whether from → to is a legal edge.
func CanTransition(from, to JobStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is one registry sync attempt for a tenant and source.
type Job struct {
	ID          uuid.UUID
	Tenant      string
	Source      dnc.Source
	Status      JobStatus
	Processed   int
	Added       int
	Removed     int
	Errors      int
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// JobStats carries the counters reported on a status update.
type JobStats struct {
	Processed int
	Added     int
	Removed   int
	Errors    int
	Error     string
}

// SourceStatus is the computed deadline picture for one source.
type SourceStatus struct {
	Source            dnc.Source
	LastSyncAt        *time.Time
	NextDeadline      *time.Time
	DaysSinceLastSync int // -1 when never synced
	Overdue           bool
	Approaching       bool
	RecordCount       int
}

// ChunkResult reports one fixed-size chunk of an import. Offset is the index
// of the chunk's first number in the submitted batch.
type ChunkResult struct {
	Offset  int
	Added   int
	Skipped int
	Errors  int
}

// ImportResult reports a batch import: aggregate counters plus the per-chunk
// breakdown, so a partially failed import shows where the failures landed.
type ImportResult struct {
	Added   int
	Skipped int
	Errors  int
	Chunks  []ChunkResult
}

// OverdueTenant is one entry in the scheduled sweep's report.
type OverdueTenant struct {
	Tenant            string
	Source            dnc.Source
	DaysSinceLastSync int
}
