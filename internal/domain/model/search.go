package model

import "time"

// JobSearch collects the common filter parameters for a job listing.
type JobSearch struct {
	// Phases restricts the listing to jobs in any of the given phases.
	Phases []ExecutionPhase
	// Since restricts the listing to jobs created strictly after this instant.
	Since *time.Time
	// Cursor resumes a paginated listing from an encoded position.
	Cursor *JobCursor
	// Limit caps the number of jobs returned. Zero means no limit; negative
	// values are rejected by the store.
	Limit int
}

// JobCursor is a decoded position in the (creation_time desc, id desc)
// ordering of a job listing. Previous selects the page before the position
// instead of the page starting at it.
type JobCursor struct {
	Time     time.Time
	ID       int64
	Previous bool
}

// JobList is one page of a job listing plus the cursors needed to build
// next and previous links. A nil cursor means that page does not exist.
type JobList struct {
	Entries    []*Job
	NextCursor *JobCursor
	PrevCursor *JobCursor
}
