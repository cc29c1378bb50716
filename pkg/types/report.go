package types

import "time"

// FileError records one file that failed during a bulk index operation.
// Per-file failures never abort the operation.
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// IndexReport summarizes one completed (or cancelled) index operation.
type IndexReport struct {
	OperationID string        `json:"operation_id"`
	Collection  string        `json:"collection"`
	TotalFiles  int           `json:"total_files"`
	Indexed     int           `json:"indexed"`
	Skipped     int           `json:"skipped"`
	Removed     int           `json:"removed"`
	Failed      int           `json:"failed"`
	Chunks      int           `json:"chunks"`
	Duration    time.Duration `json:"duration"`
	FileErrors  []FileError   `json:"file_errors,omitempty"`
	Cancelled   bool          `json:"cancelled,omitempty"`
}
