package storage

import "time"

// Object is a stored blob together with its metadata.
type Object struct {
	Data        []byte
	ContentType string
	Digest      string
	StoredAt    time.Time
}

// RunRecord summarizes one pipeline run.
type RunRecord struct {
	RunID      string
	Variant    string
	State      string
	Bucket     string
	Key        string
	Index      string
	Records    int
	Failed     int
	StatusCode int
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}
