package badger

import "fmt"

// Key prefixes for different data types
const (
	blobPrefix = "blob"
	runPrefix  = "run"
)

// makeBlobKey generates the key for an object.
// Format: blob:bucket:key. Bucket names cannot contain ':' so the
// first two separators are unambiguous.
func makeBlobKey(bucket, key string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", blobPrefix, bucket, key))
}

// makeRunKey generates the key for a run journal entry. Run ids are ULIDs,
// so lexicographic key order is chronological.
func makeRunKey(runID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", runPrefix, runID))
}
