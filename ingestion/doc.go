// Package ingestion runs the review pipeline end to end.
//
// A Pipeline executes one invocation as a fixed sequence of stages:
//   - load the batch from the source bucket
//   - assign identifiers and classify sentiment
//   - write the batch to the search index in a single bulk request
//   - persist the enriched batch (or its metrics projection)
//
// Stages run sequentially; only enrichment fans out, on the Enricher's worker
// pool. A failed stage stops the run and is reported as a *StageError. Index
// writes that already committed are not rolled back; re-running the same
// invocation is safe because documents are addressed by id.
//
// Every run produces a Result that is handed to the configured Notifiers.
// Notifier failures are logged and never change the outcome of the run.
package ingestion
