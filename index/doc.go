// Package index writes enriched batches into a search index.
//
// An Indexer turns a batch into one bulk request: Create mode emits a full
// document "index" operation per record (the engine's upsert), Update mode
// emits a partial "update" operation carrying the record as the doc. Every
// record gets exactly one Outcome in batch order. Outcomes are matched to
// engine response items by document id, never by position, so a reordered
// response cannot misattribute failures.
//
// Records that cannot be addressed (no id, or an id already used earlier in
// the batch) are rejected locally and never sent; their siblings still are.
package index
