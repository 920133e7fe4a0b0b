// Package enrich attaches computed attributes to review records.
//
// An Enricher classifies the review_body of every record in a batch and
// stores the label under the Sentiment field. Classification calls fan out
// over a bounded worker pool; labels are attached only once every record has
// been classified, so a failed enrichment leaves the batch exactly as it was.
//
// Project reduces an enriched batch to the {id, Sentiment} pairs consumed by
// the metrics artifact.
package enrich
