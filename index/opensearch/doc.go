// Package opensearch implements index.SearchEngine on an OpenSearch cluster.
//
// Requests go through the opensearch-go transport, which owns connection
// pooling, node selection and basic authentication. Bulk bodies are written
// as newline-delimited JSON from the ordered record encoding so documents
// keep their source field order.
package opensearch
