// Package storage provides the content-addressed archive the collector
// writes to.
//
// Every entry is identified by the SHA-256 of its bytes (interfaces.ContentID)
// and filed under a content type: "reports" for decoded reports as JSON,
// "rejected" for raw datagrams that failed authentication or decoding.
//
// # Backends
//
//   - file:///var/lib/telemetry/archive
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=eu-west-1&endpoint=...&path_style=true
//   - ipfs://host:5001/root?timeout=30s (entries live in the node's MFS)
//
// StorageBackendFactory builds backends from these URIs. Several locations
// combine into a MultiStorageBackend, which writes to every available
// backend and reads from the first that has the entry.
package storage
