// Package middleware wraps the catalog HTTP API.
//
// It includes:
//   - Access logging through the logging package, with control characters
//     stripped from client-supplied fields
//   - Prometheus request metrics labelled by route template
//   - gzip compression of large JSON responses
package middleware
