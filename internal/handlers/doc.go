// Package handlers provides the HTTP API served by "cadventory serve".
//
// It includes handlers for:
//   - Library information and categorized file lists
//   - Models, their objects and thumbnails
//   - Tags and batch selection
//   - Starting, observing and stopping a processing run
//   - Search and file audits
//   - Health checks, version and Prometheus metrics
//
// [NewRouter] wires every handler onto a gorilla/mux router together with
// the logging, metrics and compression middleware.
package handlers
