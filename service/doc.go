// Package service serves the trees of a set of catalogs over HTTP: tree and
// branch listings, histogram draws, record dumps and column statistics,
// plus the process and basket metrics.
//
// Schemes: http
// Produces:
// - application/json
// - text/plain
// Version: v1.0.0
// swagger:meta
package service
