// Package opid defines the fixed-width identifiers used throughout the
// kernel: operation identifiers derived from operation signature strings,
// capability identifiers derived from capability names, and module
// addresses derived from code hashes.
//
// All identifiers are content-derived via domain-separated SHA-256, so a
// given signature always produces the same identifier across processes and
// restarts. Meaningful collision between two distinct signatures is a
// deployment-time error, caught when a manifest or cut is compiled, never
// checked at dispatch time.
package opid
