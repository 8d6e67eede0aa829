// Package artifact stores export documents (CSV, PDF, feed files) produced
// by catalogue exports. Production uses S3 or an S3-compatible service;
// tests use the in-memory store. Export quota enforcement lives in
// pkg/entitlement and is independent of where documents land.
package artifact
