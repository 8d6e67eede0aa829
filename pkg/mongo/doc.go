// Package mongo provides MongoDB connectivity with retry and a healthcheck
// adapter, used by the document-store variant of the webhook audit trail.
package mongo
