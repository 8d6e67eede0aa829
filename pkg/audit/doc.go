// Package audit keeps a write-once trail of received webhook deliveries.
//
// Every inbound provider event is recorded verbatim (provider, event type,
// external ID, processed flag, raw payload) so operators can reconstruct
// what the provider sent and when. The trail is an audit log, not an
// idempotency mechanism: re-applied events stay harmless because the
// reconciler upserts by external subscription ID.
//
// Two production stores implement the same interface, PostgresStore for
// deployments that keep everything relational and MongoStore for those that
// route raw payloads to a document store. Trail wraps either one with
// best-effort semantics: append failures are logged, never propagated.
package audit
