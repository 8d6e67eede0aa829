// Package webhook implements HMAC-SHA256 verification of inbound webhook
// envelopes. The signature header binds a unix timestamp to the raw body so
// captured deliveries cannot be replayed outside a configurable window.
//
// Verification must happen on the raw request body before any JSON parsing;
// a failed check is always fatal for the request.
package webhook
