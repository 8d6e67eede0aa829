// Package redis provides Redis connectivity with retry and a healthcheck
// adapter, used by the entitlement counter cache.
package redis
