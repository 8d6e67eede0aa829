// Package identity resolves the currently authenticated user for the
// billing flows. Authentication itself is delegated to an external OAuth2
// identity provider; this package only exchanges codes, reads the userinfo
// endpoint, and carries the resolved user through request contexts.
package identity
