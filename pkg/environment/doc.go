// Package environment carries the deployment environment name through
// request contexts, used by the logger presets and the HTTP middleware.
package environment
