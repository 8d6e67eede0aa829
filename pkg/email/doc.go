// Package email delivers transactional email for the billing flows, most
// importantly team invitations. Production uses Postmark; development uses
// a file-backed sender so no credentials are needed locally.
package email
