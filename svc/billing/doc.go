// Package billing composes the plan catalog, coupon ledger, subscription
// store, entitlement checker and payment provider into the account-facing
// billing operations: checkout, coupon validation, webhook reconciliation,
// customer portal access and team invitations.
//
// Every operation is plain Go callable without HTTP; modules/billing mounts
// the thin transport shell on top.
package billing
