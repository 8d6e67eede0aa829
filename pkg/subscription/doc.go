// Package subscription owns the local subscription record and its status
// state machine, plus the billing provider abstraction that feeds it.
//
// Statuses form a fixed transition table (incomplete, active, trialing,
// past_due, unpaid, canceled - canceled is terminal). Exactly active and
// trialing count toward entitlement. Every store write validates the
// requested transition; nothing else in the codebase mutates subscription
// rows.
//
// Two callers drive transitions: the local free-tier checkout path
// (Store.CreateLocal, which activates immediately with a locally computed
// period and supersedes older counting rows), and the webhook reconciler in
// svc/billing, which translates provider events through MapProviderStatus and
// applies them via Store.Upsert / Store.SetStatusByProviderID. Upserts are
// keyed on the provider's stable subscription identifier, which is what makes
// replayed deliveries no-ops.
//
// Provider implementations: PaddleProvider (hosted checkout via the Paddle
// SDK) and GenericProvider (HMAC-signed events for self-hosted deployments
// and tests). Both verify the event envelope inside ParseWebhook and return
// ErrSignatureInvalid before touching the payload.
package subscription
