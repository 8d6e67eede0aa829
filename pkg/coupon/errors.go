package coupon

import "errors"

// Reason is a stable rejection code, safe to show to end users and stable
// enough for callers to branch on.
type Reason string

const (
	ReasonNotFound          Reason = "not_found"
	ReasonInactive          Reason = "inactive"
	ReasonExpired           Reason = "expired"
	ReasonNotYetValid       Reason = "not_yet_valid"
	ReasonWrongBillingCycle Reason = "wrong_billing_cycle"
	ReasonAlreadyUsed       Reason = "already_used"
	ReasonLimitReached      Reason = "limit_reached"
	ReasonNotEligible       Reason = "not_eligible"
)

// Rejection is a business-rule refusal. It is an expected outcome, not a
// failure: validation returns it instead of panicking or logging.
type Rejection struct {
	Code   string // the coupon code as submitted
	Reason Reason
}

func (r *Rejection) Error() string {
	return "coupon rejected: " + string(r.Reason)
}

// Reject builds a Rejection for the given code and reason.
func Reject(code string, reason Reason) *Rejection {
	return &Rejection{Code: code, Reason: reason}
}

// AsRejection unwraps err into a *Rejection if it is one.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

var (
	ErrStoreFailure = errors.New("coupon store failure")
)
