package webhook

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid webhook configuration")
	ErrSignatureInvalid     = errors.New("webhook signature verification failed")
)
