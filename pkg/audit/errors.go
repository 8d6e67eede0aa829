package audit

import "errors"

var (
	ErrAppendFailed = errors.New("failed to append audit event")
	ErrQueryFailed  = errors.New("failed to query audit events")
)
