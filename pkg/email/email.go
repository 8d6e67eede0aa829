package email

import (
	"context"
	"fmt"
	"regexp"
)

// Config holds outbound email configuration. The Postmark tokens are
// optional so development environments can run with the file-based sender;
// sender identity is always required.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL,required"`
	SupportEmail         string `env:"SUPPORT_EMAIL,required"`
}

// Sender delivers one transactional email.
type Sender interface {
	SendEmail(ctx context.Context, params SendParams) error
}

// SendParams describes one outbound email.
type SendParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate rejects malformed parameters before any delivery attempt.
func (p SendParams) Validate() error {
	switch {
	case p.SendTo == "":
		return fmt.Errorf("%w: recipient is required", ErrInvalidParams)
	case !emailRegex.MatchString(p.SendTo):
		return fmt.Errorf("%w: recipient must be a valid email address", ErrInvalidParams)
	case p.Subject == "":
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	case p.BodyHTML == "":
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}
