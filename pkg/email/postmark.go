package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

type postmarkSender struct {
	client *postmark.Client
	config Config
}

// NewPostmarkSender creates a Postmark-backed Sender. All tokens and
// addresses are validated up front so a misconfigured process fails at
// startup, not on the first invitation.
func NewPostmarkSender(cfg Config) (Sender, error) {
	switch {
	case cfg.PostmarkServerToken == "":
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	case cfg.PostmarkAccountToken == "":
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	case !emailRegex.MatchString(cfg.SenderEmail):
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	case !emailRegex.MatchString(cfg.SupportEmail):
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	return &postmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// MustNewPostmarkSender is NewPostmarkSender that panics on invalid config.
func MustNewPostmarkSender(cfg Config) Sender {
	sender, err := NewPostmarkSender(cfg)
	if err != nil {
		panic(err)
	}
	return sender
}

func (s *postmarkSender) SendEmail(ctx context.Context, params SendParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.config.SenderEmail,
		ReplyTo:    s.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSend,
			fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
