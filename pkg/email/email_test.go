package email_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cataloghq/cataloghq/pkg/email"
)

type captureSender struct {
	sent []email.SendParams
	err  error
}

func (c *captureSender) SendEmail(_ context.Context, params email.SendParams) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, params)
	return nil
}

func TestSendParamsValidate(t *testing.T) {
	t.Parallel()

	valid := email.SendParams{
		SendTo:   "member@example.com",
		Subject:  "Hello",
		BodyHTML: "<p>Hi</p>",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*email.SendParams)
	}{
		{"missing recipient", func(p *email.SendParams) { p.SendTo = "" }},
		{"malformed recipient", func(p *email.SendParams) { p.SendTo = "not-an-email" }},
		{"missing subject", func(p *email.SendParams) { p.Subject = "" }},
		{"missing body", func(p *email.SendParams) { p.BodyHTML = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := valid
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), email.ErrInvalidParams)
		})
	}
}

func TestSendTeamInvitation(t *testing.T) {
	t.Parallel()

	sender := &captureSender{}
	inv := email.Invitation{
		RecipientEmail: "member@example.com",
		InviterName:    "Ada",
		CatalogueName:  "Spring Collection",
		AcceptURL:      "https://app.example.com/invites/abc",
	}

	require.NoError(t, email.SendTeamInvitation(context.Background(), sender, inv))
	require.Len(t, sender.sent, 1)

	sent := sender.sent[0]
	assert.Equal(t, "member@example.com", sent.SendTo)
	assert.Contains(t, sent.Subject, "Ada")
	assert.Contains(t, sent.Subject, "Spring Collection")
	assert.Contains(t, sent.BodyHTML, "https://app.example.com/invites/abc")
	assert.Equal(t, "team-invitation", sent.Tag)
}

func TestSendTeamInvitationRequiresURL(t *testing.T) {
	t.Parallel()

	err := email.SendTeamInvitation(context.Background(), &captureSender{}, email.Invitation{
		RecipientEmail: "member@example.com",
		InviterName:    "Ada",
		CatalogueName:  "Spring Collection",
	})
	assert.ErrorIs(t, err, email.ErrInvalidParams)
}

func TestSendTeamInvitationPropagatesSenderError(t *testing.T) {
	t.Parallel()

	boom := errors.New("smtp down")
	err := email.SendTeamInvitation(context.Background(), &captureSender{err: boom}, email.Invitation{
		RecipientEmail: "member@example.com",
		InviterName:    "Ada",
		CatalogueName:  "Spring Collection",
		AcceptURL:      "https://app.example.com/invites/abc",
	})
	assert.ErrorIs(t, err, boom)
}

func TestDevSenderWritesFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sender := email.NewDevSender(dir)

	require.NoError(t, sender.SendEmail(context.Background(), email.SendParams{
		SendTo:   "member@example.com",
		Subject:  "Invitation",
		BodyHTML: "<p>Hi</p>",
		Tag:      "team-invitation",
	}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "expects one .html and one .json file")
}
