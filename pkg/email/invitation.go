package email

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

// Invitation carries everything the team-invitation email needs.
type Invitation struct {
	RecipientEmail string
	InviterName    string
	CatalogueName  string
	AcceptURL      string
}

var invitationTemplate = template.Must(template.New("team_invitation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1f2937;">
  <h2>You're invited to collaborate</h2>
  <p>{{.InviterName}} invited you to join the catalogue <strong>{{.CatalogueName}}</strong>.</p>
  <p><a href="{{.AcceptURL}}" style="display: inline-block; padding: 10px 18px; background: #2563eb; color: #ffffff; text-decoration: none; border-radius: 6px;">Accept invitation</a></p>
  <p>If you weren't expecting this invitation, you can ignore this email.</p>
</body>
</html>`))

// SendTeamInvitation renders and delivers the invitation email through the
// given sender. Callers treat a failure as grounds to roll back the
// invitation record itself.
func SendTeamInvitation(ctx context.Context, sender Sender, inv Invitation) error {
	if inv.AcceptURL == "" {
		return fmt.Errorf("%w: accept URL is required", ErrInvalidParams)
	}

	var body strings.Builder
	if err := invitationTemplate.Execute(&body, inv); err != nil {
		return errors.Join(ErrFailedToSend, err)
	}

	return sender.SendEmail(ctx, SendParams{
		SendTo:   inv.RecipientEmail,
		Subject:  fmt.Sprintf("%s invited you to %s", inv.InviterName, inv.CatalogueName),
		BodyHTML: body.String(),
		Tag:      "team-invitation",
	})
}
