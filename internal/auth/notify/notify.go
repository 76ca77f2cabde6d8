// Package notify delivers invite links to invitees.
package notify

import (
	"context"
	"errors"
	htmltmpl "html/template"
	"log/slog"
	"strings"
	texttmpl "text/template"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/bonkmc/modernauth/internal/auth/domain"
	"github.com/bonkmc/modernauth/pkg/slogx"
)

// ErrNotDelivered reports that an invite was not sent to the invitee.
var ErrNotDelivered = errors.New("notify: invite not delivered")

const defaultSubject = "You have been invited to administer game servers"

var (
	defaultTextTmpl = texttmpl.Must(texttmpl.New("invite.txt").Parse(
		`You have been invited as {{.Role}}.

Open the link below and sign in to accept the invite:

{{.Link}}

The link expires at {{.ExpiresAt}}. If you did not expect this message you can ignore it.
`))

	defaultHTMLTmpl = htmltmpl.Must(htmltmpl.New("invite.html").Parse(
		`<p>You have been invited as <strong>{{.Role}}</strong>.</p>
<p><a href="{{.Link}}">Accept the invite</a></p>
<p>The link expires at {{.ExpiresAt}}. If you did not expect this message you can ignore it.</p>
`))
)

type tmplData struct {
	Role      domain.InviteRole
	Link      string
	ExpiresAt string
}

// Mailgun sends invites through the Mailgun API.
type Mailgun struct {
	From          string
	Subject       string
	PlainTextTmpl *texttmpl.Template
	HTMLTmpl      *htmltmpl.Template
	Client        mailgun.Mailgun
}

// NewMailgun returns a Mailgun mailer with the default templates. An empty
// apiBase keeps the client's US default.
func NewMailgun(domainName, apiKey, apiBase, from string) *Mailgun {
	client := mailgun.NewMailgun(domainName, apiKey)
	if apiBase != "" {
		client.SetAPIBase(apiBase)
	}
	return &Mailgun{
		From:          from,
		Subject:       defaultSubject,
		PlainTextTmpl: defaultTextTmpl,
		HTMLTmpl:      defaultHTMLTmpl,
		Client:        client,
	}
}

// SendInvite mails the invite link to the invitee.
func (m *Mailgun) SendInvite(ctx context.Context, to, link string, role domain.InviteRole, expiresAt time.Time) error {
	log := slogx.FromContext(ctx)

	text, html, err := render(m.PlainTextTmpl, m.HTMLTmpl, tmplData{
		Role:      role,
		Link:      link,
		ExpiresAt: expiresAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return err
	}

	msg := m.Client.NewMessage(m.From, m.Subject, text, to)
	msg.SetTracking(false)
	msg.SetHtml(html)

	_, id, err := m.Client.Send(ctx, msg)
	if err != nil {
		return err
	}
	log.Debug("sent invite email", slog.String("mailgun_msg_id", id))
	return nil
}

// Log stands in when no mail provider is configured. It records that an
// invite is waiting; the link itself is only returned to the admin who
// minted it.
type Log struct {
	Logger *slog.Logger
}

func (l Log) SendInvite(ctx context.Context, _, _ string, role domain.InviteRole, expiresAt time.Time) error {
	logger := l.Logger
	if logger == nil {
		logger = slogx.FromContext(ctx)
	}
	logger.Info("invite email skipped: no mail provider configured",
		slog.String("role", string(role)),
		slog.Time("expires_at", expiresAt),
	)
	return ErrNotDelivered
}

func render(text *texttmpl.Template, html *htmltmpl.Template, data tmplData) (string, string, error) {
	var textBody, htmlBody strings.Builder
	if err := text.Execute(&textBody, data); err != nil {
		return "", "", err
	}
	if err := html.Execute(&htmlBody, data); err != nil {
		return "", "", err
	}
	return textBody.String(), htmlBody.String(), nil
}
