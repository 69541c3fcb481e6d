// internal/app/system/mailer/templates.go
package mailer

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/pantry/email"
)

// VerificationEmailData holds data for the account verification email.
type VerificationEmailData struct {
	SiteName   string
	Username   string
	VerifyLink string
	ExpiresIn  string // e.g., "24 hours"
}

const verificationTemplate = "verification"

var templates = mustTemplates(email.EmailTemplate{
	Name:     verificationTemplate,
	Subject:  "Verify your {{.SiteName}} account",
	TextBody: verificationTextTemplate,
	HTMLBody: verificationHTMLTemplate,
})

func mustTemplates(tpls ...email.EmailTemplate) *email.TemplateStore {
	store := email.NewTemplateStore()
	for _, tpl := range tpls {
		if err := store.Register(tpl); err != nil {
			panic(err)
		}
	}
	return store
}

// BuildVerificationEmail renders the verification email with both HTML and
// text bodies. The caller sets To.
func BuildVerificationEmail(data VerificationEmailData) (Email, error) {
	msg, err := templates.Render(verificationTemplate, data)
	if err != nil {
		return Email{}, fmt.Errorf("mailer: render verification email: %w", err)
	}
	return Email{
		Subject:  msg.Subject,
		TextBody: msg.TextBody,
		HTMLBody: msg.HTMLBody,
	}, nil
}

// FormatExpiry renders d the way it reads in an email ("24 hours", "30 minutes").
func FormatExpiry(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

const verificationTextTemplate = `Hi {{.Username}},

Welcome to {{.SiteName}}! Confirm your email address by opening this link:
{{.VerifyLink}}

This link expires in {{.ExpiresIn}}.

If you did not create an account, you can safely ignore this email.
`

const verificationHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Verify your email</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f0f9ff;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f0f9ff;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #0369a1;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151; line-height: 1.5;">Hi {{.Username}},</p>
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                Confirm your email address to start planning trips.
              </p>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.VerifyLink}}" style="display: inline-block; padding: 14px 32px; background-color: #0369a1; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      Verify email
                    </a>
                  </td>
                </tr>
              </table>
              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">
                This link expires in {{.ExpiresIn}}.
              </p>
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">
                If you did not create an account, you can safely ignore this email.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
