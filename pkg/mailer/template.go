package mailer

import (
	"fmt"
	"html/template"
	"strings"
	"time"
)

// ReminderEmail holds the fields rendered into the expiry reminder template.
type ReminderEmail struct {
	UserName       string
	CredentialName string
	CredentialType string
	Organization   string
	ExpiryDate     time.Time
	DaysUntil      int
	RenewalLink    string
}

// Subject returns the reminder subject line.
func (r ReminderEmail) Subject() string {
	switch {
	case r.DaysUntil < 0:
		return fmt.Sprintf("Your %s has expired", r.CredentialName)
	case r.DaysUntil == 0:
		return fmt.Sprintf("Your %s expires today", r.CredentialName)
	case r.DaysUntil == 1:
		return fmt.Sprintf("Your %s expires tomorrow", r.CredentialName)
	default:
		return fmt.Sprintf("Your %s expires in %d days", r.CredentialName, r.DaysUntil)
	}
}

// urgencyColor mirrors the dashboard palette: red inside a week, amber inside
// a month, green otherwise.
func (r ReminderEmail) urgencyColor() string {
	switch {
	case r.DaysUntil <= 7:
		return "#EF4444"
	case r.DaysUntil <= 30:
		return "#F59E0B"
	default:
		return "#10B981"
	}
}

var reminderTmpl = template.Must(template.New("reminder").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Credential Expiry Reminder</title>
</head>
<body style="font-family: 'Inter', -apple-system, sans-serif; line-height: 1.6; color: #111827; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: linear-gradient(135deg, #0066FF 0%, #0052CC 100%); padding: 30px; border-radius: 12px 12px 0 0; text-align: center;">
    <h1 style="color: white; margin: 0; font-size: 24px;">Credential Expiry Reminder</h1>
  </div>
  <div style="background: #ffffff; padding: 30px; border: 1px solid #e5e7eb; border-top: none; border-radius: 0 0 12px 12px;">
    <p style="font-size: 16px;">Hi {{.UserName}},</p>
    <p style="font-size: 16px;">
      Your <strong>{{.CredentialName}}</strong> will expire in <strong style="color: {{.Color}};">{{.DaysUntil}} days</strong> on <strong>{{.ExpiryDate}}</strong>.
    </p>
    <div style="background: #F9FAFB; border-radius: 8px; padding: 20px; margin: 20px 0;">
      <h3 style="margin: 0 0 15px 0; font-size: 14px; color: #6B7280; text-transform: uppercase;">Credential Details</h3>
      <table style="width: 100%; border-collapse: collapse;">
        <tr>
          <td style="padding: 8px 0; color: #6B7280; font-size: 14px;">Type:</td>
          <td style="padding: 8px 0; font-weight: 600; font-size: 14px;">{{.CredentialType}}</td>
        </tr>
        <tr>
          <td style="padding: 8px 0; color: #6B7280; font-size: 14px;">Organization:</td>
          <td style="padding: 8px 0; font-weight: 600; font-size: 14px;">{{.Organization}}</td>
        </tr>
        <tr>
          <td style="padding: 8px 0; color: #6B7280; font-size: 14px;">Expiration Date:</td>
          <td style="padding: 8px 0; font-weight: 600; font-size: 14px;">{{.ExpiryDate}}</td>
        </tr>
      </table>
    </div>
    <div style="text-align: center; margin: 30px 0;">
      <a href="{{.RenewalLink}}" style="display: inline-block; background: #0066FF; color: white; padding: 14px 28px; border-radius: 8px; text-decoration: none; font-weight: 600; font-size: 16px;">View in Dashboard</a>
    </div>
    <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 30px 0;">
    <p style="font-size: 14px; color: #6B7280;">
      Questions? Reply to this email or visit your CertTracker dashboard.
    </p>
    <p style="font-size: 14px; color: #6B7280; margin: 0;">
      Best regards,<br>
      <strong>CertTracker Team</strong>
    </p>
  </div>
</body>
</html>
`))

// PasswordResetEmail holds the fields rendered into the reset template.
type PasswordResetEmail struct {
	UserName         string
	ResetLink        string
	ExpiresInMinutes int
}

var passwordResetTmpl = template.Must(template.New("password-reset").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Reset Your Password</title>
</head>
<body style="font-family: 'Inter', -apple-system, sans-serif; line-height: 1.6; color: #111827; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: linear-gradient(135deg, #0066FF 0%, #0052CC 100%); padding: 30px; border-radius: 12px 12px 0 0; text-align: center;">
    <h1 style="color: white; margin: 0; font-size: 24px;">Reset Your Password</h1>
  </div>
  <div style="background: #ffffff; padding: 30px; border: 1px solid #e5e7eb; border-top: none; border-radius: 0 0 12px 12px;">
    <p style="font-size: 16px;">Hi {{.UserName}},</p>
    <p style="font-size: 16px;">
      We received a request to reset your CertTracker password. Click the button below to choose a new one.
    </p>
    <div style="text-align: center; margin: 30px 0;">
      <a href="{{.ResetLink}}" style="display: inline-block; background: #0066FF; color: white; padding: 14px 28px; border-radius: 8px; text-decoration: none; font-weight: 600; font-size: 16px;">Reset Password</a>
    </div>
    <p style="font-size: 14px; color: #6B7280;">
      This link expires in {{.ExpiresInMinutes}} minutes. If you did not request a password reset, you can safely ignore this email.
    </p>
    <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 30px 0;">
    <p style="font-size: 14px; color: #6B7280; margin: 0;">
      Best regards,<br>
      <strong>CertTracker Team</strong>
    </p>
  </div>
</body>
</html>
`))

// RenderPasswordReset produces the HTML body for a password reset email.
func RenderPasswordReset(email PasswordResetEmail) (string, error) {
	var sb strings.Builder
	if err := passwordResetTmpl.Execute(&sb, email); err != nil {
		return "", fmt.Errorf("rendering password reset template: %w", err)
	}
	return sb.String(), nil
}

// RenderReminder produces the HTML body for an expiry reminder.
func RenderReminder(email ReminderEmail) (string, error) {
	link := email.RenewalLink
	if strings.TrimSpace(link) == "" {
		link = "https://certtracker.app/dashboard"
	}
	data := struct {
		UserName       string
		CredentialName string
		CredentialType string
		Organization   string
		ExpiryDate     string
		DaysUntil      int
		Color          string
		RenewalLink    string
	}{
		UserName:       email.UserName,
		CredentialName: email.CredentialName,
		CredentialType: email.CredentialType,
		Organization:   email.Organization,
		ExpiryDate:     email.ExpiryDate.Format("January 2, 2006"),
		DaysUntil:      email.DaysUntil,
		Color:          email.urgencyColor(),
		RenewalLink:    link,
	}

	var sb strings.Builder
	if err := reminderTmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering reminder template: %w", err)
	}
	return sb.String(), nil
}
