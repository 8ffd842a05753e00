package notifier

import (
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/baechuer/lms-auth-service/internal/contracts"
	"github.com/baechuer/lms-auth-service/internal/infrastructure/mail"
)

const layout = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1 style="color: #2f5d8a;">{{.Title}}</h1>
		{{template "body" .}}
		<hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
		<p style="color: #999; font-size: 12px;">This is an automated message, please do not reply.</p>
	</div>
</body>
</html>`

func page(name, body string) *template.Template {
	t := template.Must(template.New(name).Parse(layout))
	return template.Must(t.New("body").Parse(body))
}

var (
	otpHTML = page("registration_otp", `
		<p>Use this code to finish creating your account:</p>
		<p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
		<p>The code expires at {{.ExpiresAt}}.</p>
		<p>If you didn't sign up, you can ignore this email.</p>`)

	resetHTML = page("password_reset", `
		<p>We received a request to reset your password.</p>
		<p><a href="{{.URL}}" style="background-color: #2f5d8a; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Reset password</a></p>
		<p style="word-break: break-all; color: #666;">{{.URL}}</p>
		<p>If you didn't request this, your password stays unchanged.</p>`)

	decidedHTML = page("device_change_decided", `
		{{if .Approved}}
		<p>Your request to use the device <b>{{.Device}}</b> was approved.</p>
		<p>Sign in from that device to finish the switch. Your previous device stops working after that sign-in.</p>
		{{else}}
		<p>Your request to use the device <b>{{.Device}}</b> was rejected.</p>
		<p>Keep using your current device, or contact support if you need help.</p>
		{{end}}`)

	otpText     = texttemplate.Must(texttemplate.New("otp").Parse("Your verification code is {{.Code}}.\nIt expires at {{.ExpiresAt}}.\n"))
	resetText   = texttemplate.Must(texttemplate.New("reset").Parse("Reset your password by opening this link:\n\n{{.URL}}\n"))
	decidedText = texttemplate.Must(texttemplate.New("decided").Parse("Your device change request for {{.Device}} was {{.Status}}.\n"))
)

func render(html *template.Template, text *texttemplate.Template, data any) (string, string, error) {
	var hb, tb strings.Builder
	if err := html.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}
	if err := text.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("render text: %w", err)
	}
	return hb.String(), tb.String(), nil
}

func registrationOTPMail(p contracts.RegistrationOTPPayload) (mail.Message, error) {
	data := struct {
		Title     string
		Code      string
		ExpiresAt string
	}{"Confirm your email", p.Code, p.ExpiresAt.UTC().Format(time.RFC1123)}

	h, t, err := render(otpHTML, otpText, data)
	if err != nil {
		return mail.Message{}, err
	}
	return mail.Message{To: p.Email, Subject: "Your verification code", HTML: h, Text: t}, nil
}

func passwordResetMail(p contracts.PasswordResetPayload) (mail.Message, error) {
	data := struct {
		Title string
		URL   string
	}{"Reset your password", p.URL}

	h, t, err := render(resetHTML, resetText, data)
	if err != nil {
		return mail.Message{}, err
	}
	return mail.Message{To: p.Email, Subject: "Reset your password", HTML: h, Text: t}, nil
}

func deviceChangeDecidedMail(p contracts.DeviceChangeDecidedPayload) (mail.Message, error) {
	data := struct {
		Title    string
		Device   string
		Status   string
		Approved bool
	}{"Device change request " + p.Status, p.NewDeviceID, p.Status, p.Status == "approved"}

	h, t, err := render(decidedHTML, decidedText, data)
	if err != nil {
		return mail.Message{}, err
	}
	return mail.Message{To: p.Email, Subject: "Your device change request was " + p.Status, HTML: h, Text: t}, nil
}
