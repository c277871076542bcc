package mail

import (
	"bytes"
	"html/template"
)

var layout = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <div style="max-width: 560px; margin: 0 auto; padding: 24px;">
    <h2 style="color: #1d4ed8;">{{.Title}}</h2>
    {{if .Name}}<p>Dear {{.Name}},</p>{{end}}
    <p>{{.Body}}</p>
    <hr style="border: none; border-top: 1px solid #e5e7eb;">
    <p style="font-size: 12px; color: #6b7280;">Government Services Center. This is an automated message, please do not reply.</p>
  </div>
</body>
</html>`))

type notificationData struct {
	Title string
	Name  string
	Body  string
}

// RenderNotification builds the HTML body for a notification email. Values are
// escaped by html/template.
func RenderNotification(name, title, body string) (string, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, notificationData{Title: title, Name: name, Body: body}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var resetLayout = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <div style="max-width: 560px; margin: 0 auto; padding: 24px;">
    <h2 style="color: #1d4ed8;">Reset your password</h2>
    <p>A password reset was requested for this account. The link expires in {{.Minutes}} minutes.</p>
    <p><a href="{{.Link}}" style="color: #1d4ed8;">Choose a new password</a></p>
    <p>If you did not ask for this, ignore this email.</p>
    <hr style="border: none; border-top: 1px solid #e5e7eb;">
    <p style="font-size: 12px; color: #6b7280;">Government Services Center. This is an automated message, please do not reply.</p>
  </div>
</body>
</html>`))

func RenderPasswordReset(link string, minutes int) (string, error) {
	var buf bytes.Buffer
	err := resetLayout.Execute(&buf, struct {
		Link    string
		Minutes int
	}{link, minutes})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
