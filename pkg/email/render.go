package email

import (
	"bytes"
	"fmt"
	"html/template"
)

var notificationTmpl = template.Must(template.New("notification").Parse(`<!doctype html>
<html>
<body style="font-family:sans-serif;max-width:560px;margin:0 auto;padding:24px">
{{- if .Image}}
<img src="{{.Image}}" alt="" style="max-width:100%;border-radius:8px">
{{- end}}
{{- if .Title}}
<h1 style="font-size:20px">{{.Title}}</h1>
{{- end}}
<p style="font-size:15px;line-height:1.5">{{.Message}}</p>
{{- if .URL}}
<p><a href="{{.URL}}">View details</a></p>
{{- end}}
</body>
</html>
`))

// Notification is the renderable part of a notification email.
type Notification struct {
	Title   string
	Message string
	URL     string
	Image   string
}

// RenderNotification renders n into the HTML body. Values are escaped.
func RenderNotification(n Notification) (string, error) {
	var buf bytes.Buffer
	if err := notificationTmpl.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("render notification email: %w", err)
	}
	return buf.String(), nil
}
