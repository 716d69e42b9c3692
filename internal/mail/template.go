package mail

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/paperboydev/paperboy/internal/storage"
)

// DailyData feeds the daily edition email template.
type DailyData struct {
	Date         string
	ArtifactURL  string
	Strategy     string
	ThumbnailCID string
	PastEditions []storage.PastEdition
}

// AlertData feeds the failure alert template.
type AlertData struct {
	Date      string
	ErrorKind string
	Reason    string
	Attempts  []string
}

const dailyTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; color: #222;">
  <h2>Your paper for {{.Date}}</h2>
  {{if .ThumbnailCID}}
  <p><a href="{{.ArtifactURL}}"><img src="cid:{{.ThumbnailCID}}" alt="Front page" style="max-width: 480px; border: 1px solid #ccc;"></a></p>
  {{end}}
  <p><a href="{{.ArtifactURL}}">Download today's edition</a></p>
  {{if .PastEditions}}
  <h3>Recent editions</h3>
  <ul>
    {{range .PastEditions}}
    <li><a href="{{.URL}}">{{.Date}}</a></li>
    {{end}}
  </ul>
  {{end}}
  <p style="color: #888; font-size: 12px;">Delivered by paperboy.</p>
</body>
</html>`

const alertTemplate = `<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; color: #222;">
  <h2>Edition fetch failed for {{.Date}}</h2>
  <p><strong>{{.ErrorKind}}</strong>: {{.Reason}}</p>
  {{if .Attempts}}
  <h3>Attempts</h3>
  <ul>
    {{range .Attempts}}
    <li>{{.}}</li>
    {{end}}
  </ul>
  {{end}}
  <p style="color: #888; font-size: 12px;">Delivered by paperboy.</p>
</body>
</html>`

var (
	dailyTmpl = template.Must(template.New("daily").Parse(dailyTemplate))
	alertTmpl = template.Must(template.New("alert").Parse(alertTemplate))
)

// RenderDaily produces the daily email HTML body.
func RenderDaily(data DailyData) (string, error) {
	var buf bytes.Buffer
	if err := dailyTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render daily email: %w", err)
	}
	return buf.String(), nil
}

// RenderAlert produces the failure alert HTML body.
func RenderAlert(data AlertData) (string, error) {
	var buf bytes.Buffer
	if err := alertTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render alert email: %w", err)
	}
	return buf.String(), nil
}
