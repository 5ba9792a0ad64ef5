package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/ecs-alert/ecs-alert/internal/database"
)

// Subject is the email subject line for every alert
const Subject = "Elastic Cloud Storage (ECS) Alert Received"

const defaultColor = "#000000"

var severityColors = map[string]string{
	"INFO":     "#008000",
	"WARNING":  "#FFA500",
	"ERROR":    "#FF0000",
	"CRITICAL": "#FF0000",
}

// SeverityColor maps an ECS severity to its display color
func SeverityColor(severity string) string {
	if c, ok := severityColors[severity]; ok {
		return c
	}
	return defaultColor
}

// Message is the channel-independent content of one notification
type Message struct {
	VDC         string
	Endpoint    string
	Link        string
	Severity    string
	Color       string
	SymptomCode string
	Description string
	Timestamp   string
}

func NewMessage(a *database.Alert) Message {
	return Message{
		VDC:         a.VDC,
		Endpoint:    a.ManagementEndpoint,
		Link:        "https://" + a.ManagementEndpoint,
		Severity:    a.Severity,
		Color:       SeverityColor(a.Severity),
		SymptomCode: a.SymptomCode,
		Description: a.Description,
		Timestamp:   a.AlertTimestamp,
	}
}

// Headline is the one-line summary used as Slack pretext and plain-text body
func (m Message) Headline() string {
	return fmt.Sprintf("ECS Alert Received From VDC: *%s*", m.VDC)
}

// PlainText renders the message without markup
func (m Message) PlainText() string {
	return fmt.Sprintf("%s\nECS Cluster: %s\nSeverity: %s\nSymptom Code: %s\nDescription: %s\nTimestamp: %s\n",
		Subject, m.Endpoint, m.Severity, m.SymptomCode, m.Description, m.Timestamp)
}

var emailTemplate = template.Must(template.New("email").Parse(`<html>
<head>
<meta http-equiv="Content-Type" content="text/html; charset=utf-8">
<title>` + Subject + `</title>
</head>
<body>
<h1>Elastic Cloud Storage (ECS) Received Alert from Virtual Data Center: {{.VDC}}</h1>
<p>ECS Cluster: <a href="{{.Link}}">{{.Endpoint}}</a></p>
<p>Severity: <font color="{{.Color}}">{{.Severity}}</font><br>
Symptom Code: {{.SymptomCode}}<br>
Description: {{.Description}}<br>
Timestamp: {{.Timestamp}}</p>
</body>
</html>
`))

// RenderHTML renders the email body; every field is HTML-escaped
func RenderHTML(m Message) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, m); err != nil {
		return "", fmt.Errorf("failed to render email body: %w", err)
	}
	return buf.String(), nil
}
