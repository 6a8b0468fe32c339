package mail

import (
	"bytes"
	"html/template"
)

// Subjects for the two email kinds the planner sends.
const (
	SubjectVerify   = "Verify subscription to Task Planner"
	SubjectReminder = "Task Planner - Pending Tasks Reminder"
)

const verifyTpl = `<p>Click the link below to verify your subscription to Task Planner:</p>
<p><a id="verification-link" href="{{.VerifyURL}}">Verify Subscription</a></p>`

const reminderTpl = `<h2>Pending Tasks Reminder</h2>
<p>Here are the current pending tasks:</p>
<ul>
{{- range .TaskNames}}
	<li>{{.}}</li>
{{- end}}
</ul>
<p><a id="unsubscribe-link" href="{{.UnsubscribeURL}}">Unsubscribe from notifications</a></p>`

// VerifyData is the data for subscription verification emails.
type VerifyData struct {
	VerifyURL string
}

// ReminderData is the data for pending-task reminder emails. Task names are
// HTML-escaped by the template.
type ReminderData struct {
	TaskNames      []string
	UnsubscribeURL string
}

var (
	verifyTemplate   = template.Must(template.New("verify").Parse(verifyTpl))
	reminderTemplate = template.Must(template.New("reminder").Parse(reminderTpl))
)

// RenderVerify renders the verification email body.
func RenderVerify(data VerifyData) (string, error) {
	return render(verifyTemplate, data)
}

// RenderReminder renders the reminder email body.
func RenderReminder(data ReminderData) (string, error) {
	return render(reminderTemplate, data)
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
