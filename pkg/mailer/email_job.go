package mailer

import (
	"errors"
	"fmt"

	mailtpl "github.com/oksasatya/go-storefront-session/pkg/mailer/templates"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Html is optional; Text is recommended as fallback.
// You can also use a template by specifying Template and Data.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // "verify_email" or "email_verified"
	Data     map[string]any `json:"data,omitempty"`
}

var ErrEmptyJob = errors.New("email job has no recipient or content")

// EnsureRecipientAndEmail fills Email and RecipientEmail from To when the
// producer left them out.
func (j *EmailJob) EnsureRecipientAndEmail() {
	if j.Data == nil {
		j.Data = map[string]any{}
	}
	if v, ok := j.Data["Email"]; !ok || fmt.Sprintf("%v", v) == "" {
		j.Data["Email"] = j.To
	}
	if v, ok := j.Data["RecipientEmail"]; !ok || fmt.Sprintf("%v", v) == "" {
		j.Data["RecipientEmail"] = j.To
	}
}

// Render resolves the job into subject, text and html bodies.
func (j *EmailJob) Render() (subject, text, html string, err error) {
	if j.To == "" {
		return "", "", "", ErrEmptyJob
	}
	if j.Template == "" {
		if j.Subject == "" || (j.Text == "" && j.HTML == "") {
			return "", "", "", ErrEmptyJob
		}
		return j.Subject, j.Text, j.HTML, nil
	}
	j.EnsureRecipientAndEmail()
	subject, text, html, err = mailtpl.Render(j.Template, j.Data)
	if err != nil {
		return "", "", "", fmt.Errorf("render %s: %w", j.Template, err)
	}
	if j.Subject != "" {
		subject = j.Subject
	}
	return subject, text, html, nil
}
