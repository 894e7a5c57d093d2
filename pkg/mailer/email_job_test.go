package mailer

import (
	"errors"
	"strings"
	"testing"

	mailtpl "github.com/oksasatya/go-storefront-session/pkg/mailer/templates"
)

func TestRenderTemplateJob(t *testing.T) {
	job := EmailJob{
		To:       "ana@x.com",
		Template: mailtpl.VerifyEmail,
		Data:     map[string]any{"Name": "Ana", "VerifyURL": "https://x/verify?token=t1"},
	}
	subject, text, _, err := job.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject == "" || !strings.Contains(text, "https://x/verify?token=t1") {
		t.Fatalf("subject %q text %q", subject, text)
	}
	if job.Data["RecipientEmail"] != "ana@x.com" {
		t.Fatalf("recipient not filled: %v", job.Data)
	}
}

func TestRenderRawJob(t *testing.T) {
	job := EmailJob{To: "a@x.com", Subject: "Hi", Text: "hello"}
	subject, text, html, err := job.Render()
	if err != nil || subject != "Hi" || text != "hello" || html != "" {
		t.Fatalf("got %q %q %q %v", subject, text, html, err)
	}
}

func TestRenderRejectsEmptyJob(t *testing.T) {
	for _, job := range []EmailJob{{}, {To: "a@x.com"}, {To: "a@x.com", Subject: "only subject"}} {
		if _, _, _, err := job.Render(); !errors.Is(err, ErrEmptyJob) {
			t.Errorf("job %+v: err = %v", job, err)
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	job := EmailJob{To: "a@x.com", Template: "nope"}
	if _, _, _, err := job.Render(); err == nil {
		t.Fatal("expected error for unknown template")
	}
}
