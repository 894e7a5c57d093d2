package mailer

import (
	"context"
	"errors"
	"testing"

	mailtpl "github.com/oksasatya/go-storefront-session/pkg/mailer/templates"
)

type sent struct{ to, subject, text, html string }

type fakeSender struct {
	err  error
	sent []sent
}

func (f *fakeSender) Send(_ context.Context, to, subject, text, html string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{to, subject, text, html})
	return nil
}

func TestDeliverRendersTemplate(t *testing.T) {
	s := &fakeSender{}
	job := &EmailJob{
		To:       "ana@shop.test",
		Template: mailtpl.VerifyEmail,
		Data:     mailtpl.NewVerifyEmailData(mailtpl.Brand{CompanyName: "Shop"}, "Ana", "ana@shop.test", "http://shop.test/verify?token=t"),
	}
	retry, err := Deliver(context.Background(), s, job)
	if err != nil || retry {
		t.Fatalf("retry = %v err = %v", retry, err)
	}
	if len(s.sent) != 1 || s.sent[0].to != "ana@shop.test" || s.sent[0].subject == "" || s.sent[0].html == "" {
		t.Fatalf("sent = %+v", s.sent)
	}
}

func TestDeliverFailures(t *testing.T) {
	retry, err := Deliver(context.Background(), &fakeSender{}, &EmailJob{Subject: "hi", Text: "x"})
	if !errors.Is(err, ErrEmptyJob) || retry {
		t.Fatalf("no recipient: retry = %v err = %v", retry, err)
	}

	down := errors.New("mailgun down")
	retry, err = Deliver(context.Background(), &fakeSender{err: down}, &EmailJob{To: "a@b.c", Subject: "hi", Text: "x"})
	if !errors.Is(err, down) || !retry {
		t.Fatalf("send failure: retry = %v err = %v", retry, err)
	}
}
