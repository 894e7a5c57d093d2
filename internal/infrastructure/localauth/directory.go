// Package localauth is a self-hosted identity provider: bcrypt credentials in
// Postgres, verification tokens and attempt counters in Redis, and emails
// queued on RabbitMQ for the email worker.
package localauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/internal/domain/identity"
	repo "github.com/oksasatya/go-storefront-session/internal/domain/repository"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/datastore"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
	"github.com/oksasatya/go-storefront-session/pkg/mailer"
	mailtpl "github.com/oksasatya/go-storefront-session/pkg/mailer/templates"
)

var ErrInvalidToken = errors.New("verification link is invalid or expired")

const minPasswordLen = 6

// Enqueuer publishes email jobs; *helpers.RabbitPublisher satisfies it.
type Enqueuer interface {
	PublishJSON(ctx context.Context, body any) error
}

type Options struct {
	// VerifyURL is the link target; the token is added as ?token=.
	VerifyURL     string
	TokenTTL      time.Duration
	AttemptLimit  int
	AttemptWindow time.Duration
	SendInterval  time.Duration
	Brand         mailtpl.Brand
	MailEnabled   bool
}

// Directory is the shared account store behind every device session.
type Directory struct {
	accounts repo.AccountRepository
	kv       KeyValue
	queue    Enqueuer
	opts     Options
	validate *validator.Validate
	logger   *logrus.Logger
	now      func() time.Time
}

func NewDirectory(accounts repo.AccountRepository, kv KeyValue, queue Enqueuer, opts Options, logger *logrus.Logger) *Directory {
	if logger == nil {
		logger = helpers.NewDiscardLogger()
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	return &Directory{
		accounts: accounts,
		kv:       kv,
		queue:    queue,
		opts:     opts,
		validate: validator.New(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewSession opens a provider for one device.
func (d *Directory) NewSession() identity.Provider {
	return &Session{dir: d, hub: identity.NewHub()}
}

func (d *Directory) authenticate(ctx context.Context, email, password string) (*entity.Account, error) {
	email = entity.NormalizeEmail(email)
	if err := d.validate.Var(email, "required,email"); err != nil {
		return nil, identity.NewError(identity.CodeInvalidEmail, err)
	}
	if d.opts.AttemptLimit > 0 {
		n, err := d.kv.Hit(ctx, keyAttempts(email), d.opts.AttemptWindow)
		if err != nil {
			d.logger.WithError(err).Warn("attempt counter unavailable")
		} else if n > int64(d.opts.AttemptLimit) {
			return nil, identity.NewError(identity.CodeTooManyRequests, nil)
		}
	}
	acc, err := d.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, accountError(err)
	}
	if !helpers.CompareHashAndPassword(acc.PasswordHash, password) {
		return nil, identity.NewError(identity.CodeWrongCredentials, nil)
	}
	if helpers.NeedsRehash(acc.PasswordHash) {
		d.upgradeHash(ctx, acc, password)
	}
	if d.opts.AttemptLimit > 0 {
		if err := d.kv.Reset(ctx, keyAttempts(email)); err != nil {
			d.logger.WithError(err).Warn("attempt counter reset failed")
		}
	}
	return acc, nil
}

// upgradeHash rewrites a hash made with an older bcrypt cost. Failure keeps
// the old hash, which still verifies.
func (d *Directory) upgradeHash(ctx context.Context, acc *entity.Account, password string) {
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return
	}
	next := *acc
	next.PasswordHash = hash
	if err := d.accounts.Update(ctx, &next); err != nil {
		d.logger.WithError(err).WithField("uid", acc.ID).Warn("password hash upgrade failed")
		return
	}
	*acc = next
}

func (d *Directory) create(ctx context.Context, email, password string) (*entity.Account, error) {
	email = entity.NormalizeEmail(email)
	if err := d.validate.Var(email, "required,email"); err != nil {
		return nil, identity.NewError(identity.CodeInvalidEmail, err)
	}
	if len(password) < minPasswordLen {
		return nil, identity.NewError(identity.CodeWeakPassword, nil)
	}
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return nil, err
	}
	acc := &entity.Account{Email: email, PasswordHash: hash}
	if err := d.accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, repo.ErrAccountExists) {
			return nil, identity.NewError(identity.CodeEmailInUse, err)
		}
		return nil, accountError(err)
	}
	return acc, nil
}

func (d *Directory) sendVerification(ctx context.Context, id *entity.Identity) error {
	if d.opts.SendInterval > 0 {
		ok, err := d.kv.Acquire(ctx, keySendThrottle(id.UID), d.opts.SendInterval)
		if err != nil {
			return identity.NewError(identity.CodeNetwork, err)
		}
		if !ok {
			return identity.NewError(identity.CodeTooManyRequests, nil)
		}
	}
	token := uuid.NewString()
	if err := d.kv.Put(ctx, keyVerifyToken(token), id.UID, d.opts.TokenTTL); err != nil {
		return identity.NewError(identity.CodeNetwork, err)
	}
	link := verifyLink(d.opts.VerifyURL, token)
	data := mailtpl.NewVerifyEmailData(d.opts.Brand, id.DisplayName, id.Email, link,
		mailtpl.WithExpiresAt(d.now().Add(d.opts.TokenTTL)))
	return d.enqueue(ctx, mailer.EmailJob{To: id.Email, Template: mailtpl.VerifyEmail, Data: data}, link)
}

// ConfirmVerification redeems a token from a verification link. A token works
// once.
func (d *Directory) ConfirmVerification(ctx context.Context, token string) (*entity.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	uid, err := d.kv.Take(ctx, keyVerifyToken(token))
	if err != nil {
		return nil, identity.NewError(identity.CodeNetwork, err)
	}
	if uid == "" {
		return nil, ErrInvalidToken
	}
	if err := d.accounts.SetVerified(ctx, uid); err != nil {
		return nil, accountError(err)
	}
	acc, err := d.accounts.GetByID(ctx, uid)
	if err != nil {
		return nil, accountError(err)
	}
	data := mailtpl.NewEmailVerifiedData(d.opts.Brand, acc.DisplayName, acc.Email, mailtpl.WithTime(d.now()))
	if err := d.enqueue(ctx, mailer.EmailJob{To: acc.Email, Template: mailtpl.EmailVerified, Data: data}, ""); err != nil {
		d.logger.WithError(err).WithField("uid", uid).Warn("verified notice not queued")
	}
	d.logger.WithField("uid", uid).Info("email verified")
	return acc.Identity(), nil
}

func (d *Directory) enqueue(ctx context.Context, job mailer.EmailJob, link string) error {
	if !d.opts.MailEnabled || d.queue == nil {
		// no worker: surface the link for local use
		d.logger.WithFields(logrus.Fields{"to": job.To, "template": job.Template, "link": link}).Info("email sending disabled")
		return nil
	}
	if err := d.queue.PublishJSON(ctx, job); err != nil {
		return identity.NewError(identity.CodeNetwork, err)
	}
	return nil
}

func (d *Directory) account(ctx context.Context, uid string) (*entity.Account, error) {
	acc, err := d.accounts.GetByID(ctx, uid)
	if err != nil {
		return nil, accountError(err)
	}
	return acc, nil
}

func (d *Directory) rename(ctx context.Context, uid, name string) error {
	acc, err := d.account(ctx, uid)
	if err != nil {
		return err
	}
	acc.DisplayName = name
	if err := d.accounts.Update(ctx, acc); err != nil {
		return accountError(err)
	}
	return nil
}

func verifyLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return fmt.Sprintf("%s?token=%s", base, url.QueryEscape(token))
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func accountError(err error) error {
	switch {
	case errors.Is(err, repo.ErrAccountNotFound):
		return identity.NewError(identity.CodeUnknownAccount, err)
	case datastore.IsTransient(err):
		return identity.NewError(identity.CodeNetwork, err)
	}
	return err
}
