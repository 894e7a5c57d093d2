package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-storefront-session/internal/application"
	"github.com/oksasatya/go-storefront-session/internal/domain/entity"
	"github.com/oksasatya/go-storefront-session/internal/domain/policy"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/datastore"
	"github.com/oksasatya/go-storefront-session/internal/infrastructure/localauth"
	"github.com/oksasatya/go-storefront-session/internal/interface/middleware"
	"github.com/oksasatya/go-storefront-session/pkg/helpers"
	"github.com/oksasatya/go-storefront-session/pkg/mailer"
	"github.com/oksasatya/go-storefront-session/pkg/validation"
)

type outbox struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
}

func (o *outbox) PublishJSON(_ context.Context, body any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, body.(mailer.EmailJob))
	return nil
}

// lastToken pulls the token out of the newest verification link sent to email.
func (o *outbox) lastToken(t *testing.T, email string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.jobs) - 1; i >= 0; i-- {
		j := o.jobs[i]
		link, _ := j.Data["VerifyURL"].(string)
		if j.To != email || link == "" {
			continue
		}
		u, err := url.Parse(link)
		if err != nil {
			t.Fatalf("bad link %q", link)
		}
		return u.Query().Get("token")
	}
	t.Fatalf("no verification email for %s", email)
	return ""
}

type testApp struct {
	engine   *gin.Engine
	outbox   *outbox
	store    *datastore.Store
	accounts *localauth.MemoryAccounts
	profiles *datastore.ProfileRepository
	registry *application.DeviceRegistry
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   map[string]any  `json:"error"`
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	box := &outbox{}
	accounts := localauth.NewMemoryAccounts()
	dir := localauth.NewDirectory(accounts, localauth.NewMemoryKV(), box, localauth.Options{
		VerifyURL:     "http://shop.test/verify",
		AttemptLimit:  10,
		AttemptWindow: time.Minute,
		MailEnabled:   true,
	}, nil)
	store := datastore.NewStore(datastore.NewMemory())
	profiles := datastore.NewProfileRepository(store, "users", nil, nil)
	registry := application.NewDeviceRegistry(application.DeviceRegistryConfig{
		Factory:   dir,
		Profiles:  profiles,
		Allowlist: policy.NewAllowlist("markjeresoltam@gmail.com"),
	})
	t.Cleanup(func() { registry.Close(context.Background()) })

	auth := NewAuthHandler(nil, dir, localauth.ErrInvalidToken)
	session := NewSessionHandler(nil, helpers.NewAvatarUploader(nil, ""))
	admin := NewAdminHandler(profiles, nil, nil, nil)
	health := NewHealthHandler(store)

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	api := r.Group("/api")
	api.GET("/health/connectivity", health.Connectivity)
	api.POST("/auth/verify/confirm", auth.VerifyConfirm)

	dev := api.Group("/", middleware.Device(registry, helpers.NewDeviceTokenManager("test", time.Hour), helpers.NewCookie("", false)))
	dev.GET("/session", session.Get)
	dev.POST("/session/foreground", session.Foreground)
	dev.DELETE("/session/verification-event", session.ClearVerificationEvent)
	dev.POST("/auth/signup", auth.Signup)
	dev.POST("/auth/login", auth.Login)
	dev.POST("/auth/logout", auth.Logout)
	dev.POST("/auth/verification/resend", auth.ResendVerification)
	dev.POST("/auth/verification/check", auth.CheckVerification)
	dev.PATCH("/session/profile", middleware.RequireSession(), session.UpdateProfile)
	dev.POST("/session/avatar", middleware.RequireSession(), session.UploadAvatar)
	dev.GET("/admin/profiles", middleware.RequireAdmin(), admin.ListProfiles)

	return &testApp{engine: r, outbox: box, store: store, accounts: accounts, profiles: profiles, registry: registry}
}

// client carries one device cookie across requests.
type client struct {
	app    *testApp
	cookie *http.Cookie
}

func (a *testApp) client() *client { return &client{app: a} }

func (c *client) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.app.engine.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == helpers.DeviceCookie {
			c.cookie = ck
		}
	}
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, env
}

func snapshotOf(t *testing.T, env envelope) application.Snapshot {
	t.Helper()
	var s application.Snapshot
	if err := json.Unmarshal(env.Data, &s); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return s
}

// seedAdmin writes a verified admin account and profile the way cmd/seed does.
func (a *testApp) seedAdmin(t *testing.T, email string) {
	t.Helper()
	ctx := context.Background()
	hash, err := helpers.HashPassword("secret1")
	if err != nil {
		t.Fatal(err)
	}
	acc := &entity.Account{Email: email, PasswordHash: hash, DisplayName: "Boss", EmailVerified: true}
	if err := a.accounts.Create(ctx, acc); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	if err := a.profiles.Create(ctx, &entity.Profile{
		UID:           acc.ID,
		Email:         acc.Email,
		DisplayName:   acc.DisplayName,
		Role:          entity.RoleAdmin,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
		VerifiedAt:    &now,
	}); err != nil {
		t.Fatal(err)
	}
}

func creds(email string) map[string]string {
	return map[string]string{"email": email, "password": "secret1"}
}

func TestNewDeviceStartsSignedOut(t *testing.T) {
	c := newTestApp(t).client()
	code, env := c.do(t, http.MethodGet, "/api/session", nil)
	if code != http.StatusOK || c.cookie == nil {
		t.Fatalf("code = %d cookie = %v", code, c.cookie)
	}
	if s := snapshotOf(t, env); s.Destination != policy.DestinationLogin || s.State != application.StateUnauthenticated {
		t.Fatalf("snapshot = %+v", s)
	}
}

func TestSignupVerifyLoginFlow(t *testing.T) {
	app := newTestApp(t)
	c := app.client()
	email := "ana@shop.test"

	code, env := c.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": email, "password": "secret1", "display_name": "Ana"})
	if code != http.StatusCreated || !env.Success {
		t.Fatalf("signup = %d %+v", code, env)
	}
	_, env = c.do(t, http.MethodGet, "/api/session", nil)
	if s := snapshotOf(t, env); s.Identity != nil {
		t.Fatalf("signup left a session: %+v", s)
	}

	code, env = c.do(t, http.MethodPost, "/api/auth/login", creds(email))
	if code != http.StatusForbidden || env.Error["code"] != "verification-required" {
		t.Fatalf("unverified login = %d %+v", code, env)
	}

	code, _ = c.do(t, http.MethodPost, "/api/auth/verify/confirm", map[string]string{"token": app.outbox.lastToken(t, email)})
	if code != http.StatusOK {
		t.Fatalf("confirm = %d", code)
	}

	code, env = c.do(t, http.MethodPost, "/api/auth/verification/check", creds(email))
	if code != http.StatusOK {
		t.Fatalf("check = %d %+v", code, env)
	}
	_, env = c.do(t, http.MethodGet, "/api/session", nil)
	s := snapshotOf(t, env)
	if s.Identity != nil || s.PendingVerificationEvent == nil || !s.PendingVerificationEvent.Verified {
		t.Fatalf("after check: %+v", s)
	}
	_, env = c.do(t, http.MethodDelete, "/api/session/verification-event", nil)
	if s := snapshotOf(t, env); s.PendingVerificationEvent != nil {
		t.Fatal("event not cleared")
	}

	code, env = c.do(t, http.MethodPost, "/api/auth/login", creds(email))
	if code != http.StatusOK {
		t.Fatalf("verified login = %d %+v", code, env)
	}
	if s := snapshotOf(t, env); s.Destination != policy.DestinationStorefront || s.Identity.DisplayName != "Ana" {
		t.Fatalf("snapshot = %+v", s)
	}

	code, env = c.do(t, http.MethodPatch, "/api/session/profile", map[string]string{"display_name": "Ana B"})
	if code != http.StatusOK {
		t.Fatalf("patch = %d %+v", code, env)
	}

	code, _ = c.do(t, http.MethodGet, "/api/admin/profiles", nil)
	if code != http.StatusForbidden {
		t.Fatalf("customer reached admin: %d", code)
	}

	code, _ = c.do(t, http.MethodPost, "/api/auth/logout", nil)
	if code != http.StatusOK {
		t.Fatalf("logout = %d", code)
	}
	code, _ = c.do(t, http.MethodPatch, "/api/session/profile", map[string]string{"display_name": "x"})
	if code != http.StatusUnauthorized {
		t.Fatalf("signed-out patch = %d", code)
	}
}

func TestDevicesAreIndependent(t *testing.T) {
	app := newTestApp(t)
	a, b := app.client(), app.client()
	email := "markjeresoltam@gmail.com"
	if code, env := a.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": email, "password": "secret1"}); code != http.StatusCreated {
		t.Fatalf("signup = %d %+v", code, env)
	}
	code, env := a.do(t, http.MethodPost, "/api/auth/login", creds(email))
	if code != http.StatusOK || snapshotOf(t, env).Destination != policy.DestinationStorefront {
		t.Fatalf("allowlisted login = %d %+v", code, env)
	}
	_, env = b.do(t, http.MethodGet, "/api/session", nil)
	if s := snapshotOf(t, env); s.Identity != nil {
		t.Fatalf("session leaked to another device: %+v", s)
	}
	if app.registry.Len() != 2 {
		t.Fatalf("devices = %d", app.registry.Len())
	}
}

func TestAdminRoute(t *testing.T) {
	app := newTestApp(t)
	app.seedAdmin(t, "boss@shop.test")
	c := app.client()
	code, env := c.do(t, http.MethodPost, "/api/auth/login", creds("boss@shop.test"))
	if code != http.StatusOK || snapshotOf(t, env).Destination != policy.DestinationAdminHome {
		t.Fatalf("admin login = %d %+v", code, env)
	}
	code, env = c.do(t, http.MethodGet, "/api/admin/profiles?role=admin", nil)
	if code != http.StatusOK {
		t.Fatalf("list = %d %+v", code, env)
	}
	var profiles []map[string]any
	if err := json.Unmarshal(env.Data, &profiles); err != nil || len(profiles) != 1 || profiles[0]["emailVerified"] != true {
		t.Fatalf("profiles = %s", env.Data)
	}
}

func TestSignupCannotChooseAdminRole(t *testing.T) {
	app := newTestApp(t)
	c := app.client()
	email := "sneaky@shop.test"
	code, env := c.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": email, "password": "secret1", "role": "admin"})
	if code != http.StatusBadRequest || env.Success {
		t.Fatalf("admin signup = %d %+v", code, env)
	}
	if _, err := app.accounts.GetByEmail(context.Background(), email); err == nil {
		t.Fatal("rejected signup still created an account")
	}

	code, env = c.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": email, "password": "secret1", "role": "customer"})
	if code != http.StatusCreated {
		t.Fatalf("customer signup = %d %+v", code, env)
	}
	if code, _ := c.do(t, http.MethodPost, "/api/auth/verify/confirm", map[string]string{"token": app.outbox.lastToken(t, email)}); code != http.StatusOK {
		t.Fatalf("confirm = %d", code)
	}
	code, env = c.do(t, http.MethodPost, "/api/auth/login", creds(email))
	if code != http.StatusOK {
		t.Fatalf("login = %d %+v", code, env)
	}
	if s := snapshotOf(t, env); s.Role != entity.RoleCustomer || s.Destination != policy.DestinationStorefront {
		t.Fatalf("snapshot = %+v", s)
	}
	if code, _ := c.do(t, http.MethodGet, "/api/admin/profiles", nil); code != http.StatusForbidden {
		t.Fatalf("customer reached admin: %d", code)
	}
}

func TestRequestErrors(t *testing.T) {
	app := newTestApp(t)
	c := app.client()
	tests := []struct {
		name string
		path string
		body any
		want int
		code string
	}{
		{"bad signup payload", "/api/auth/signup", map[string]string{"email": "nope", "password": "1"}, http.StatusBadRequest, ""},
		{"unknown account", "/api/auth/login", creds("ghost@shop.test"), http.StatusUnauthorized, "unknown-account"},
		{"bad token", "/api/auth/verify/confirm", map[string]string{"token": "nope"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := c.do(t, http.MethodPost, tt.path, tt.body)
			if code != tt.want || env.Success {
				t.Fatalf("code = %d env = %+v", code, env)
			}
			if tt.code != "" && env.Error["code"] != tt.code {
				t.Fatalf("error code = %v, want %s", env.Error["code"], tt.code)
			}
		})
	}
	if code, _ := c.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "dup@shop.test", "password": "secret1"}); code != http.StatusCreated {
		t.Fatalf("signup = %d", code)
	}
	code, env := c.do(t, http.MethodPost, "/api/auth/signup", map[string]string{"email": "dup@shop.test", "password": "secret1"})
	if code != http.StatusConflict || env.Error["code"] != "email-already-in-use" {
		t.Fatalf("duplicate = %d %+v", code, env)
	}
}

func TestConnectivity(t *testing.T) {
	c := newTestApp(t).client()
	code, env := c.do(t, http.MethodGet, "/api/health/connectivity?probe=true", nil)
	if code != http.StatusOK || env.Message != "online" {
		t.Fatalf("connectivity = %d %+v", code, env)
	}
}
