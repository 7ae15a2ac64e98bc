package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	identitydomain "ridehail-identity/internal/identity/domain"
	otpdomain "ridehail-identity/internal/otp/domain"
)

func newDefault(t *testing.T) *OPAEvaluator {
	t.Helper()
	e, err := NewOPAEvaluator(context.Background(), DefaultRegoPolicy)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	return e
}

func TestOPAEvaluator_HealthCheck(t *testing.T) {
	if err := newDefault(t).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestOPAEvaluator_AllowLogin_Default(t *testing.T) {
	e := newDefault(t)
	ctx := context.Background()
	cases := []struct {
		status identitydomain.Status
		want   bool
	}{
		{identitydomain.StatusActive, true},
		{identitydomain.StatusBlocked, false},
		{identitydomain.StatusPendingDelete, false},
	}
	for _, tc := range cases {
		for _, app := range []identitydomain.App{identitydomain.AppPassenger, identitydomain.AppDriver} {
			acct := &identitydomain.Identity{ID: "a", Status: tc.status, Role: identitydomain.RolePassenger}
			got, err := e.AllowLogin(ctx, acct, app)
			if err != nil {
				t.Fatalf("AllowLogin: %v", err)
			}
			if got != tc.want {
				t.Errorf("AllowLogin(%s, %s) = %v, want %v", tc.status, app, got, tc.want)
			}
		}
	}
	if got, _ := e.AllowLogin(ctx, nil, identitydomain.AppPassenger); got {
		t.Error("AllowLogin(nil) should be false")
	}
}

func TestOPAEvaluator_AllowChannel_Default(t *testing.T) {
	e := newDefault(t)
	ctx := context.Background()
	cases := []struct {
		app     identitydomain.App
		channel otpdomain.Channel
		want    bool
	}{
		{identitydomain.AppPassenger, otpdomain.ChannelSMS, true},
		{identitydomain.AppPassenger, otpdomain.ChannelCall, true},
		{identitydomain.AppPassenger, otpdomain.ChannelPush, false},
		{identitydomain.AppDriver, otpdomain.ChannelSMS, true},
		{identitydomain.AppDriver, otpdomain.ChannelCall, true},
		{identitydomain.AppDriver, otpdomain.ChannelPush, true},
		{identitydomain.AppDriver, otpdomain.Channel("fax"), false},
	}
	for _, tc := range cases {
		got, err := e.AllowChannel(ctx, tc.app, tc.channel)
		if err != nil {
			t.Fatalf("AllowChannel: %v", err)
		}
		if got != tc.want {
			t.Errorf("AllowChannel(%s, %s) = %v, want %v", tc.app, tc.channel, got, tc.want)
		}
	}
}

func TestOPAEvaluator_CustomPolicy(t *testing.T) {
	// Drivers must have a verified phone; only sms is offered.
	const custom = `package ridehail.login

default allow_login := false

allow_login if {
	input.account.status == "active"
	input.app == "passenger"
}

allow_login if {
	input.account.status == "active"
	input.app == "driver"
	input.account.phone_verified
}

default allow_channel := false

allow_channel if input.channel == "sms"
`
	path := filepath.Join(t.TempDir(), "login.rego")
	if err := os.WriteFile(path, []byte(custom), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	e, err := NewOPAEvaluator(context.Background(), src)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	ctx := context.Background()

	unverified := &identitydomain.Identity{ID: "a", Status: identitydomain.StatusActive}
	if ok, _ := e.AllowLogin(ctx, unverified, identitydomain.AppDriver); ok {
		t.Error("driver login without verified phone should be denied")
	}
	if ok, _ := e.AllowLogin(ctx, unverified, identitydomain.AppPassenger); !ok {
		t.Error("passenger login should be allowed")
	}
	if ok, _ := e.AllowChannel(ctx, identitydomain.AppPassenger, otpdomain.ChannelCall); ok {
		t.Error("call should be denied by custom policy")
	}
}

func TestOPAEvaluator_UndefinedRuleFallsBack(t *testing.T) {
	const loginOnly = `package ridehail.login

allow_login if input.account.status == "active"
`
	e, err := NewOPAEvaluator(context.Background(), loginOnly)
	if err != nil {
		t.Fatalf("NewOPAEvaluator: %v", err)
	}
	ctx := context.Background()
	if ok, _ := e.AllowChannel(ctx, identitydomain.AppDriver, otpdomain.ChannelPush); !ok {
		t.Error("undefined allow_channel should fall back to built-in table")
	}
	blocked := &identitydomain.Identity{Status: identitydomain.StatusBlocked}
	if ok, _ := e.AllowLogin(ctx, blocked, identitydomain.AppPassenger); ok {
		t.Error("blocked account must not be admitted by fallback")
	}
}

func TestNewOPAEvaluator_InvalidPolicy(t *testing.T) {
	if _, err := NewOPAEvaluator(context.Background(), "package ridehail.login\n\nallow_login if {"); err == nil {
		t.Fatal("want compile error")
	}
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.rego")); err == nil {
		t.Fatal("want read error for missing file")
	}
	src, err := LoadPolicy("")
	if err != nil || src != DefaultRegoPolicy {
		t.Errorf("LoadPolicy(\"\") = %q, %v", src, err)
	}
}
