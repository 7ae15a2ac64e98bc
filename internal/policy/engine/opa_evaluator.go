package engine

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog/log"

	identitydomain "ridehail-identity/internal/identity/domain"
	otpdomain "ridehail-identity/internal/otp/domain"
)

const (
	allowLoginQuery   = "data.ridehail.login.allow_login"
	allowChannelQuery = "data.ridehail.login.allow_channel"
)

// DefaultRegoPolicy admits active accounts, gives both apps sms and call, and reserves push for drivers.
const DefaultRegoPolicy = `package ridehail.login

default allow_login := false

allow_login if {
	input.account.status == "active"
}

default allow_channel := false

allow_channel if {
	input.channel in {"sms", "call"}
}

allow_channel if {
	input.app == "driver"
	input.channel == "push"
}
`

// LoadPolicy returns the Rego source at path, or DefaultRegoPolicy when path is empty.
func LoadPolicy(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegoPolicy, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read login policy: %w", err)
	}
	return string(b), nil
}

// OPAEvaluator evaluates the login policy with an in-process OPA engine.
// The policy is compiled once; queries are prepared at construction.
type OPAEvaluator struct {
	login   rego.PreparedEvalQuery
	channel rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy and prepares both queries. A policy that does not compile is an error.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	compiler, err := ast.CompileModules(map[string]string{"login.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile login policy: %w", err)
	}
	login, err := rego.New(rego.Query(allowLoginQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", allowLoginQuery, err)
	}
	channel, err := rego.New(rego.Query(allowChannelQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", allowChannelQuery, err)
	}
	return &OPAEvaluator{login: login, channel: channel}, nil
}

// HealthCheck evaluates both queries against a minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	probe := &identitydomain.Identity{Status: identitydomain.StatusActive, Role: identitydomain.RolePassenger}
	if _, _, err := e.eval(ctx, e.login, loginInput(probe, identitydomain.AppPassenger)); err != nil {
		return fmt.Errorf("eval login policy: %w", err)
	}
	if _, _, err := e.eval(ctx, e.channel, channelInput(identitydomain.AppPassenger, otpdomain.ChannelSMS)); err != nil {
		return fmt.Errorf("eval channel policy: %w", err)
	}
	return nil
}

// AllowLogin evaluates allow_login. Evaluation failures fall back to admitting active accounts only.
func (e *OPAEvaluator) AllowLogin(ctx context.Context, acct *identitydomain.Identity, app identitydomain.App) (bool, error) {
	if acct == nil {
		return false, nil
	}
	allowed, defined, err := e.eval(ctx, e.login, loginInput(acct, app))
	if err != nil || !defined {
		if err != nil {
			log.Warn().Err(err).Msg("policy: login evaluation failed, using defaults")
		}
		return defaultAllowLogin(acct), nil
	}
	return allowed, nil
}

// AllowChannel evaluates allow_channel. Evaluation failures fall back to the built-in channel table.
func (e *OPAEvaluator) AllowChannel(ctx context.Context, app identitydomain.App, channel otpdomain.Channel) (bool, error) {
	allowed, defined, err := e.eval(ctx, e.channel, channelInput(app, channel))
	if err != nil || !defined {
		if err != nil {
			log.Warn().Err(err).Msg("policy: channel evaluation failed, using defaults")
		}
		return defaultAllowChannel(app, channel), nil
	}
	return allowed, nil
}

// eval runs q and reports the boolean result and whether the rule was defined at all.
func (e *OPAEvaluator) eval(ctx context.Context, q rego.PreparedEvalQuery, input map[string]interface{}) (bool, bool, error) {
	rs, err := q.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, false, nil
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, false, fmt.Errorf("policy returned %T, want bool", rs[0].Expressions[0].Value)
	}
	return v, true, nil
}

func loginInput(acct *identitydomain.Identity, app identitydomain.App) map[string]interface{} {
	return map[string]interface{}{
		"app": string(app),
		"account": map[string]interface{}{
			"id":             acct.ID,
			"status":         string(acct.Status),
			"role":           string(acct.Role),
			"phone_verified": acct.PhoneVerified,
			"has_email":      acct.Email != "",
			"linked":         len(acct.Links),
		},
	}
}

func channelInput(app identitydomain.App, channel otpdomain.Channel) map[string]interface{} {
	return map[string]interface{}{
		"app":     string(app),
		"channel": string(channel),
	}
}
