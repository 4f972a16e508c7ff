package policy

import (
	"context"
	"errors"
	"os"

	"github.com/open-policy-agent/opa/rego"

	"vaultd/internal/domain"
)

const allowQuery = "data.vaultd.authz.allow"

// DefaultPolicy is the built-in role model: admins triage requests, manage
// the dataset catalog and see the admin dashboard, regular users request and
// consume data.
const DefaultPolicy = `package vaultd.authz

import rego.v1

default allow := false

admin_actions := {"request:process", "data:upload", "data:modify", "data:delete", "admin:dashboard"}

user_actions := {"request:create", "data:view", "data:download"}

allow if {
	input.role == "admin"
	admin_actions[input.action]
}

allow if {
	input.role == "user"
	user_actions[input.action]
}
`

type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the embedded default policy.
func NewEngine(ctx context.Context) (*Engine, error) {
	return newEngineFromSource(ctx, "authz.rego", DefaultPolicy)
}

// NewEngineFromPath compiles an operator-supplied policy file, replacing the
// default bundle wholesale.
func NewEngineFromPath(ctx context.Context, path string) (*Engine, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return newEngineFromSource(ctx, path, string(source))
}

func newEngineFromSource(ctx context.Context, filename, source string) (*Engine, error) {
	prepared, err := rego.New(
		rego.Query(allowQuery),
		rego.Module(filename, source),
		rego.StrictBuiltinErrors(true),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared}, nil
}

func (e *Engine) Allow(ctx context.Context, input domain.PolicyInput) (bool, error) {
	if e == nil {
		return false, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	allowed, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, errors.New("policy result is not boolean")
	}
	return allowed, nil
}
