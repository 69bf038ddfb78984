// Package policy evaluates the configurable upload policy. Deployments
// can restrict which module triples and versions may be published with
// a CEL expression, e.g. `namespace == "acme"` or
// `!version.contains("-")` to forbid pre-releases.
package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// UploadPolicy decides whether an upload is allowed
type UploadPolicy struct {
	prg cel.Program
}

// NewUploadPolicy compiles the policy expression. An empty expression
// yields a policy that allows everything.
func NewUploadPolicy(expr string) (*UploadPolicy, error) {
	if expr == "" {
		return &UploadPolicy{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("namespace", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("provider", cel.StringType),
		cel.Variable("version", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile upload policy: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("upload policy must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload policy program: %w", err)
	}

	return &UploadPolicy{prg: prg}, nil
}

// Allow evaluates the policy for an upload
func (p *UploadPolicy) Allow(namespace, name, provider, version string) (bool, error) {
	if p.prg == nil {
		return true, nil
	}

	out, _, err := p.prg.Eval(map[string]interface{}{
		"namespace": namespace,
		"name":      name,
		"provider":  provider,
		"version":   version,
	})
	if err != nil {
		return false, fmt.Errorf("upload policy evaluation error: %w", err)
	}

	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("upload policy did not return boolean, got %T", out.Value())
	}

	return allowed, nil
}
