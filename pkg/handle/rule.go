package handle

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/recera/vango-flow/pkg/flow"
)

// Rule is a compiled connection rule. The expression sees the variables
// source, sourceHandle, target, targetHandle, sourceType and targetType
// (node types) and must evaluate to a bool, for example
//
//	source != target && targetType != "input"
type Rule struct {
	expr    string
	program cel.Program
}

// CompileRule parses and type-checks expr.
func CompileRule(expr string) (*Rule, error) {
	env, err := cel.NewEnv(
		cel.Variable("source", cel.StringType),
		cel.Variable("sourceHandle", cel.StringType),
		cel.Variable("target", cel.StringType),
		cel.Variable("targetHandle", cel.StringType),
		cel.Variable("sourceType", cel.StringType),
		cel.Variable("targetType", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("connection rule env: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("connection rule %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("connection rule %q: result is %s, want bool", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("connection rule %q: %w", expr, err)
	}
	return &Rule{expr: expr, program: prg}, nil
}

// String returns the rule's source expression.
func (r *Rule) String() string { return r.expr }

// Eval evaluates the rule for c. nodes resolves the node types and may be
// nil.
func (r *Rule) Eval(c flow.Connection, nodes *flow.NodeLookup) (bool, error) {
	vars := map[string]any{
		"source":       c.Source,
		"sourceHandle": c.SourceHandle,
		"target":       c.Target,
		"targetHandle": c.TargetHandle,
		"sourceType":   nodeType(nodes, c.Source),
		"targetType":   nodeType(nodes, c.Target),
	}
	out, _, err := r.program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("connection rule %q: %w", r.expr, err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("connection rule %q: non-bool result %v", r.expr, out)
	}
	return allowed, nil
}

// Validator adapts the rule to a Validator. Evaluation errors reject the
// connection and are passed to onError when it is set.
func (r *Rule) Validator(nodes func() *flow.NodeLookup, onError func(error)) Validator {
	return func(c flow.Connection) bool {
		var l *flow.NodeLookup
		if nodes != nil {
			l = nodes()
		}
		ok, err := r.Eval(c, l)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return false
		}
		return ok
	}
}

func nodeType(nodes *flow.NodeLookup, id string) string {
	if nodes == nil {
		return ""
	}
	if n, ok := nodes.Get(id); ok {
		return n.Type
	}
	return ""
}
