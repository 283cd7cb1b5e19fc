// Package engine evaluates the challenge threshold with an OPA Rego policy.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/shopspring/decimal"

	"payshield/backend/internal/policy"
)

const decisionQuery = "data.payshield.threshold.decision"

// Default Rego policy: strictly-greater-than against the merchant threshold or the global default.
const defaultRegoPolicy = `package payshield.threshold

threshold = input.thresholds[input.merchant_id]

threshold = input.default_threshold if {
	not input.thresholds[input.merchant_id]
}

default requires_challenge = false

requires_challenge if {
	input.amount > threshold
}

decision := {
	"requires_challenge": requires_challenge,
	"threshold": threshold,
}
`

// OPAEvaluator evaluates the threshold policy using OPA Rego. Any evaluation failure falls back to
// the plain table lookup, so a broken policy never blocks authorization.
type OPAEvaluator struct {
	table    *policy.Table
	prepared rego.PreparedEvalQuery
}

var _ policy.Evaluator = (*OPAEvaluator)(nil)

// NewOPAEvaluator compiles module (or the built-in policy when module is empty) and returns an evaluator
// backed by table.
func NewOPAEvaluator(ctx context.Context, table *policy.Table, module string) (*OPAEvaluator, error) {
	if module == "" {
		module = defaultRegoPolicy
	}
	pq, err := prepare(ctx, module)
	if err != nil {
		return nil, err
	}
	return &OPAEvaluator{table: table, prepared: pq}, nil
}

// NewOPAEvaluatorFromFile is NewOPAEvaluator with the module read from path. An empty path uses the built-in policy.
func NewOPAEvaluatorFromFile(ctx context.Context, table *policy.Table, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, table, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewOPAEvaluator(ctx, table, string(b))
}

func prepare(ctx context.Context, module string) (rego.PreparedEvalQuery, error) {
	compiler, err := ast.CompileModules(map[string]string{"threshold.rego": module})
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("compile threshold policy: %w", err)
	}
	pq, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return rego.PreparedEvalQuery{}, fmt.Errorf("prepare threshold policy: %w", err)
	}
	return pq, nil
}

// HealthCheck verifies that the prepared policy evaluates against a minimal input. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.eval(ctx, "health-check", decimal.Zero)
	return err
}

// Evaluate implements policy.Evaluator.
func (e *OPAEvaluator) Evaluate(ctx context.Context, merchantID string, amount decimal.Decimal) policy.Decision {
	dec, err := e.eval(ctx, merchantID, amount)
	if err != nil {
		log.Printf("policy: evaluation failed for merchant %s: %v, using table", merchantID, err)
		return e.table.Evaluate(ctx, merchantID, amount)
	}
	return dec
}

func (e *OPAEvaluator) buildInput(merchantID string, amount decimal.Decimal) map[string]interface{} {
	thresholds := make(map[string]interface{})
	for k, v := range e.table.Merchants() {
		thresholds[k] = json.Number(v.String())
	}
	return map[string]interface{}{
		"merchant_id":       merchantID,
		"amount":            json.Number(amount.String()),
		"thresholds":        thresholds,
		"default_threshold": json.Number(e.table.Default().String()),
	}
}

func (e *OPAEvaluator) eval(ctx context.Context, merchantID string, amount decimal.Decimal) (policy.Decision, error) {
	rs, err := e.prepared.Eval(ctx, rego.EvalInput(e.buildInput(merchantID, amount)))
	if err != nil {
		return policy.Decision{}, fmt.Errorf("eval threshold policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return policy.Decision{}, fmt.Errorf("policy query returned no result")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return policy.Decision{}, fmt.Errorf("policy decision has type %T, want object", rs[0].Expressions[0].Value)
	}
	required, ok := obj["requires_challenge"].(bool)
	if !ok {
		return policy.Decision{}, fmt.Errorf("policy decision missing requires_challenge")
	}
	th, err := toDecimal(obj["threshold"])
	if err != nil {
		return policy.Decision{}, err
	}
	return policy.Decision{RequiresChallenge: required, Threshold: th}, nil
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch n := v.(type) {
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		return decimal.NewFromString(n)
	default:
		return decimal.Decimal{}, fmt.Errorf("policy threshold has type %T", v)
	}
}
