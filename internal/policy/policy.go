// Package policy guards captures with business rules written in a small
// expression DSL (govaluate). Rules see the payment as parameters: amount,
// currency, gateway, clientIp, description, hasCard, hasCardReference.
package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Knetic/govaluate"

	"github.com/yourorg/capture-bridge/internal/details"
)

// ErrDenied is returned by Check when a matching rule denies the capture.
var ErrDenied = errors.New("policy: capture denied")

// PolicyDecision represents the outcome of a policy evaluation.
type PolicyDecision struct {
	Deny           bool   `mapstructure:"deny" yaml:"deny"`
	Reason         string `mapstructure:"reason" yaml:"reason,omitempty"`
	EscalateManual bool   `mapstructure:"escalate_manual" yaml:"escalate_manual,omitempty"` // Payment needs manual review
}

// PolicyRule is one DSL rule. The first matching rule by ascending Priority
// decides; rules with equal priority keep their configured order.
type PolicyRule struct {
	ID         string         `mapstructure:"id" yaml:"id"`
	Expression string         `mapstructure:"expression" yaml:"expression"`
	Priority   int            `mapstructure:"priority" yaml:"priority"`
	Decision   PolicyDecision `mapstructure:"decision" yaml:"decision"`
}

type compiledRule struct {
	PolicyRule
	expr *govaluate.EvaluableExpression
}

// PaymentPolicyEnforcer evaluates capture policies.
type PaymentPolicyEnforcer struct {
	rules []compiledRule
}

// NewPaymentPolicyEnforcer compiles rules. Any rule that fails to compile
// makes the whole set invalid.
func NewPaymentPolicyEnforcer(rules []PolicyRule) (*PaymentPolicyEnforcer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if r.Expression == "" {
			return nil, fmt.Errorf("policy rule ID '%s' has an empty expression", r.ID)
		}
		expr, err := govaluate.NewEvaluableExpression(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule ID '%s': %w", r.ID, err)
		}
		compiled = append(compiled, compiledRule{PolicyRule: r, expr: expr})
	}
	sort.SliceStable(compiled, func(i, j int) bool { return compiled[i].Priority < compiled[j].Priority })
	return &PaymentPolicyEnforcer{rules: compiled}, nil
}

// Evaluate returns the decision of the first matching rule, or an allowing
// decision when none matches.
func (ppe *PaymentPolicyEnforcer) Evaluate(_ context.Context, params map[string]interface{}) (PolicyDecision, error) {
	for _, r := range ppe.rules {
		result, err := r.expr.Evaluate(params)
		if err != nil {
			return PolicyDecision{}, fmt.Errorf("policy: evaluating rule ID '%s': %w", r.ID, err)
		}
		matched, ok := result.(bool)
		if !ok {
			return PolicyDecision{}, fmt.Errorf("policy: rule ID '%s' did not evaluate to a boolean (got %T)", r.ID, result)
		}
		if matched {
			d := r.Decision
			if d.Reason == "" {
				d.Reason = r.ID
			}
			return d, nil
		}
	}
	return PolicyDecision{}, nil
}

// Check evaluates the rules against a details record about to be captured
// through gateway and returns ErrDenied when a rule denies it.
func (ppe *PaymentPolicyEnforcer) Check(ctx context.Context, gateway string, d *details.Details) error {
	decision, err := ppe.Evaluate(ctx, Params(gateway, d))
	if err != nil {
		return err
	}
	if decision.Deny {
		return fmt.Errorf("%w: %s", ErrDenied, decision.Reason)
	}
	return nil
}

// Params exposes a details record to the rule DSL.
func Params(gateway string, d *details.Details) map[string]interface{} {
	amount := 0.0
	raw, _ := d.Get(details.KeyAmount)
	switch v := raw.(type) {
	case float64:
		amount = v
	case int:
		amount = float64(v)
	case int64:
		amount = float64(v)
	}
	return map[string]interface{}{
		"amount":           amount,
		"currency":         d.String(details.KeyCurrency),
		"description":      d.String(details.KeyDescription),
		"clientIp":         d.String(details.KeyClientIP),
		"gateway":          gateway,
		"hasCard":          d.Has(details.KeyCard),
		"hasCardReference": d.Has(details.KeyCardReference),
	}
}
