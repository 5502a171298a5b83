// Package policygate is the refusal gate backing the REFUSED verdict path
// (spec.md §4.3 "Refusal policy"): an OPA Rego bundle evaluated against the
// normalized claim before Stage 3 onward runs.
package policygate

import (
	"context"
	"log/slog"

	"github.com/open-policy-agent/opa/rego"

	"github.com/codeready-toolchain/truthgraph/pkg/config"
)

// Gate evaluates the configured Rego query against a claim. A Gate with no
// bundle configured always allows (fail-open for deployments that ship
// without a policy bundle, per spec.md's "explicitly out of scope" note
// that only the interface is specified here).
type Gate struct {
	query  rego.PreparedEvalQuery
	active bool
}

// New prepares the Rego query once at construction. If cfg.BundlePath is
// empty, the returned Gate always allows.
func New(ctx context.Context, cfg config.PolicyConfig) (*Gate, error) {
	if cfg.BundlePath == "" {
		return &Gate{active: false}, nil
	}

	prepared, err := rego.New(
		rego.Query(cfg.Query),
		rego.Load([]string{cfg.BundlePath}, nil),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Gate{query: prepared, active: true}, nil
}

// Input is the subset of pipeline state the policy needs to decide.
type Input struct {
	ClaimText string `json:"claim_text"`
	Language  string `json:"language"`
}

// Evaluate returns true if the claim should be refused. On any evaluation
// error, it fails open (returns false) and logs a warning — a policy
// engine outage must not itself become a refusal.
func (g *Gate) Evaluate(ctx context.Context, in Input) bool {
	if !g.active {
		return false
	}

	rs, err := g.query.Eval(ctx, rego.EvalInput(map[string]any{
		"claim_text": in.ClaimText,
		"language":   in.Language,
	}))
	if err != nil {
		slog.Warn("policygate: evaluation failed, failing open", "error", err)
		return false
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false
	}

	refused, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false
	}
	return refused
}
