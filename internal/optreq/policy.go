// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package optreq

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Policy holds the compiled expr-lang rules that gate Optimise-
// Requests' hole heuristic and its same-key write merge: a rule is
// compiled once from a small variable set (span, empty_bytes,
// access_count, same_key) and re-run per decision. DefaultPolicy is the
// only constructor, so the rules are the constant strings below and
// changing them takes a rebuild.
type Policy struct {
	holeRule    *vm.Program
	sameKeyRule *vm.Program
}

// defaultHoleRule is the hole heuristic: split whenever the empty
// bytes inside the group's span exceed max(1/8 x span, 4 absolute).
const defaultHoleRule = "empty_bytes > (span >= 32 ? span / 8 : 4)"

// defaultSameKeyRule is the commutation table's "same-key? MERGE_SAME
// : BLOCK" gate for write-vs-write(_masked) pairs that are not
// disjoint.
const defaultSameKeyRule = "same_key"

// DefaultPolicy compiles the rules above.
func DefaultPolicy() (*Policy, error) {
	hole, err := expr.Compile(defaultHoleRule, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("optreq: compiling hole rule: %w", err)
	}
	sameKey, err := expr.Compile(defaultSameKeyRule, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("optreq: compiling same-key rule: %w", err)
	}
	return &Policy{holeRule: hole, sameKeyRule: sameKey}, nil
}

// ShouldSplit reports whether a group spanning span bytes with
// emptyBytes unaccessed bytes should be split. accessCount is passed to
// the rule as access_count; the default rule ignores it.
func (p *Policy) ShouldSplit(span, emptyBytes, accessCount int64) (bool, error) {
	env := map[string]any{
		"span":         span,
		"empty_bytes":  emptyBytes,
		"access_count": accessCount,
	}
	out, err := expr.Run(p.holeRule, env)
	if err != nil {
		return false, fmt.Errorf("optreq: hole rule: %w", err)
	}
	return out.(bool), nil
}

// SameKeyMerge reports whether two non-disjoint writes sharing
// sameKey-ness should merge rather than block.
func (p *Policy) SameKeyMerge(sameKey bool) (bool, error) {
	out, err := expr.Run(p.sameKeyRule, map[string]any{"same_key": sameKey})
	if err != nil {
		return false, fmt.Errorf("optreq: same-key rule: %w", err)
	}
	return out.(bool), nil
}
