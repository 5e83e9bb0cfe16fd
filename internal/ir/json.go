// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// The JSON module format is the driver's input surface: a flat
// rendition of the IR subset this package models, produced by the
// front-end that lowered the original eBPF/XDP program. Values are
// referenced by name: "%x" for locals and parameters, "@g" for
// globals and functions, bare integers for constants.

type jsonModule struct {
	Name      string         `json:"name"`
	Globals   []jsonGlobal   `json:"globals"`
	Functions []jsonFunction `json:"functions"`
}

type jsonGlobal struct {
	Name   string `json:"name"`
	String string `json:"string"`
}

type jsonFunction struct {
	Name   string      `json:"name"`
	Ret    string      `json:"ret"`
	Params []jsonParam `json:"params"`
	Blocks []jsonBlock `json:"blocks"`
}

type jsonParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type jsonBlock struct {
	Name   string     `json:"name"`
	Instrs []jsonInsn `json:"instrs"`
}

// jsonInsn is a union over every instruction kind; Op selects which
// fields apply.
type jsonInsn struct {
	Op   string `json:"op"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`

	Ptr    string   `json:"ptr,omitempty"`
	Val    string   `json:"val,omitempty"`
	Callee string   `json:"callee,omitempty"`
	Args   []string `json:"args,omitempty"`
	LHS    string   `json:"lhs,omitempty"`
	RHS    string   `json:"rhs,omitempty"`
	Cond   string   `json:"cond,omitempty"`
	True   string   `json:"true,omitempty"`
	False  string   `json:"false,omitempty"`
	Kind   string   `json:"kind,omitempty"` // binop / icmp / cast selector
	Count  int      `json:"count,omitempty"`

	Indices  []string          `json:"indices,omitempty"`
	Incoming map[string]string `json:"incoming,omitempty"` // block -> value
	Cases    map[string]string `json:"cases,omitempty"`    // const -> block
	Default  string            `json:"default,omitempty"`
}

// ParseModuleJSON decodes the JSON module format.
func ParseModuleJSON(data []byte) (*Module, error) {
	var jm jsonModule
	if err := json.Unmarshal(data, &jm); err != nil {
		return nil, fmt.Errorf("ir: decoding module: %w", err)
	}
	m := NewModule(jm.Name)
	for _, g := range jm.Globals {
		m.NewGlobalString(g.Name, g.String)
	}

	// Declare every function first so calls can reference them in any
	// order.
	for _, jf := range jm.Functions {
		ret, err := parseType(jf.Ret)
		if err != nil {
			return nil, fmt.Errorf("ir: function %s: %w", jf.Name, err)
		}
		var params []*Type
		for _, p := range jf.Params {
			ty, err := parseType(p.Type)
			if err != nil {
				return nil, fmt.Errorf("ir: function %s: %w", jf.Name, err)
			}
			params = append(params, ty)
		}
		fn := m.NewFunction(jf.Name, FuncTy(ret, params...))
		for i, p := range jf.Params {
			if p.Name != "" {
				fn.Params[i].Name = p.Name
			}
		}
	}

	for _, jf := range jm.Functions {
		if len(jf.Blocks) == 0 {
			continue
		}
		if err := buildFunction(m, m.FindFunction(jf.Name), &jf); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func parseType(s string) (*Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "void":
		return VoidTy(), nil
	case strings.HasSuffix(s, "*"):
		elem, err := parseType(s[:len(s)-1])
		if err != nil {
			return nil, err
		}
		return PointerTy(elem), nil
	case strings.HasPrefix(s, "["):
		// [N x T]
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		parts := strings.SplitN(inner, "x", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad array type %q", s)
		}
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%d", &n); err != nil {
			return nil, fmt.Errorf("bad array count in %q", s)
		}
		elem, err := parseType(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		return ArrayTy(elem, n), nil
	case strings.HasPrefix(s, "i"):
		var bits int
		if _, err := fmt.Sscanf(s, "i%d", &bits); err != nil {
			return nil, fmt.Errorf("bad integer type %q", s)
		}
		return IntTy(bits), nil
	default:
		return nil, fmt.Errorf("unsupported type %q", s)
	}
}

type fnBuilder struct {
	m      *Module
	fn     *Function
	blocks map[string]*BasicBlock
	values map[string]Value
	// phi incoming edges resolve after every block's values exist.
	phiFixups []phiFixup
}

type phiFixup struct {
	phi      *Phi
	incoming map[string]string
	insn     string
}

func buildFunction(m *Module, fn *Function, jf *jsonFunction) error {
	b := &fnBuilder{
		m: m, fn: fn,
		blocks: map[string]*BasicBlock{},
		values: map[string]Value{},
	}
	for _, p := range fn.Params {
		b.values["%"+p.Name] = p
	}
	for _, jb := range jf.Blocks {
		b.blocks[jb.Name] = fn.NewBlock(jb.Name)
	}
	for _, jb := range jf.Blocks {
		for i := range jb.Instrs {
			if err := b.addInsn(b.blocks[jb.Name], &jb.Instrs[i]); err != nil {
				return fmt.Errorf("ir: function %s block %s: %w", fn.Name, jb.Name, err)
			}
		}
	}
	for _, fix := range b.phiFixups {
		for blockName, valName := range fix.incoming {
			bb, ok := b.blocks[blockName]
			if !ok {
				return fmt.Errorf("ir: function %s: phi %s references unknown block %q", fn.Name, fix.insn, blockName)
			}
			v, err := b.value(valName, fix.phi.Type())
			if err != nil {
				return err
			}
			fix.phi.AddIncoming(v, bb)
		}
	}
	return nil
}

func (b *fnBuilder) value(s string, hint *Type) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty value reference")
	}
	switch s[0] {
	case '%', '@':
		if v, ok := b.values[s]; ok {
			return v, nil
		}
		if s[0] == '@' {
			name := s[1:]
			if fn := b.m.FindFunction(name); fn != nil {
				return fn, nil
			}
			for _, g := range b.m.Globals {
				if g.Name == name {
					return g, nil
				}
			}
		}
		return nil, fmt.Errorf("unknown value %q", s)
	default:
		if s == "null" {
			return &ConstNull{Ty: PointerTy(I8)}, nil
		}
		if s == "undef" {
			return &Undef{Ty: hint}, nil
		}
		var n int64
		if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
			return nil, fmt.Errorf("bad constant %q", s)
		}
		ty := hint
		if ty == nil || ty.Kind != KindInt {
			ty = I64
		}
		return &ConstInt{Ty: ty, Val: n}, nil
	}
}

func (b *fnBuilder) valuesFor(ss []string, hint *Type) ([]Value, error) {
	out := make([]Value, 0, len(ss))
	for _, s := range ss {
		v, err := b.value(s, hint)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *fnBuilder) define(name string, v Value) {
	if name != "" {
		b.values["%"+name] = v
	}
}

func (b *fnBuilder) addInsn(bb *BasicBlock, ji *jsonInsn) error {
	ty, err := parseType(ji.Type)
	if err != nil {
		return err
	}
	name := ji.Name
	switch ji.Op {
	case "alloca":
		i := &Alloca{base: base{name: name, ty: PointerTy(ty)}, AllocatedType: ty}
		if ji.Count > 1 {
			i.ArraySize = &ConstInt{Ty: I64, Val: int64(ji.Count)}
		}
		bb.Append(i)
		b.define(name, i)

	case "load":
		ptr, err := b.value(ji.Ptr, nil)
		if err != nil {
			return err
		}
		i := &Load{base: base{name: name, ty: ty}, Ptr: ptr}
		bb.Append(i)
		b.define(name, i)

	case "store":
		val, err := b.value(ji.Val, ty)
		if err != nil {
			return err
		}
		ptr, err := b.value(ji.Ptr, nil)
		if err != nil {
			return err
		}
		bb.Append(&Store{base: base{name: name, ty: VoidTy()}, Val: val, Ptr: ptr})

	case "gep":
		ptr, err := b.value(ji.Ptr, nil)
		if err != nil {
			return err
		}
		indices, err := b.valuesFor(ji.Indices, I64)
		if err != nil {
			return err
		}
		i := &GetElementPtr{base: base{name: name, ty: PointerTy(ty)}, PointeeType: ty, Ptr: ptr, Indices: indices}
		bb.Append(i)
		b.define(name, i)

	case "bitcast":
		val, err := b.value(ji.Val, nil)
		if err != nil {
			return err
		}
		i := &BitCast{base: base{name: name, ty: ty}, Val: val}
		bb.Append(i)
		b.define(name, i)

	case "cast":
		val, err := b.value(ji.Val, nil)
		if err != nil {
			return err
		}
		kind, err := castKind(ji.Kind)
		if err != nil {
			return err
		}
		i := &Cast{base: base{name: name, ty: ty}, Op: kind, Val: val}
		bb.Append(i)
		b.define(name, i)

	case "call":
		callee, err := b.value(ji.Callee, nil)
		if err != nil {
			return err
		}
		args, err := b.valuesFor(ji.Args, I64)
		if err != nil {
			return err
		}
		i := &Call{base: base{name: name, ty: ty}, Callee: callee, Args: args}
		bb.Append(i)
		b.define(name, i)

	case "phi":
		i := &Phi{base: base{name: name, ty: ty}}
		bb.Append(i)
		b.define(name, i)
		b.phiFixups = append(b.phiFixups, phiFixup{phi: i, incoming: ji.Incoming, insn: name})

	case "br":
		if ji.Cond == "" {
			target, ok := b.blocks[ji.True]
			if !ok {
				return fmt.Errorf("unknown block %q", ji.True)
			}
			bb.Append(&Br{base: base{name: name, ty: VoidTy()}, True: target})
			return nil
		}
		cond, err := b.value(ji.Cond, I1)
		if err != nil {
			return err
		}
		tt, ok := b.blocks[ji.True]
		if !ok {
			return fmt.Errorf("unknown block %q", ji.True)
		}
		ff, ok := b.blocks[ji.False]
		if !ok {
			return fmt.Errorf("unknown block %q", ji.False)
		}
		bb.Append(&Br{base: base{name: name, ty: VoidTy()}, Cond: cond, True: tt, False: ff})

	case "switch":
		cond, err := b.value(ji.Cond, I64)
		if err != nil {
			return err
		}
		def, ok := b.blocks[ji.Default]
		if !ok {
			return fmt.Errorf("unknown block %q", ji.Default)
		}
		sw := &Switch{base: base{name: name, ty: VoidTy()}, Cond: cond, Default: def}
		for c, blockName := range ji.Cases {
			var v int64
			if _, err := fmt.Sscanf(c, "%d", &v); err != nil {
				return fmt.Errorf("bad switch case %q", c)
			}
			target, ok := b.blocks[blockName]
			if !ok {
				return fmt.Errorf("unknown block %q", blockName)
			}
			sw.Cases = append(sw.Cases, SwitchCase{Val: v, BB: target})
		}
		bb.Append(sw)

	case "unreachable":
		bb.Append(&Unreachable{base: base{name: name, ty: VoidTy()}})

	case "ret":
		var val Value
		if ji.Val != "" {
			val, err = b.value(ji.Val, b.fn.Ty.Ret)
			if err != nil {
				return err
			}
		}
		bb.Append(&Ret{base: base{name: name, ty: VoidTy()}, Val: val})

	case "binop":
		lhs, err := b.value(ji.LHS, ty)
		if err != nil {
			return err
		}
		rhs, err := b.value(ji.RHS, ty)
		if err != nil {
			return err
		}
		kind, err := binOpKind(ji.Kind)
		if err != nil {
			return err
		}
		resTy := ty
		if resTy.Kind == KindVoid {
			resTy = lhs.Type()
		}
		i := &BinOp{base: base{name: name, ty: resTy}, Op: kind, LHS: lhs, RHS: rhs}
		bb.Append(i)
		b.define(name, i)

	case "icmp":
		lhs, err := b.value(ji.LHS, ty)
		if err != nil {
			return err
		}
		rhs, err := b.value(ji.RHS, lhs.Type())
		if err != nil {
			return err
		}
		pred, err := icmpPred(ji.Kind)
		if err != nil {
			return err
		}
		i := &ICmp{base: base{name: name, ty: I1}, Pred: pred, LHS: lhs, RHS: rhs}
		bb.Append(i)
		b.define(name, i)

	case "select":
		cond, err := b.value(ji.Cond, I1)
		if err != nil {
			return err
		}
		tv, err := b.value(ji.True, ty)
		if err != nil {
			return err
		}
		fv, err := b.value(ji.False, tv.Type())
		if err != nil {
			return err
		}
		i := &Select{base: base{name: name, ty: tv.Type()}, Cond: cond, True: tv, False: fv}
		bb.Append(i)
		b.define(name, i)

	default:
		return fmt.Errorf("unsupported instruction op %q", ji.Op)
	}
	return nil
}

func castKind(s string) (CastKind, error) {
	switch s {
	case "trunc":
		return Trunc, nil
	case "zext":
		return ZExt, nil
	case "sext":
		return SExt, nil
	case "ptrtoint":
		return PtrToInt, nil
	case "inttoptr":
		return IntToPtr, nil
	default:
		return 0, fmt.Errorf("unsupported cast kind %q", s)
	}
}

func binOpKind(s string) (BinOpKind, error) {
	switch s {
	case "add":
		return Add, nil
	case "sub":
		return Sub, nil
	case "mul":
		return Mul, nil
	case "udiv":
		return UDiv, nil
	case "sdiv":
		return SDiv, nil
	case "shl":
		return Shl, nil
	case "lshr":
		return LShr, nil
	case "ashr":
		return AShr, nil
	case "and":
		return And, nil
	case "or":
		return Or, nil
	case "xor":
		return Xor, nil
	default:
		return 0, fmt.Errorf("unsupported binop kind %q", s)
	}
}

func icmpPred(s string) (ICmpPred, error) {
	switch s {
	case "eq":
		return ICmpEQ, nil
	case "ne":
		return ICmpNE, nil
	case "ult":
		return ICmpULT, nil
	case "ule":
		return ICmpULE, nil
	case "ugt":
		return ICmpUGT, nil
	case "uge":
		return ICmpUGE, nil
	case "slt":
		return ICmpSLT, nil
	case "sle":
		return ICmpSLE, nil
	case "sgt":
		return ICmpSGT, nil
	case "sge":
		return ICmpSGE, nil
	default:
		return 0, fmt.Errorf("unsupported icmp predicate %q", s)
	}
}
