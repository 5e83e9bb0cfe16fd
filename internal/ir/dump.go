// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package ir

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// DumpModuleJSON writes m in the same JSON form ParseModuleJSON reads,
// so the driver's output directory holds a round-trippable rendition
// of the transformed module.
func DumpModuleJSON(w io.Writer, m *Module) error {
	jm := jsonModule{Name: m.Name}
	for _, g := range m.Globals {
		s := ""
		if g.IsString && len(g.StringData) > 0 {
			s = string(g.StringData[:len(g.StringData)-1])
		}
		jm.Globals = append(jm.Globals, jsonGlobal{Name: g.Name, String: s})
	}
	for _, fn := range m.Functions {
		jf, err := dumpFunction(fn)
		if err != nil {
			return err
		}
		jm.Functions = append(jm.Functions, *jf)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&jm)
}

type dumper struct {
	names map[Value]string
	next  int
}

func (d *dumper) nameOf(v Value) string {
	if n, ok := d.names[v]; ok {
		return n
	}
	d.next++
	n := "t" + strconv.Itoa(d.next)
	d.names[v] = n
	return n
}

func (d *dumper) ref(v Value) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case *ConstInt:
		return strconv.FormatInt(x.Val, 10), nil
	case *ConstNull:
		return "null", nil
	case *Undef:
		return "undef", nil
	case *Argument:
		return "%" + x.Name, nil
	case *Function:
		return "@" + x.Name, nil
	case *GlobalVariable:
		return "@" + x.Name, nil
	case Instruction:
		return "%" + d.nameOf(x), nil
	default:
		return "", fmt.Errorf("ir: cannot reference value %s", v.Ident())
	}
}

func (d *dumper) refs(vs []Value) ([]string, error) {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		s, err := d.ref(v)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func dumpFunction(fn *Function) (*jsonFunction, error) {
	jf := &jsonFunction{Name: fn.Name, Ret: typeString(fn.Ty.Ret)}
	for _, p := range fn.Params {
		jf.Params = append(jf.Params, jsonParam{Name: p.Name, Type: typeString(p.Ty)})
	}
	if fn.IsDeclaration() {
		return jf, nil
	}

	d := &dumper{names: map[Value]string{}}
	// Seed stable names for every defining instruction first, so a use
	// before a def in block order (PHIs) still resolves.
	for _, bb := range fn.Blocks {
		for _, insn := range bb.Instrs {
			if insn.Type().Kind != KindVoid {
				d.nameOf(insn)
			}
		}
	}

	for _, bb := range fn.Blocks {
		jb := jsonBlock{Name: bb.Name}
		for _, insn := range bb.Instrs {
			ji, err := dumpInsn(d, insn)
			if err != nil {
				return nil, fmt.Errorf("ir: function %s: %w", fn.Name, err)
			}
			jb.Instrs = append(jb.Instrs, *ji)
		}
		jf.Blocks = append(jf.Blocks, jb)
	}
	return jf, nil
}

func dumpInsn(d *dumper, insn Instruction) (*jsonInsn, error) {
	ji := &jsonInsn{}
	if insn.Type().Kind != KindVoid {
		ji.Name = d.nameOf(insn)
	}
	var err error
	switch x := insn.(type) {
	case *Alloca:
		ji.Op = "alloca"
		ji.Type = typeString(x.AllocatedType)
		if c, ok := x.ArraySize.(*ConstInt); ok {
			ji.Count = int(c.Val)
		}
	case *Load:
		ji.Op = "load"
		ji.Type = typeString(x.Type())
		ji.Ptr, err = d.ref(x.Ptr)
	case *Store:
		ji.Op = "store"
		if ji.Val, err = d.ref(x.Val); err == nil {
			ji.Ptr, err = d.ref(x.Ptr)
		}
	case *GetElementPtr:
		ji.Op = "gep"
		ji.Type = typeString(x.PointeeType)
		if ji.Ptr, err = d.ref(x.Ptr); err == nil {
			ji.Indices, err = d.refs(x.Indices)
		}
	case *BitCast:
		ji.Op = "bitcast"
		ji.Type = typeString(x.Type())
		ji.Val, err = d.ref(x.Val)
	case *Cast:
		ji.Op = "cast"
		ji.Kind = castKindString(x.Op)
		ji.Type = typeString(x.Type())
		ji.Val, err = d.ref(x.Val)
	case *Call:
		ji.Op = "call"
		ji.Type = typeString(x.Type())
		if ji.Callee, err = d.ref(x.Callee); err == nil {
			ji.Args, err = d.refs(x.Args)
		}
	case *Phi:
		ji.Op = "phi"
		ji.Type = typeString(x.Type())
		ji.Incoming = map[string]string{}
		for _, in := range x.Incoming {
			var s string
			if s, err = d.ref(in.Val); err != nil {
				break
			}
			ji.Incoming[in.Block.Name] = s
		}
	case *Br:
		ji.Op = "br"
		if x.Cond != nil {
			if ji.Cond, err = d.ref(x.Cond); err == nil {
				ji.True, ji.False = x.True.Name, x.False.Name
			}
		} else {
			ji.True = x.True.Name
		}
	case *Switch:
		ji.Op = "switch"
		ji.Default = x.Default.Name
		ji.Cases = map[string]string{}
		for _, c := range x.Cases {
			ji.Cases[strconv.FormatInt(c.Val, 10)] = c.BB.Name
		}
		ji.Cond, err = d.ref(x.Cond)
	case *Ret:
		ji.Op = "ret"
		ji.Val, err = d.ref(x.Val)
	case *BinOp:
		ji.Op = "binop"
		ji.Kind = binOpKindString(x.Op)
		ji.Type = typeString(x.Type())
		if ji.LHS, err = d.ref(x.LHS); err == nil {
			ji.RHS, err = d.ref(x.RHS)
		}
	case *ICmp:
		ji.Op = "icmp"
		ji.Kind = icmpPredString(x.Pred)
		if ji.LHS, err = d.ref(x.LHS); err == nil {
			ji.RHS, err = d.ref(x.RHS)
		}
	case *Select:
		ji.Op = "select"
		if ji.Cond, err = d.ref(x.Cond); err == nil {
			if ji.True, err = d.ref(x.True); err == nil {
				ji.False, err = d.ref(x.False)
			}
		}
	case *Unreachable:
		ji.Op = "unreachable"
	default:
		return nil, fmt.Errorf("cannot dump instruction %s", insn.Ident())
	}
	return ji, err
}

func typeString(t *Type) string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return fmt.Sprintf("i%d", t.Bits)
	case KindPointer:
		return typeString(t.Elem) + "*"
	case KindArray:
		return fmt.Sprintf("[%d x %s]", t.Count, typeString(t.Elem))
	default:
		return t.String()
	}
}

func castKindString(k CastKind) string {
	switch k {
	case Trunc:
		return "trunc"
	case ZExt:
		return "zext"
	case SExt:
		return "sext"
	case PtrToInt:
		return "ptrtoint"
	default:
		return "inttoptr"
	}
}

func binOpKindString(k BinOpKind) string {
	return [...]string{"add", "sub", "mul", "udiv", "sdiv", "shl", "lshr", "ashr", "and", "or", "xor"}[k]
}

func icmpPredString(p ICmpPred) string {
	return [...]string{"eq", "ne", "ult", "ule", "ugt", "uge", "slt", "sle", "sgt", "sge"}[p]
}
