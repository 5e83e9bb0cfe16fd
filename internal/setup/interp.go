// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package setup

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/apidecode"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// svKind tags a SetupValue's payload.
type svKind int

const (
	svUnknown svKind = iota
	svUndefined
	svInt
	svPtr
	svMemset
	svChannel
	svContext
	svMap
)

// SetupValue is the abstract value the interpreter propagates through
// the setup function.
type SetupValue struct {
	Kind  svKind
	Int   int64
	Ptr   uint64
	Byte  byte
	Index int
}

type allocation struct {
	start, end uint64
	info       ir.Value
}

// region is a whole-value memory region: the store/load model is
// precise for the whole-aligned-value stores the setup function's
// LLVM IR emits for topology handles (pointers, ids), and collapses to
// Unknown for any partial overlap -- sufficient for the entities this
// interpreter is responsible for building (recognized setup calls never
// partially alias each other in well-formed setup functions).
type region struct {
	start, end uint64
	val        SetupValue
}

// Interp is the setup function's abstract machine: it holds the
// process-wide abstract address space, the region map, and the current
// SSA-value → SetupValue bindings.
type Interp struct {
	topo     *Topology
	values   map[ir.Value]SetupValue
	globals  map[*ir.GlobalVariable]uint64
	nextAddr uint64
	allocs   []allocation
	regions  []region
	strict   bool
}

// Run interprets fn (the setup function) and returns the topology it
// builds. strict selects the unknown-call policy: in strict
// mode an unrecognized call is fatal, in loose mode it is a warning.
func Run(fn *ir.Function, strict bool) (*Topology, error) {
	s := &Interp{
		topo:    newTopology(),
		values:  make(map[ir.Value]SetupValue),
		globals: make(map[*ir.GlobalVariable]uint64),
		strict:  strict,
	}
	for _, a := range fn.Params {
		s.values[a] = SetupValue{Kind: svUnknown}
	}

	cur := fn.Entry()
	var prev *ir.BasicBlock
	visited := 0
	for cur != nil {
		visited++
		if visited > 10_000_000 {
			return nil, fmt.Errorf("setup interpreter: exceeded block-visit budget (possible infinite loop)")
		}
		next, done, err := s.runBlock(cur, prev)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		prev, cur = cur, next
	}
	return s.topo, nil
}

// runBlock executes every instruction of bb in order, resolving PHIs
// against prev (the predecessor last executed) and returns the next
// block to run, or done=true at a Ret.
func (s *Interp) runBlock(bb, prev *ir.BasicBlock) (next *ir.BasicBlock, done bool, err error) {
	for _, insn := range bb.Instrs {
		switch x := insn.(type) {
		case *ir.Phi:
			v, ok := x.ValueForBlock(prev)
			if !ok {
				return nil, false, fmt.Errorf("setup interpreter: phi %s has no incoming value for predecessor block", x.Ident())
			}
			s.values[x] = s.eval(v)

		case *ir.Ret:
			return nil, true, nil

		case *ir.Unreachable:
			return nil, false, fmt.Errorf("setup interpreter: reached an unreachable instruction")

		case *ir.Br:
			if x.Cond == nil {
				return x.True, false, nil
			}
			cv := s.eval(x.Cond)
			if cv.Kind != svInt {
				return nil, false, fmt.Errorf("setup interpreter: non-constant branch condition at %s", x.Ident())
			}
			if cv.Int != 0 {
				return x.True, false, nil
			}
			return x.False, false, nil

		case *ir.Switch:
			cv := s.eval(x.Cond)
			if cv.Kind != svInt {
				return nil, false, fmt.Errorf("setup interpreter: non-constant switch condition at %s", x.Ident())
			}
			for _, c := range x.Cases {
				if c.Val == cv.Int {
					return c.BB, false, nil
				}
			}
			return x.Default, false, nil

		default:
			if err := s.exec(insn); err != nil {
				return nil, false, err
			}
		}
	}
	return nil, false, fmt.Errorf("setup interpreter: block %s has no terminator", bb.Name)
}

// eval resolves v to its SetupValue: IR constants fold directly,
// globals get a lazily assigned abstract address, everything else is
// looked up in the current binding set.
func (s *Interp) eval(v ir.Value) SetupValue {
	switch x := v.(type) {
	case *ir.ConstInt:
		return SetupValue{Kind: svInt, Int: x.Val}
	case *ir.ConstNull:
		return SetupValue{Kind: svPtr, Ptr: 0}
	case *ir.Undef:
		return SetupValue{Kind: svUndefined}
	case *ir.GlobalVariable:
		return SetupValue{Kind: svPtr, Ptr: s.globalAddr(x)}
	case *ir.Function:
		return SetupValue{Kind: svUnknown}
	default:
		if val, ok := s.values[v]; ok {
			return val
		}
		return SetupValue{Kind: svUnknown}
	}
}

func (s *Interp) globalAddr(g *ir.GlobalVariable) uint64 {
	if addr, ok := s.globals[g]; ok {
		return addr
	}
	addr := s.alloc(g.Ty.StoreSize(), g)
	s.globals[g] = addr
	return addr
}

func (s *Interp) alloc(size int64, info ir.Value) uint64 {
	if size <= 0 {
		size = 1
	}
	addr := s.nextAddr
	s.nextAddr += uint64(size)
	s.allocs = append(s.allocs, allocation{start: addr, end: s.nextAddr, info: info})
	return addr
}

func (s *Interp) store(ptr uint64, size int64, val SetupValue) {
	end := ptr + uint64(size)
	kept := s.regions[:0:0]
	for _, r := range s.regions {
		if r.end <= ptr || r.start >= end {
			kept = append(kept, r)
		}
	}
	kept = append(kept, region{start: ptr, end: end, val: val})
	s.regions = kept
}

func (s *Interp) load(ptr uint64, size int64) SetupValue {
	end := ptr + uint64(size)
	for _, r := range s.regions {
		if r.start == ptr && r.end == end {
			return r.val
		}
	}
	return SetupValue{Kind: svUnknown}
}

// exec evaluates one non-terminator, non-PHI instruction.
func (s *Interp) exec(insn ir.Instruction) error {
	switch x := insn.(type) {
	case *ir.Alloca:
		size := x.AllocatedType.StoreSize()
		if x.ArraySize != nil {
			n := s.eval(x.ArraySize)
			if n.Kind != svInt {
				return fmt.Errorf("setup interpreter: alloca %s has a non-constant element count", x.Ident())
			}
			size *= n.Int
		}
		s.values[x] = SetupValue{Kind: svPtr, Ptr: s.alloc(size, x)}

	case *ir.GetElementPtr:
		base := s.eval(x.Ptr)
		if base.Kind != svPtr {
			return fmt.Errorf("setup interpreter: GEP %s base is not a pointer setup value", x.Ident())
		}
		off, err := apidecode.GEPConstantOffset(x)
		if err != nil {
			return fmt.Errorf("setup interpreter: %w", err)
		}
		s.values[x] = SetupValue{Kind: svPtr, Ptr: uint64(int64(base.Ptr) + off)}

	case *ir.BitCast:
		s.values[x] = s.eval(x.Val)

	case *ir.Cast:
		s.values[x] = s.eval(x.Val)

	case *ir.Load:
		ptr := s.eval(x.Ptr)
		if ptr.Kind != svPtr {
			return fmt.Errorf("setup interpreter: load %s pointer operand is not constant", x.Ident())
		}
		s.values[x] = s.load(ptr.Ptr, x.Type().StoreSize())

	case *ir.Store:
		ptr := s.eval(x.Ptr)
		if ptr.Kind != svPtr {
			return fmt.Errorf("setup interpreter: store %s pointer operand is not constant", x.Ident())
		}
		s.store(ptr.Ptr, x.Val.Type().StoreSize(), s.eval(x.Val))

	case *ir.BinOp:
		s.values[x] = s.evalBinOp(x)

	case *ir.ICmp:
		s.values[x] = s.evalICmp(x)

	case *ir.Select:
		cv := s.eval(x.Cond)
		if cv.Kind != svInt {
			return fmt.Errorf("setup interpreter: select %s has a non-constant condition", x.Ident())
		}
		if cv.Int != 0 {
			s.values[x] = s.eval(x.True)
		} else {
			s.values[x] = s.eval(x.False)
		}

	case *ir.Call:
		return s.execCall(x)
	}
	return nil
}

func (s *Interp) evalBinOp(x *ir.BinOp) SetupValue {
	l, r := s.eval(x.LHS), s.eval(x.RHS)
	if l.Kind != svInt || r.Kind != svInt {
		return SetupValue{Kind: svUnknown}
	}
	var v int64
	switch x.Op {
	case ir.Add:
		v = l.Int + r.Int
	case ir.Sub:
		v = l.Int - r.Int
	case ir.Mul:
		v = l.Int * r.Int
	case ir.UDiv, ir.SDiv:
		if r.Int == 0 {
			return SetupValue{Kind: svUnknown}
		}
		v = l.Int / r.Int
	case ir.Shl:
		v = l.Int << uint(r.Int)
	case ir.LShr, ir.AShr:
		v = l.Int >> uint(r.Int)
	case ir.And:
		v = l.Int & r.Int
	case ir.Or:
		v = l.Int | r.Int
	case ir.Xor:
		v = l.Int ^ r.Int
	}
	return SetupValue{Kind: svInt, Int: v}
}

func (s *Interp) evalICmp(x *ir.ICmp) SetupValue {
	l, r := s.eval(x.LHS), s.eval(x.RHS)
	if l.Kind != svInt || r.Kind != svInt {
		return SetupValue{Kind: svUnknown}
	}
	var b bool
	switch x.Pred {
	case ir.ICmpEQ:
		b = l.Int == r.Int
	case ir.ICmpNE:
		b = l.Int != r.Int
	case ir.ICmpULT, ir.ICmpSLT:
		b = l.Int < r.Int
	case ir.ICmpULE, ir.ICmpSLE:
		b = l.Int <= r.Int
	case ir.ICmpUGT, ir.ICmpSGT:
		b = l.Int > r.Int
	case ir.ICmpUGE, ir.ICmpSGE:
		b = l.Int >= r.Int
	}
	if b {
		return SetupValue{Kind: svInt, Int: 1}
	}
	return SetupValue{Kind: svInt, Int: 0}
}

func (s *Interp) intArg(call *ir.Call, idx int) (int64, error) {
	if idx < 0 || idx >= len(call.Args) {
		return 0, fmt.Errorf("setup interpreter: call %s has no argument %d", call.Ident(), idx)
	}
	v := s.eval(call.Args[idx])
	if v.Kind != svInt {
		return 0, fmt.Errorf("setup interpreter: argument %d of call %s is not a compile-time constant", idx, call.Ident())
	}
	return v.Int, nil
}
