// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ptr is the pointer analysis: a per-function
// classification of every pointer-typed SSA value as (root-kind, base,
// constant byte offset) relative to a small closed set of roots.
package ptr

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/apidecode"
	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// Kind is the root a pointer value is classified against.
type Kind int

const (
	Unknown Kind = iota
	Argument
	Stack
	ChannelHandle
	MapData
)

func (k Kind) String() string {
	switch k {
	case Argument:
		return "Argument"
	case Stack:
		return "Stack"
	case ChannelHandle:
		return "ChannelHandle"
	case MapData:
		return "MapData"
	default:
		return "Unknown"
	}
}

// Info is the classification of one pointer-typed SSA value.
type Info struct {
	Kind     Kind
	Base     ir.Value
	Offset   int64
	Indirect bool
}

// Result maps every pointer-typed SSA value the analysis classified to
// its Info, for one function.
type Result map[ir.Value]Info

// Analyze classifies every pointer-typed value defined in fn, per
// constant offset from a recognized root. It visits instructions in
// reverse postorder so a value's root
// is always classified before anything derived from it.
func Analyze(fn *ir.Function) (Result, error) {
	CompactGEPs(fn)
	res := make(Result)
	for _, a := range fn.Params {
		if a.Ty.Kind == ir.KindPointer {
			res[a] = Info{Kind: Argument, Base: a, Offset: 0}
		}
	}
	for _, bb := range fn.ReversePostOrder() {
		for _, insn := range bb.Instrs {
			if err := classify(res, insn); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func classify(res Result, insn ir.Instruction) error {
	switch x := insn.(type) {
	case *ir.Alloca:
		res[x] = Info{Kind: Stack, Base: x, Offset: 0}

	case *ir.Call:
		id := intrinsics.GetIntrinsic(x)
		switch {
		case id == intrinsics.ChannelCreate:
			res[x] = Info{Kind: ChannelHandle, Base: x, Offset: 0}
		case id == intrinsics.MapLookup || id == intrinsics.MapOpReceive:
			res[x] = Info{Kind: MapData, Base: x, Offset: 0}
		}

	case *ir.BitCast:
		if in, ok := res[x.Val]; ok {
			res[x] = Info{Kind: in.Kind, Base: in.Base, Offset: in.Offset, Indirect: in.Indirect}
		}

	case *ir.GetElementPtr:
		in, ok := res[x.Ptr]
		if !ok {
			return nil
		}
		off, err := apidecode.GEPConstantOffset(x)
		if err != nil {
			return fmt.Errorf("pointer analysis: %w", err)
		}
		res[x] = Info{Kind: in.Kind, Base: in.Base, Offset: in.Offset + off, Indirect: in.Indirect}

	case *ir.Load:
		if x.Type().Kind != ir.KindPointer {
			return nil
		}
		in, ok := res[x.Ptr]
		if !ok || in.Kind != Argument {
			return nil
		}
		res[x] = Info{Kind: Argument, Base: in.Base, Offset: in.Offset, Indirect: true}
	}
	return nil
}

// ReturnsUnknown reports, for every block ending in a pointer-typed
// Ret whose classification is Unknown (or absent from res), the
// offending Ret instruction for the caller's diagnostic.
func ReturnsUnknown(fn *ir.Function, res Result) []*ir.Ret {
	var bad []*ir.Ret
	for _, bb := range fn.Blocks {
		ret, ok := bb.Terminator().(*ir.Ret)
		if !ok || ret.Val == nil || ret.Val.Type().Kind != ir.KindPointer {
			continue
		}
		if _, ok := res[ret.Val]; !ok {
			bad = append(bad, ret)
		}
	}
	return bad
}
