// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package alias is the alias-analysis helper: given a call and an
// argument index, it computes the precise (or safely over-approximated)
// byte range accessed through that argument, using the intrinsic
// registry's size-argument links and bounded constant propagation
// through PHI joins.
package alias

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// ByteRange is the accessed range through one argument, relative to
// that argument's own base pointer. Precise is false when the range is
// a safe upper bound rather than an exact value (e.g. a PHI of several
// distinct constant sizes) -- callers must never treat an imprecise
// range as tighter than what it reports.
type ByteRange struct {
	Offset  int64
	Length  int64
	Precise bool
}

// MemoryLocation computes the byte range accessed through argument
// argIndex of call. It never under-approximates: any access
// through the argument lies within [Offset, Offset+Length).
func MemoryLocation(call *ir.Call, argIndex int) (ByteRange, error) {
	id := intrinsics.GetIntrinsic(call)
	link, ok := intrinsics.SizeArg(id, argIndex)
	if !ok {
		return ByteRange{}, fmt.Errorf("intrinsic %s argument %d carries no size-argument link", id, argIndex)
	}
	if link.ArgIndex < 0 || link.ArgIndex >= len(call.Args) {
		return ByteRange{}, fmt.Errorf("intrinsic %s size argument index %d out of range", id, link.ArgIndex)
	}
	length, precise, err := evalMaxConst(call.Args[link.ArgIndex])
	if err != nil {
		return ByteRange{}, fmt.Errorf("call to %s: %w", id, err)
	}
	if link.Unit == intrinsics.SizeBits {
		length = (length + 7) / 8
	}
	return ByteRange{Offset: 0, Length: length, Precise: precise}, nil
}

// evalMaxConst recursively evaluates the maximum possible value of v,
// which must be a constant, a cast of a constant, or a PHI whose
// incoming values are each constant or undef. precise is false once a
// PHI join has more than one distinct constant incoming value.
func evalMaxConst(v ir.Value) (value int64, precise bool, err error) {
	switch x := v.(type) {
	case *ir.ConstInt:
		return x.Val, true, nil
	case *ir.Cast:
		return evalMaxConst(x.Val)
	case *ir.Phi:
		return evalMaxConstPhi(x)
	default:
		return 0, false, fmt.Errorf("value %s is not a compile-time-bounded size", v.Ident())
	}
}

func evalMaxConstPhi(phi *ir.Phi) (int64, bool, error) {
	var (
		max       int64
		have      bool
		sawDiffer bool
	)
	for _, in := range phi.Incoming {
		if _, isUndef := in.Val.(*ir.Undef); isUndef {
			continue
		}
		n, _, err := evalMaxConst(in.Val)
		if err != nil {
			return 0, false, fmt.Errorf("phi %s: incoming value is not constant or undef: %w", phi.Ident(), err)
		}
		if !have {
			max, have = n, true
		} else if n != max {
			sawDiffer = true
			if n > max {
				max = n
			}
		}
	}
	if !have {
		return 0, false, fmt.Errorf("phi %s has no constant incoming value", phi.Ident())
	}
	return max, !sawDiffer, nil
}
