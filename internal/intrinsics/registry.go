// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package intrinsics

import (
	"strings"

	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// GetIntrinsic classifies a call instruction, matching the called
// function against the exact Nanotube symbol table first and falling
// back to LLVM's dotted intrinsic-name convention. Calls to
// ordinary, non-intrinsic functions return None.
func GetIntrinsic(call *ir.Call) ID {
	fn, ok := call.Callee.(*ir.Function)
	if !ok {
		return None
	}
	if d := LookupSymbol(fn.Name); d != nil {
		return d.ID
	}
	return classifyLLVM(fn.Name)
}

// classifyLLVM recognizes the handful of LLVM intrinsics the core cares
// about by prefix, since LLVM mangles type and width into the tail of
// the name (e.g. "llvm.memcpy.p0i8.p0i8.i64").
func classifyLLVM(name string) ID {
	switch {
	case !strings.HasPrefix(name, "llvm."):
		return None
	case strings.HasPrefix(name, "llvm.bswap."):
		return LLVMBswap
	case strings.HasPrefix(name, "llvm.dbg.declare"):
		return LLVMDbgDeclare
	case strings.HasPrefix(name, "llvm.dbg.value"):
		return LLVMDbgValue
	case strings.HasPrefix(name, "llvm.lifetime.start"):
		return LLVMLifetimeStart
	case strings.HasPrefix(name, "llvm.lifetime.end"):
		return LLVMLifetimeEnd
	case strings.HasPrefix(name, "llvm.memset."):
		return LLVMMemset
	case strings.HasPrefix(name, "llvm.memcpy.") || strings.HasPrefix(name, "llvm.memmove."):
		return LLVMMemcpy
	case strings.HasPrefix(name, "llvm.memcmp.") || strings.HasPrefix(name, "llvm.bcmp."):
		return LLVMMemcmp
	case strings.HasPrefix(name, "llvm.stacksave"):
		return LLVMStacksave
	case strings.HasPrefix(name, "llvm.stackrestore"):
		return LLVMStackrestore
	default:
		return LLVMUnknown
	}
}

// IntrinsicToString renders an ID the way diagnostics do.
func IntrinsicToString(id ID) string { return id.String() }

// IntrinsicIsNop reports whether id has no runtime effect.
func IntrinsicIsNop(id ID) bool { return id.IsNop() }

// ArgModRef returns the modify/reference pattern of argument argIndex
// of id's call contract. Arguments beyond the table (e.g. llvm.memcpy's
// trailing "isvolatile" flag) and intrinsics with no table row report
// NoModRef.
func ArgModRef(id ID, argIndex int) ModRef {
	d := Lookup(id)
	if d == nil || argIndex < 0 || argIndex >= len(d.Args) {
		return NoModRef
	}
	a := d.Args[argIndex]
	if a.ModRef != NoModRef {
		return a.ModRef
	}
	return defaultModRef(a.Role)
}

// defaultModRef gives every role a sensible mod/ref pattern so table.go
// only needs to override the roles where the intrinsic departs from it
// (e.g. a buffer that is only ever written, never read).
func defaultModRef(role ArgRole) ModRef {
	switch role {
	case RoleDataOut, RoleInfoArea:
		return MustMod
	case RoleDataIn, RoleKey:
		return MustRef
	case RoleChannelHandle, RoleMapHandle, RolePacket:
		return MustRef
	default:
		return NoModRef
	}
}

// FnMemRefBehavior returns the whole-call memory summary for id. Plain
// LLVM intrinsics and unrecognized calls are treated conservatively.
func FnMemRefBehavior(id ID) FMRB {
	d := Lookup(id)
	if d == nil {
		switch id {
		case LLVMBswap, LLVMStacksave, LLVMStackrestore:
			return DoesNotAccess
		case LLVMDbgDeclare, LLVMDbgValue, LLVMLifetimeStart, LLVMLifetimeEnd:
			return OnlyAccessesArgumentPointees
		case LLVMMemset, LLVMMemcpy, LLVMMemcmp:
			return OnlyAccessesArgumentPointees
		default:
			return UnknownFMRB
		}
	}
	return d.FMRB
}

// SizeArg returns the argument index and unit that encodes the accessed
// length of argument argIndex, if the table records one (used by the
// alias helper to turn a byte/bit count into a concrete range).
func SizeArg(id ID, argIndex int) (link SizeLink, ok bool) {
	d := Lookup(id)
	if d == nil || argIndex < 0 || argIndex >= len(d.Args) {
		return SizeLink{}, false
	}
	s := d.Args[argIndex].Size
	if s == nil {
		return SizeLink{}, false
	}
	return *s, true
}

// ArgRoleOf returns the role of argument argIndex of id's call contract.
func ArgRoleOf(id ID, argIndex int) ArgRole {
	d := Lookup(id)
	if d == nil || argIndex < 0 || argIndex >= len(d.Args) {
		return RoleNone
	}
	return d.Args[argIndex].Role
}
