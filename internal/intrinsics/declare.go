// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package intrinsics

import "github.com/Xilinx/nanotube-sub001/internal/ir"

// Declare returns the module-level declaration for id's call contract,
// creating it as an external declaration (the Nanotube API entry points
// are never given bodies, only called) the first time a pass
// needs to synthesize a fresh call to it. Repeated calls for the same
// id return the same *ir.Function.
func Declare(m *ir.Module, id ID) *ir.Function {
	d := Lookup(id)
	symbol := id.String()
	if d != nil {
		symbol = d.Symbol
	}
	if fn := m.FindFunction(symbol); fn != nil {
		return fn
	}
	var params []*ir.Type
	if d != nil {
		for _, a := range d.Args {
			params = append(params, argType(a.Role))
		}
	}
	return m.NewFunction(symbol, ir.FuncTy(retType(id), params...))
}

// argType gives every argument role the type a synthesized call needs;
// it is approximate (an opaque i8* for anything handle- or buffer-
// shaped) since the passes that call Declare never inspect the
// declaration's formal types, only its identity.
func argType(role ArgRole) *ir.Type {
	switch role {
	case RoleContext, RoleChannelHandle, RoleMapHandle, RolePacket,
		RoleDataIn, RoleDataOut, RoleMask, RoleKey, RoleInfoArea,
		RoleNameString, RoleFunctionPtr:
		return ir.PointerTy(ir.I8)
	default:
		return ir.I64
	}
}

// retType gives id's synthesized declaration the return type its real
// ABI signature has, so callers that consume the result (bytes
// processed, a looked-up pointer, a success flag) see the right type.
func retType(id ID) *ir.Type {
	switch id {
	case PacketRead, PacketWrite, PacketWriteMasked, MapOp, MapRead,
		MapWrite, MapInsert, MapUpdate, MapRemove, MapProcessCapsule,
		GetTimeNs, PacketBoundedLength:
		return ir.I64
	case ChannelTryRead, PacketResize, PacketIsEOP, PacketGetPort, MapGetID:
		return ir.I32
	case MapLookup, ContextCreate, ChannelCreate, ThreadCreate, MapCreate:
		return ir.PointerTy(ir.I8)
	default:
		return ir.VoidTy()
	}
}
