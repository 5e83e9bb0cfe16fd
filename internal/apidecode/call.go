// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package apidecode

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// Call is a validated, field-by-field view over one recognized
// intrinsic call site.
type Call struct {
	Insn *ir.Call
	ID   intrinsics.ID
	desc *intrinsics.Descriptor
}

// Decode validates call's argument count against the intrinsic table
// and returns a Call ready for field access. Intrinsics with no table
// row (none, and llvm_* tags other than memcpy/memset/memcmp) decode
// with an empty argument contract.
func Decode(call *ir.Call) (*Call, error) {
	id := intrinsics.GetIntrinsic(call)
	desc := intrinsics.Lookup(id)
	if desc != nil && len(call.Args) != len(desc.Args) {
		return nil, fmt.Errorf("call to %s has %d arguments, expected %d",
			desc.Symbol, len(call.Args), len(desc.Args))
	}
	return &Call{Insn: call, ID: id, desc: desc}, nil
}

// roleIndex returns the index of the first argument with the given
// role, or -1 if none of the call's declared arguments has it.
func (c *Call) roleIndex(role intrinsics.ArgRole) int {
	if c.desc == nil {
		return -1
	}
	for i, a := range c.desc.Args {
		if a.Role == role {
			return i
		}
	}
	return -1
}

// Arg returns the raw operand for role, or false if the call's contract
// has no argument with that role.
func (c *Call) Arg(role intrinsics.ArgRole) (ir.Value, bool) {
	i := c.roleIndex(role)
	if i < 0 {
		return nil, false
	}
	return c.Insn.Args[i], true
}

// StringArg decodes the argument with the given role as a constant
// string (the API's cstring arguments: name, channel/map names).
func (c *Call) StringArg(role intrinsics.ArgRole) (string, error) {
	v, ok := c.Arg(role)
	if !ok {
		return "", fmt.Errorf("call to %s has no %s argument", c.symbolName(), roleName(role))
	}
	return ConstString(v)
}

// FuncArg decodes the argument with the given role as a constant
// function pointer (thread/kernel entry points).
func (c *Call) FuncArg(role intrinsics.ArgRole) (*ir.Function, error) {
	v, ok := c.Arg(role)
	if !ok {
		return nil, fmt.Errorf("call to %s has no %s argument", c.symbolName(), roleName(role))
	}
	return ConstFunction(v)
}

// IntArg decodes the argument with the given role as a constant
// integer (sizes, ids, attribute values -- everything the setup
// interpreter requires to be statically known).
func (c *Call) IntArg(role intrinsics.ArgRole) (int64, error) {
	v, ok := c.Arg(role)
	if !ok {
		return 0, fmt.Errorf("call to %s has no %s argument", c.symbolName(), roleName(role))
	}
	return ConstInt(v)
}

func (c *Call) symbolName() string {
	if c.desc != nil {
		return c.desc.Symbol
	}
	return c.ID.String()
}

// CanonicalArgName gives a decoded argument a stable, human-legible
// name for diagnostics instead of the IR's raw %argN -- the Go
// counterpart of the original back-end's parameter-renaming pass.
func CanonicalArgName(id intrinsics.ID, role intrinsics.ArgRole) string {
	if name, ok := roleNames[role]; ok {
		return name
	}
	return fmt.Sprintf("arg(%s)", id)
}

func roleName(role intrinsics.ArgRole) string {
	if name, ok := roleNames[role]; ok {
		return name
	}
	return "unknown-role"
}

var roleNames = map[intrinsics.ArgRole]string{
	intrinsics.RoleContext:        "context",
	intrinsics.RoleChannelID:      "channel_id",
	intrinsics.RoleChannelHandle:  "channel",
	intrinsics.RoleMapID:          "map_id",
	intrinsics.RoleMapHandle:      "map",
	intrinsics.RolePacket:         "packet",
	intrinsics.RoleDataIn:         "data_in",
	intrinsics.RoleDataOut:        "data_out",
	intrinsics.RoleMask:           "mask",
	intrinsics.RoleKey:            "key",
	intrinsics.RoleOffset:         "offset",
	intrinsics.RoleLength:         "length",
	intrinsics.RoleType:           "type",
	intrinsics.RoleFlags:          "flags",
	intrinsics.RoleNameString:     "name",
	intrinsics.RoleFunctionPtr:    "func",
	intrinsics.RoleInfoArea:       "info_area",
	intrinsics.RoleInfoAreaSize:   "info_area_size",
}
