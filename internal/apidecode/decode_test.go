// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package apidecode

import (
	"testing"

	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstStringFromDirectGlobal(t *testing.T) {
	m := ir.NewModule("t")
	g := m.NewGlobalString("chan_a", "chan_a")

	s, err := ConstString(g)
	require.NoError(t, err)
	assert.Equal(t, "chan_a", s)
}

func TestConstStringThroughBitcastAndGEP(t *testing.T) {
	m := ir.NewModule("t")
	g := m.NewGlobalString(".str", "hello")

	fn := m.NewFunction("f", ir.FuncTy(ir.VoidTy()))
	bb := fn.NewBlock("entry")
	b := ir.NewBuilder(bb)
	gep := b.GEP(g.Ty, g, ir.Int(ir.I64, 0), ir.Int(ir.I64, 0))
	cast := b.BitCast(gep, ir.PointerTy(ir.I8))

	s, err := ConstString(cast)
	require.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestConstStringNotNulTerminated(t *testing.T) {
	m := ir.NewModule("t")
	g := &ir.GlobalVariable{Name: "raw", Ty: ir.ArrayTy(ir.I8, 3), IsString: true, StringData: []byte{'a', 'b', 'c'}}
	m.Globals = append(m.Globals, g)

	_, err := ConstString(g)
	assert.ErrorContains(t, err, "not NUL-terminated")
}

func TestConstStringOutOfBounds(t *testing.T) {
	m := ir.NewModule("t")
	g := m.NewGlobalString(".str", "hi")
	fn := m.NewFunction("f", ir.FuncTy(ir.VoidTy()))
	bb := fn.NewBlock("entry")
	b := ir.NewBuilder(bb)
	gep := b.GEP(g.Ty, g, ir.Int(ir.I64, 0), ir.Int(ir.I64, 100))

	_, err := ConstString(gep)
	assert.ErrorContains(t, err, "out of bounds")
}

func TestConstFunctionThroughBitcast(t *testing.T) {
	m := ir.NewModule("t")
	target := m.NewFunction("kernel_fn", ir.FuncTy(ir.I32, ir.PointerTy(ir.I8)))
	fn := m.NewFunction("f", ir.FuncTy(ir.VoidTy()))
	bb := fn.NewBlock("entry")
	b := ir.NewBuilder(bb)
	cast := b.BitCast(target, ir.PointerTy(ir.I8))

	got, err := ConstFunction(cast)
	require.NoError(t, err)
	assert.Same(t, target, got)
}

func TestConstIntRejectsNonConstant(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunction("f", ir.FuncTy(ir.VoidTy(), ir.I32))
	bb := fn.NewBlock("entry")
	b := ir.NewBuilder(bb)
	load := b.Load(ir.I32, ir.Int(ir.PointerTy(ir.I32), 0))
	_ = load

	_, err := ConstInt(fn.Params[0])
	assert.Error(t, err)
}

func TestDecodeValidatesArgumentCount(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunction("nanotube_context_create", ir.FuncTy(ir.PointerTy(ir.I8), ir.I32))
	bb := fn.NewBlock("entry")
	b := ir.NewBuilder(bb)
	call := b.Call(ir.PointerTy(ir.I8), fn, ir.Int(ir.I32, 1))

	_, err := Decode(call)
	assert.ErrorContains(t, err, "expected 0")
}

func TestDecodeStringArg(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunction("nanotube_channel_create", ir.FuncTy(ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.I64, ir.I64))
	g := m.NewGlobalString(".str", "my_channel")
	bb := fn.NewBlock("entry")
	b := ir.NewBuilder(bb)
	call := b.Call(ir.PointerTy(ir.I8), fn, g, ir.Int(ir.I64, 64), ir.Int(ir.I64, 16))

	decoded, err := Decode(call)
	require.NoError(t, err)
	assert.Equal(t, intrinsics.ChannelCreate, decoded.ID)

	name, err := decoded.StringArg(intrinsics.RoleNameString)
	require.NoError(t, err)
	assert.Equal(t, "my_channel", name)

	elemSize, err := decoded.IntArg(intrinsics.RoleLength)
	require.NoError(t, err)
	assert.Equal(t, int64(64), elemSize)
}

func TestCanonicalArgName(t *testing.T) {
	assert.Equal(t, "context", CanonicalArgName(intrinsics.ChannelRead, intrinsics.RoleContext))
	assert.Contains(t, CanonicalArgName(intrinsics.None, intrinsics.RoleNone), "arg(")
}
