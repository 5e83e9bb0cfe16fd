// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package mem2req

import (
	"testing"

	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildKernel returns a single-block kernel with a context and packet
// parameter, ready for a test to append loads/stores against.
func buildKernel(t *testing.T) (*ir.Module, *ir.Function, *ir.BasicBlock) {
	t.Helper()
	m := ir.NewModule("t")
	fn := m.NewFunction("kernel", ir.FuncTy(ir.I32, ir.PointerTy(ir.I8), ir.PointerTy(ir.I8)))
	entry := fn.NewBlock("entry")
	return m, fn, entry
}

func TestRunLowersPacketLoad(t *testing.T) {
	_, fn, entry := buildKernel(t)
	packetArg := fn.Params[1]

	b := ir.NewBuilder(entry)
	gep := b.GEP(ir.I8, packetArg, ir.Int(ir.I64, 10))
	ld := b.Load(ir.I32, gep)
	b.Ret(ld)

	res, err := Run(fn, packetArg)
	require.NoError(t, err)
	require.Len(t, res.Inserted, 1)
	assert.Equal(t, intrinsics.PacketRead, intrinsics.GetIntrinsic(res.Inserted[0]))

	for _, insn := range entry.Instrs {
		if call, ok := insn.(*ir.Call); ok {
			assert.NotEqual(t, intrinsics.None, intrinsics.GetIntrinsic(call))
		}
		if _, ok := insn.(*ir.GetElementPtr); ok {
			t.Fatalf("original GEP-rooted load should have been removed")
		}
	}
}

func TestRunLowersPacketStore(t *testing.T) {
	_, fn, entry := buildKernel(t)
	packetArg := fn.Params[1]

	b := ir.NewBuilder(entry)
	gep := b.GEP(ir.I8, packetArg, ir.Int(ir.I64, 4))
	b.Store(ir.Int(ir.I32, 7), gep)
	b.Ret(nil)

	res, err := Run(fn, packetArg)
	require.NoError(t, err)
	require.Len(t, res.Inserted, 1)
	assert.Equal(t, intrinsics.PacketWriteMasked, intrinsics.GetIntrinsic(res.Inserted[0]))
}

func TestRunLeavesStackAccessesAlone(t *testing.T) {
	_, fn, entry := buildKernel(t)
	packetArg := fn.Params[1]

	b := ir.NewBuilder(entry)
	local := b.Alloca(ir.I32, nil)
	b.Store(ir.Int(ir.I32, 1), local)
	ld := b.Load(ir.I32, local)
	b.Ret(ld)

	res, err := Run(fn, packetArg)
	require.NoError(t, err)
	assert.Empty(t, res.Inserted)
}

func TestRunLowersMemcpyFromPacketToLocal(t *testing.T) {
	_, fn, entry := buildKernel(t)
	packetArg := fn.Params[1]

	memcpy := fn.Module.NewFunction("llvm.memcpy.p0i8.p0i8.i64",
		ir.FuncTy(ir.VoidTy(), ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.I64))

	b := ir.NewBuilder(entry)
	local := b.Alloca(ir.ArrayTy(ir.I8, 8), nil)
	src := b.GEP(ir.I8, packetArg, ir.Int(ir.I64, 0))
	b.Call(ir.VoidTy(), memcpy, local, src, ir.Int(ir.I64, 8))
	b.Ret(nil)

	res, err := Run(fn, packetArg)
	require.NoError(t, err)
	require.Len(t, res.Inserted, 1)
	assert.Equal(t, intrinsics.PacketRead, intrinsics.GetIntrinsic(res.Inserted[0]))
}

// buildPhiSizeMemcpy routes a packet-to-local memcpy's size operand
// through a PHI across a diamond.
func buildPhiSizeMemcpy(t *testing.T, sizeA, sizeB int64) (*ir.Function, *ir.Argument) {
	t.Helper()
	m := ir.NewModule("t")
	memcpy := m.NewFunction("llvm.memcpy.p0i8.p0i8.i64",
		ir.FuncTy(ir.VoidTy(), ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.I64))
	fn := m.NewFunction("kernel", ir.FuncTy(ir.I32, ir.PointerTy(ir.I8), ir.PointerTy(ir.I8)))
	packetArg := fn.Params[1]
	entry := fn.NewBlock("entry")
	aBB := fn.NewBlock("a")
	bBB := fn.NewBlock("b")
	join := fn.NewBlock("join")

	ir.NewBuilder(entry).CondBr(ir.Int(ir.I1, 1), aBB, bBB)
	ir.NewBuilder(aBB).Br(join)
	ir.NewBuilder(bBB).Br(join)

	jb := ir.NewBuilder(join)
	phiSize := jb.Phi(ir.I64)
	phiSize.AddIncoming(ir.Int(ir.I64, sizeA), aBB)
	phiSize.AddIncoming(ir.Int(ir.I64, sizeB), bBB)
	local := jb.Alloca(ir.ArrayTy(ir.I8, 16), nil)
	src := jb.GEP(ir.I8, packetArg, ir.Int(ir.I64, 0))
	jb.Call(ir.VoidTy(), memcpy, local, src, phiSize)
	jb.Ret(ir.Int(ir.I32, 0))
	return fn, packetArg
}

// A PHI join of identical constant sizes is exact and the memcpy
// lowers; distinct constants give only a bound and must be rejected.
func TestRunMemcpySizeThroughPhiJoin(t *testing.T) {
	fn, packetArg := buildPhiSizeMemcpy(t, 8, 8)
	res, err := Run(fn, packetArg)
	require.NoError(t, err)
	require.Len(t, res.Inserted, 1)
	assert.Equal(t, intrinsics.PacketRead, intrinsics.GetIntrinsic(res.Inserted[0]))

	fn, packetArg = buildPhiSizeMemcpy(t, 8, 12)
	_, err = Run(fn, packetArg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bounded, not exact")
}
