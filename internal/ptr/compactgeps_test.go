// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package ptr

import (
	"testing"

	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactGEPsFoldsChains(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunction("k", ir.FuncTy(ir.I32, ir.PointerTy(ir.I8), ir.PointerTy(ir.I8)))
	entry := fn.NewBlock("entry")
	b := ir.NewBuilder(entry)

	packet := fn.Params[1]
	g1 := b.GEP(ir.I8, packet, ir.Int(ir.I64, 8))
	bc := b.BitCast(g1, ir.PointerTy(ir.I16))
	g2 := b.GEP(ir.I16, bc, ir.Int(ir.I64, 3)) // 8 + 3*2 = 14 bytes
	ld := b.Load(ir.I16, g2)
	_ = ld
	b.Ret(ir.Int(ir.I32, 0))

	n := CompactGEPs(fn)
	assert.Equal(t, 1, n)
	assert.Equal(t, ir.Value(packet), g2.Ptr)
	require.Len(t, g2.Indices, 1)
	assert.Equal(t, int64(14), g2.Indices[0].(*ir.ConstInt).Val)

	// Classification now sees the folded chain directly.
	res, err := Analyze(fn)
	require.NoError(t, err)
	info := res[g2]
	assert.Equal(t, Argument, info.Kind)
	assert.Equal(t, int64(14), info.Offset)

	// Idempotent: a second run finds nothing left to fold.
	assert.Zero(t, CompactGEPs(fn))
}

func TestCompactGEPsLeavesVariableIndexAlone(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunction("k", ir.FuncTy(ir.I32, ir.PointerTy(ir.I8), ir.I64))
	entry := fn.NewBlock("entry")
	b := ir.NewBuilder(entry)

	base := b.GEP(ir.I8, fn.Params[0], ir.Int(ir.I64, 4))
	vgep := b.GEP(ir.I8, base, fn.Params[1])
	_ = vgep
	b.Ret(ir.Int(ir.I32, 0))

	assert.Zero(t, CompactGEPs(fn))
	assert.Equal(t, ir.Value(base), vgep.Ptr)
}
