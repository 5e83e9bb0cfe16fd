// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package metrics

import (
	"testing"

	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionWeights(t *testing.T) {
	m := ir.NewModule("t")
	dbg := m.NewFunction("llvm.dbg.value", ir.FuncTy(ir.VoidTy()))
	fn := m.NewFunction("f", ir.FuncTy(ir.I32, ir.PointerTy(ir.I8)))
	entry := fn.NewBlock("entry")
	b := ir.NewBuilder(entry)

	buf := b.Alloca(ir.I32, nil)
	assert.Zero(t, InstructionWeight(buf))

	cast := b.BitCast(buf, ir.PointerTy(ir.I8))
	assert.Zero(t, InstructionWeight(cast))

	zeroGEP := b.GEP(ir.I8, cast, ir.Int(ir.I64, 0))
	assert.Zero(t, InstructionWeight(zeroGEP))

	realGEP := b.GEP(ir.I8, cast, ir.Int(ir.I64, 4))
	assert.Equal(t, uint(1), InstructionWeight(realGEP))

	dbgCall := b.Call(ir.VoidTy(), dbg)
	assert.Zero(t, InstructionWeight(dbgCall))

	ld := b.Load(ir.I32, buf)
	assert.Equal(t, uint(1), InstructionWeight(ld))
}

// A chain a->b->c plus an independent instruction: the critical path is
// the chain, the total weight counts everything.
func TestAnalyzeDataFlowPath(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunction("f", ir.FuncTy(ir.I32, ir.I32))
	entry := fn.NewBlock("entry")
	b := ir.NewBuilder(entry)

	a := b.BinOp(ir.Add, fn.Params[0], ir.Int(ir.I32, 1))
	bb := b.BinOp(ir.Mul, a, ir.Int(ir.I32, 3))
	c := b.BinOp(ir.Sub, bb, ir.Int(ir.I32, 2))
	b.BinOp(ir.Xor, fn.Params[0], ir.Int(ir.I32, 5)) // independent
	b.Ret(c)

	r := Analyze(fn)
	assert.Equal(t, uint(5), r.TotalWeight) // 4 binops + ret
	assert.Equal(t, uint(4), r.DataFlowCriticalPath)
	assert.Equal(t, uint(5), r.CFGCriticalPath)
	assert.Equal(t, uint(1), r.CFGLongestPath)
}

func TestAnalyzeCFGPaths(t *testing.T) {
	m := ir.NewModule("t")
	fn := m.NewFunction("f", ir.FuncTy(ir.I32, ir.I1))
	entry := fn.NewBlock("entry")
	heavy := fn.NewBlock("heavy")
	light := fn.NewBlock("light")
	exit := fn.NewBlock("exit")

	eb := ir.NewBuilder(entry)
	eb.CondBr(fn.Params[0], heavy, light)

	hb := ir.NewBuilder(heavy)
	v := hb.BinOp(ir.Add, ir.Int(ir.I32, 1), ir.Int(ir.I32, 2))
	v = hb.BinOp(ir.Add, v, ir.Int(ir.I32, 3))
	v = hb.BinOp(ir.Add, v, ir.Int(ir.I32, 4))
	hb.Br(exit)

	lb := ir.NewBuilder(light)
	lb.Br(exit)

	xb := ir.NewBuilder(exit)
	xb.Ret(ir.Int(ir.I32, 0))

	r := Analyze(fn)
	// entry(1) + heavy(3+1) + exit(1).
	assert.Equal(t, uint(6), r.CFGCriticalPath)
	assert.Equal(t, uint(3), r.CFGLongestPath)
}

func TestExporterPublishesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := NewExporter(reg)
	e.Observe(&Report{
		Function:             "k0",
		TotalWeight:          12,
		DataFlowCriticalPath: 5,
		CFGCriticalPath:      7,
		CFGLongestPath:       3,
	})

	require.Equal(t, float64(12),
		testutil.ToFloat64(e.totalWeight.WithLabelValues("k0")))
	require.Equal(t, float64(5),
		testutil.ToFloat64(e.dataFlowPath.WithLabelValues("k0")))
}
