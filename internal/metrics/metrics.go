// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package metrics computes the per-kernel diagnostic numbers:
// total instruction weight, the data-flow critical path, and the
// weighted and unweighted CFG critical paths. The output is purely
// observational; nothing downstream consumes it.
package metrics

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/Xilinx/nanotube-sub001/internal/util"
)

// Report is one kernel function's numbers.
type Report struct {
	Function string

	// TotalWeight is the summed weight of every instruction.
	TotalWeight uint

	// DataFlowCriticalPath is the heaviest def-use chain: the earliest
	// cycle the latest-ready value could be available with unlimited
	// parallelism.
	DataFlowCriticalPath uint

	// CFGCriticalPath is the heaviest entry-to-exit block path by
	// summed block weight.
	CFGCriticalPath uint

	// CFGLongestPath is the longest entry-to-exit path counted in
	// basic blocks.
	CFGLongestPath uint
}

func (r *Report) String() string {
	return fmt.Sprintf("%s: weight=%d dataflow-critical-path=%d cfg-critical-path=%d cfg-longest-path=%d",
		r.Function, r.TotalWeight, r.DataFlowCriticalPath, r.CFGCriticalPath, r.CFGLongestPath)
}

// InstructionWeight is the per-opcode cost model: allocas, casts and
// all-zero-index GEPs melt away during lowering, debug and lifetime
// intrinsics are free, everything else costs one.
func InstructionWeight(insn ir.Instruction) uint {
	switch x := insn.(type) {
	case *ir.Alloca, *ir.Cast, *ir.BitCast:
		return 0
	case *ir.GetElementPtr:
		for _, idx := range x.Indices {
			c, ok := idx.(*ir.ConstInt)
			if !ok || c.Val != 0 {
				return 1
			}
		}
		return 0
	case *ir.Call:
		if intrinsics.GetIntrinsic(x).IsNop() {
			return 0
		}
	}
	return 1
}

func blockWeight(bb *ir.BasicBlock) uint {
	var sum uint
	for _, insn := range bb.Instrs {
		sum += InstructionWeight(insn)
	}
	return sum
}

// Analyze computes fn's report. The function is expected to be
// loop-free (the pipeline runs this after HLS validation); a cyclic
// CFG yields the numbers for its acyclic skeleton.
func Analyze(fn *ir.Function) *Report {
	r := &Report{Function: fn.Name}
	rpo := fn.ReversePostOrder()

	for _, bb := range rpo {
		r.TotalWeight += blockWeight(bb)
	}

	r.DataFlowCriticalPath = dataFlowCriticalPath(rpo)
	r.CFGCriticalPath = cfgPath(fn, rpo, blockWeight)
	r.CFGLongestPath = cfgPath(fn, rpo, func(*ir.BasicBlock) uint { return 1 })
	return r
}

// dataFlowCriticalPath schedules every instruction as early as its
// operands allow and reports the latest completion time. Operands that
// are arguments, constants or defined in a block not yet visited (a
// PHI back reference) are ready at time zero.
func dataFlowCriticalPath(rpo []*ir.BasicBlock) uint {
	ready := make(map[ir.Value]uint)
	var latest uint
	for _, bb := range rpo {
		for _, insn := range bb.Instrs {
			var max uint
			for _, op := range insn.Operands() {
				if t, ok := ready[op]; ok {
					max = util.Max(max, t)
				}
			}
			done := max + InstructionWeight(insn)
			ready[insn] = done
			latest = util.Max(latest, done)
		}
	}
	return latest
}

// cfgPath relaxes block arrival times over the reverse postorder and
// returns the heaviest arrival at any exit block, with weight giving
// each block's cost.
func cfgPath(fn *ir.Function, rpo []*ir.BasicBlock, weight func(*ir.BasicBlock) uint) uint {
	arrival := make(map[*ir.BasicBlock]uint, len(rpo))
	var heaviest uint
	for _, bb := range rpo {
		w := arrival[bb] + weight(bb)
		if len(bb.Successors()) == 0 {
			heaviest = util.Max(heaviest, w)
			continue
		}
		for _, succ := range bb.Successors() {
			arrival[succ] = util.Max(arrival[succ], w)
		}
	}
	return heaviest
}
