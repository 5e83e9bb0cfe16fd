// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package ptr

import (
	"github.com/Xilinx/nanotube-sub001/internal/apidecode"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// CompactGEPs folds every chain of constant-index GEPs (seen through
// bitcasts) into a single byte-indexed GEP off the chain's root, so
// classification never has to walk multi-hop chains. GEPs with a
// non-constant index are left alone here; Analyze rejects them later
// with its own diagnostic. Returns the number of GEPs rewritten.
func CompactGEPs(fn *ir.Function) int {
	compacted := 0
	for _, bb := range fn.Blocks {
		for _, insn := range bb.Instrs {
			gep, ok := insn.(*ir.GetElementPtr)
			if !ok {
				continue
			}
			total, err := apidecode.GEPConstantOffset(gep)
			if err != nil {
				continue
			}
			root := gep.Ptr
			hops := 0
		walk:
			for {
				switch x := root.(type) {
				case *ir.BitCast:
					root = x.Val
					hops++
				case *ir.GetElementPtr:
					off, err := apidecode.GEPConstantOffset(x)
					if err != nil {
						break walk
					}
					total += off
					root = x.Ptr
					hops++
				default:
					break walk
				}
			}
			if hops == 0 {
				continue
			}
			// Rewrite in place; intermediate chain links keep their own
			// uses and fall dead naturally if this was the only one.
			gep.PointeeType = ir.I8
			gep.Ptr = root
			gep.Indices = []ir.Value{ir.Int(ir.I64, total)}
			compacted++
		}
	}
	return compacted
}
