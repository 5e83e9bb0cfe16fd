// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package converge implements Converge: it equalizes map-op and
// packet-access shapes across control-flow joins so that mem2req's
// successor, Optimise-Requests, always sees a single canonical access
// per join point.
package converge

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/apidecode"
	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// mapOpTypeNOP is the map_op "type" argument value a dummy access
// carries: the sixth member of the public Type enum (READ=0, INSERT=1,
// UPDATE=2, WRITE=3, REMOVE=4, NOP=5). Result.Dummy lists the calls
// Run inserted; no later pass reads it, and Optimise-Requests, which
// only merges packet reads and writes, never rewrites a map_op call.
const mapOpTypeNOP = 5

// Result records what Run changed in a function: which calls it
// inserted as no-effect placeholders, and the access-type selector PHI
// it introduced at each converged join.
type Result struct {
	Dummy    map[*ir.Call]bool
	Selector map[*ir.BasicBlock][]*ir.Phi
}

func newResult() *Result {
	return &Result{Dummy: map[*ir.Call]bool{}, Selector: map[*ir.BasicBlock][]*ir.Phi{}}
}

// Run walks every join in fn (a block with more than one predecessor)
// and, for each of the two convergence-eligible categories (packet
// accesses; nanotube_map_op accesses), inserts a dummy access into
// every predecessor that lacks one so all predecessors contribute a
// call with the same shape.
func Run(fn *ir.Function) (*Result, error) {
	res := newResult()
	preds := fn.Predecessors()
	var buf *ir.Alloca
	dummyBuf := func() *ir.Alloca {
		if buf == nil {
			entry := fn.Entry()
			b := ir.NewBuilder(entry)
			buf = b.Alloca(ir.I8, nil)
			entry.Remove(buf)
			entry.Prepend(buf)
		}
		return buf
	}
	for _, bb := range fn.Blocks {
		ps := preds[bb]
		if len(ps) < 2 {
			continue
		}
		if err := convergeCategory(fn, bb, ps, res, dummyBuf, true); err != nil {
			return nil, err
		}
		if err := convergeCategory(fn, bb, ps, res, dummyBuf, false); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// trailingAccess returns the instruction immediately before bb's
// terminator, if it is a call to a packet or map access intrinsic.
func trailingAccess(bb *ir.BasicBlock) (*ir.Call, intrinsics.ID) {
	if len(bb.Instrs) < 2 {
		return nil, intrinsics.None
	}
	call, ok := bb.Instrs[len(bb.Instrs)-2].(*ir.Call)
	if !ok {
		return nil, intrinsics.None
	}
	id := intrinsics.GetIntrinsic(call)
	if id.IsPacketAccess() || id == intrinsics.MapOp {
		return call, id
	}
	return nil, intrinsics.None
}

// convergeCategory equalizes either packet accesses (packet=true) or
// nanotube_map_op accesses (packet=false) across bb's incoming edges.
// It is a no-op if no predecessor has an access of the category.
func convergeCategory(fn *ir.Function, bb *ir.BasicBlock, preds []*ir.BasicBlock, res *Result, dummyBuf func() *ir.Alloca, packet bool) error {
	calls := make([]*ir.Call, len(preds))
	var anchor *ir.Call
	var canonical intrinsics.ID
	for i, p := range preds {
		call, id := trailingAccess(p)
		if call == nil {
			continue
		}
		isMatch := id.IsPacketAccess() == packet && (packet || id == intrinsics.MapOp)
		if !isMatch {
			continue
		}
		calls[i] = call
		if anchor == nil {
			anchor, canonical = call, id
		}
	}
	if anchor == nil {
		return nil
	}
	dec, err := apidecode.Decode(anchor)
	if err != nil {
		return fmt.Errorf("converge: %w", err)
	}
	for i, p := range preds {
		if calls[i] != nil {
			continue
		}
		dummy, err := synthesizeDummy(fn, p, canonical, dec, dummyBuf())
		if err != nil {
			return err
		}
		res.Dummy[dummy] = true
	}
	phi := addSelector(bb, preds, canonical)
	res.Selector[bb] = append(res.Selector[bb], phi)
	return nil
}

// addSelector introduces the single PHI that carries the converged
// access-type tag on every incoming edge.
func addSelector(bb *ir.BasicBlock, preds []*ir.BasicBlock, id intrinsics.ID) *ir.Phi {
	b := ir.NewBuilder(bb)
	phi := b.Phi(ir.I32)
	bb.Remove(phi)
	bb.Prepend(phi)
	for _, p := range preds {
		phi.AddIncoming(ir.Int(ir.I32, int64(id)), p)
	}
	return phi
}

// synthesizeDummy builds a no-effect call to id at the end of pred
// (just before its terminator), reusing the anchor access's context,
// packet and map-id operands, a shared one-byte scratch buffer for
// every data/key/mask role and zero lengths, so the call has the canonical shape but
// touches nothing, so inserting it preserves program semantics.
func synthesizeDummy(fn *ir.Function, pred *ir.BasicBlock, id intrinsics.ID, dec *apidecode.Call, buf *ir.Alloca) (*ir.Call, error) {
	desc := intrinsics.Lookup(id)
	if desc == nil {
		return nil, fmt.Errorf("converge: intrinsic %s has no call contract", id)
	}
	args := make([]ir.Value, len(desc.Args))
	for i, a := range desc.Args {
		switch a.Role {
		case intrinsics.RolePacket, intrinsics.RoleContext, intrinsics.RoleMapID:
			v, ok := dec.Arg(a.Role)
			if !ok {
				return nil, fmt.Errorf("converge: anchor access has no %s argument", apidecode.CanonicalArgName(id, a.Role))
			}
			args[i] = v
		case intrinsics.RoleType:
			args[i] = ir.Int(ir.I32, mapOpTypeNOP)
		case intrinsics.RoleDataIn, intrinsics.RoleDataOut, intrinsics.RoleKey, intrinsics.RoleMask:
			args[i] = buf
		default:
			args[i] = ir.Int(ir.I64, 0)
		}
	}
	callee := intrinsics.Declare(fn.Module, id)
	b := ir.NewBuilder(pred)
	call := b.Call(callee.Ty.Ret, callee, args...)
	pred.Remove(call)
	pred.InsertBefore(pred.Terminator(), call)
	return call, nil
}
