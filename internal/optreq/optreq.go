// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package optreq implements Optimise-Requests: it reduces the
// number of packet-access calls mem2req produced by merging
// adjacent same-kind accesses to the same packet.
//
// Scope note (recorded in DESIGN.md): the general algorithm finds an
// insertion point at a common (post-)dominator across arbitrary control
// flow. This IR carries no dominator-tree pass, so Run groups accesses
// within a single basic block only -- a block trivially dominates and
// post-dominates every instruction inside it, which is the degenerate
// case of the general rule. Accesses separated by a block boundary are
// left as mem2req produced them.
package optreq

import (
	"fmt"
	"sort"

	"github.com/Xilinx/nanotube-sub001/internal/alias"
	"github.com/Xilinx/nanotube-sub001/internal/apidecode"
	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// aliasCacheBytes bounds the per-invocation byte-range cache; the
// engine lives exactly as long as one Run.
const aliasCacheBytes = 1 << 20

// Result records how many multi-member groups Run actually merged.
type Result struct {
	ReadGroups  int
	WriteGroups int
}

// access is one decoded packet_read/packet_write(_masked) call. seq is
// its position in the block's original program order, captured at
// decode time since later offset-sorting (for the hole heuristic)
// would otherwise lose it -- the lowering step needs program order to
// pick the right insertion point (earliest for a hoisted read group,
// latest for a sunk write group). length comes from the alias helper
// and never under-approximates; precise is cleared when it is only an
// upper bound (a PHI join of distinct constant sizes), which keeps the
// access usable for blocking but bars it from merging.
type access struct {
	insn    *ir.Call
	packet  ir.Value
	dataBuf ir.Value
	maskBuf ir.Value // nil for reads and plain (unmasked) writes
	offset  int64
	length  int64
	precise bool
	seq     int
}

// Run rewrites fn in place using policy's hole and same-key rules.
func Run(fn *ir.Function, policy *Policy) (*Result, error) {
	res := &Result{}
	eng := alias.NewEngine(aliasCacheBytes)
	for _, bb := range fn.Blocks {
		if err := runBlock(fn, bb, eng, policy, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func runBlock(fn *ir.Function, bb *ir.BasicBlock, eng *alias.Engine, policy *Policy, res *Result) error {
	reads := map[ir.Value][]*access{}
	writes := map[ir.Value][]*access{}

	flushPacket := func(v ir.Value) error {
		if err := flushReads(fn, bb, reads[v], policy, res); err != nil {
			return err
		}
		if err := flushWrites(fn, bb, writes[v], policy, res); err != nil {
			return err
		}
		delete(reads, v)
		delete(writes, v)
		return nil
	}
	flushAll := func() error {
		for v := range reads {
			if err := flushPacket(v); err != nil {
				return err
			}
		}
		for v := range writes {
			if err := flushPacket(v); err != nil {
				return err
			}
		}
		return nil
	}

	seq := 0
	for _, insn := range append([]ir.Instruction(nil), bb.Instrs...) {
		call, ok := insn.(*ir.Call)
		if !ok {
			continue
		}
		id := intrinsics.GetIntrinsic(call)
		switch id {
		case intrinsics.PacketRead:
			a, ok := decodeAccess(eng, call)
			if ok {
				a.seq = seq
				seq++
			}
			if !ok {
				if err := flushAll(); err != nil {
					return err
				}
				continue
			}
			if blocked(writes[a.packet], a) {
				if err := flushPacket(a.packet); err != nil {
					return err
				}
			}
			reads[a.packet] = append(reads[a.packet], a)

		case intrinsics.PacketWrite, intrinsics.PacketWriteMasked:
			a, ok := decodeAccess(eng, call)
			if ok {
				a.seq = seq
				seq++
			}
			if !ok {
				if err := flushAll(); err != nil {
					return err
				}
				continue
			}
			if blocked(reads[a.packet], a) {
				if err := flushPacket(a.packet); err != nil {
					return err
				}
			}
			if conflict := nonDisjointMember(writes[a.packet], a); conflict != nil {
				ok, err := policy.SameKeyMerge(true)
				if err != nil {
					return err
				}
				if !ok {
					if err := flushPacket(a.packet); err != nil {
						return err
					}
				}
			}
			writes[a.packet] = append(writes[a.packet], a)

		case intrinsics.PacketResize, intrinsics.PacketResizeIngress,
			intrinsics.PacketResizeEgress, intrinsics.PacketBoundedLength:
			dec, err := apidecode.Decode(call)
			if err != nil {
				return fmt.Errorf("optreq: %w", err)
			}
			if packet, ok := dec.Arg(intrinsics.RolePacket); ok {
				if err := flushPacket(packet); err != nil {
					return err
				}
			} else if err := flushAll(); err != nil {
				return err
			}
		}
	}
	return flushAll()
}

func decodeAccess(eng *alias.Engine, call *ir.Call) (*access, bool) {
	dec, err := apidecode.Decode(call)
	if err != nil {
		return nil, false
	}
	packet, ok := dec.Arg(intrinsics.RolePacket)
	if !ok {
		return nil, false
	}
	offset, err := dec.IntArg(intrinsics.RoleOffset)
	if err != nil {
		return nil, false
	}
	a := &access{insn: call, packet: packet, offset: offset}
	var dataRole intrinsics.ArgRole
	switch dec.ID {
	case intrinsics.PacketRead:
		dataRole = intrinsics.RoleDataOut
		a.dataBuf, _ = dec.Arg(dataRole)
	default:
		dataRole = intrinsics.RoleDataIn
		a.dataBuf, _ = dec.Arg(dataRole)
		a.maskBuf, _ = dec.Arg(intrinsics.RoleMask)
	}
	// The accessed range comes from the alias helper, which sees
	// through PHI-joined and bit-counted sizes; the raw length operand
	// alone would miss both.
	idx := argIndexOf(dec.ID, call, dataRole)
	if idx < 0 {
		return nil, false
	}
	r, err := eng.MemoryLocation(call, idx)
	if err != nil {
		return nil, false
	}
	a.length = r.Length
	a.precise = r.Precise
	return a, true
}

func argIndexOf(id intrinsics.ID, call *ir.Call, role intrinsics.ArgRole) int {
	for i := range call.Args {
		if intrinsics.ArgRoleOf(id, i) == role {
			return i
		}
	}
	return -1
}

func allPrecise(members []*access) bool {
	for _, m := range members {
		if !m.precise {
			return false
		}
	}
	return true
}

// allOnesMask returns (creating on first use) a constant global mask
// asserting every byte of a length-byte access, used when a plain
// (unmasked) packet_write joins a masked merge group.
func allOnesMask(m *ir.Module, length int64) ir.Value {
	n := int((length + 7) / 8)
	name := fmt.Sprintf("write_one_mask.%d", n)
	for _, g := range m.Globals {
		if g.Name == name {
			return g
		}
	}
	data := make([]byte, n)
	for i := range data {
		data[i] = 0xff
	}
	g := &ir.GlobalVariable{
		Name:       name,
		Ty:         ir.ArrayTy(ir.I8, n),
		Constant:   true,
		StringData: data,
	}
	m.Globals = append(m.Globals, g)
	return g
}

func disjoint(a, b *access) bool {
	return a.offset+a.length <= b.offset || b.offset+b.length <= a.offset
}

// blocked reports whether a new access of the opposite kind to others
// must flush others first: true unless every member is disjoint from it.
func blocked(others []*access, a *access) bool {
	for _, o := range others {
		if !disjoint(o, a) {
			return true
		}
	}
	return false
}

func nonDisjointMember(others []*access, a *access) *access {
	for _, o := range others {
		if !disjoint(o, a) {
			return o
		}
	}
	return nil
}

func moveBefore(bb *ir.BasicBlock, ins, before ir.Instruction) {
	bb.Remove(ins)
	bb.InsertBefore(before, ins)
}

// replaceInSitu puts new where old currently sits in bb, then drops old.
func replaceInSitu(bb *ir.BasicBlock, old ir.Instruction, new ir.Instruction) {
	bb.Remove(new)
	bb.InsertBefore(old, new)
	bb.Remove(old)
}

func sortByOffset(members []*access) {
	sort.Slice(members, func(i, j int) bool { return members[i].offset < members[j].offset })
}

// split partitions members (sorted by offset) at the largest gap
// whenever the group fails the hole heuristic, recursively, until every
// surviving subgroup passes or has a single member.
func split(policy *Policy, members []*access) ([][]*access, error) {
	if len(members) <= 1 {
		return [][]*access{members}, nil
	}
	sortByOffset(members)
	span := (members[len(members)-1].offset + members[len(members)-1].length) - members[0].offset
	var accessed int64
	for _, m := range members {
		accessed += m.length
	}
	empty := span - accessed
	shouldSplit, err := policy.ShouldSplit(span, empty, int64(len(members)))
	if err != nil {
		return nil, err
	}
	if !shouldSplit {
		return [][]*access{members}, nil
	}
	// Split at the largest inter-member gap.
	gap := -1
	splitAt := 1
	for i := 1; i < len(members); i++ {
		g := members[i].offset - (members[i-1].offset + members[i-1].length)
		if g > int64(gap) {
			gap = int(g)
			splitAt = i
		}
	}
	left, err := split(policy, members[:splitAt])
	if err != nil {
		return nil, err
	}
	right, err := split(policy, members[splitAt:])
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

func flushReads(fn *ir.Function, bb *ir.BasicBlock, members []*access, policy *Policy, res *Result) error {
	if len(members) == 0 {
		return nil
	}
	groups, err := split(policy, members)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if len(g) < 2 || !allPrecise(g) {
			continue
		}
		if err := lowerReadGroup(fn, bb, g); err != nil {
			return err
		}
		res.ReadGroups++
	}
	return nil
}

func flushWrites(fn *ir.Function, bb *ir.BasicBlock, members []*access, policy *Policy, res *Result) error {
	if len(members) == 0 {
		return nil
	}
	groups, err := split(policy, members)
	if err != nil {
		return err
	}
	for _, g := range groups {
		if len(g) < 2 || !allPrecise(g) {
			continue
		}
		if err := lowerWriteGroup(fn, bb, g); err != nil {
			return err
		}
		res.WriteGroups++
	}
	return nil
}

// lowerReadGroup lowers a read group: one big packet_read
// at the position of the earliest member (reads are hoisted up), then
// each original read becomes a memcpy out of the shared buffer.
func lowerReadGroup(fn *ir.Function, bb *ir.BasicBlock, members []*access) error {
	start := members[0].offset
	end := members[0].offset + members[0].length
	earliest := members[0]
	for _, m := range members[1:] {
		if m.offset < start {
			start = m.offset
		}
		if m.offset+m.length > end {
			end = m.offset + m.length
		}
		if m.seq < earliest.seq {
			earliest = m
		}
	}
	length := end - start
	packet := members[0].packet
	anchor := earliest.insn

	b := ir.NewBuilder(bb)
	buf := b.Alloca(ir.ArrayTy(ir.I8, int(length)), nil)
	moveBefore(bb, buf, anchor)
	readCallee := intrinsics.Declare(fn.Module, intrinsics.PacketRead)
	bigRead := b.Call(readCallee.Ty.Ret, readCallee, packet, buf, ir.Int(ir.I64, start), ir.Int(ir.I64, length))
	moveBefore(bb, bigRead, anchor)

	memcpyCallee := intrinsics.Declare(fn.Module, intrinsics.LLVMMemcpy)
	for _, m := range members {
		gep := b.GEP(ir.I8, buf, ir.Int(ir.I64, m.offset-start))
		moveBefore(bb, gep, m.insn)
		cpy := b.Call(ir.VoidTy(), memcpyCallee, m.dataBuf, gep, ir.Int(ir.I64, m.length))
		replaceInSitu(bb, m.insn, cpy)
	}
	return nil
}

// lowerWriteGroup lowers a write group: shared data+mask
// buffers at the function entry, one nanotube_merge_data_mask per
// original write ORing its bytes in, and one packet_write_masked at
// the position of the last member (writes are sunk down).
func lowerWriteGroup(fn *ir.Function, bb *ir.BasicBlock, members []*access) error {
	start := members[0].offset
	end := members[0].offset + members[0].length
	latest := members[0]
	for _, m := range members[1:] {
		if m.offset < start {
			start = m.offset
		}
		if m.offset+m.length > end {
			end = m.offset + m.length
		}
		if m.seq > latest.seq {
			latest = m
		}
	}
	length := end - start
	maskBytes := (length + 7) / 8
	packet := members[0].packet

	entry := fn.Entry()
	eb := ir.NewBuilder(entry)
	dataBuf := eb.Alloca(ir.ArrayTy(ir.I8, int(length)), nil)
	entry.Remove(dataBuf)
	entry.Prepend(dataBuf)
	maskBuf := eb.Alloca(ir.ArrayTy(ir.I8, int(maskBytes)), nil)
	entry.Remove(maskBuf)
	entry.Prepend(maskBuf)
	zeroMaskAt := entry.Instrs[2]
	for i := int64(0); i < maskBytes; i++ {
		gep := eb.GEP(ir.I8, maskBuf, ir.Int(ir.I64, i))
		moveBefore(entry, gep, zeroMaskAt)
		st := eb.Store(ir.Int(ir.I8, 0), gep)
		moveBefore(entry, st, zeroMaskAt)
	}

	mergeCallee := intrinsics.Declare(fn.Module, intrinsics.MergeDataMask)
	b := ir.NewBuilder(bb)
	var latestMerge *ir.Call
	for _, m := range members {
		memberMask := m.maskBuf
		if memberMask == nil {
			memberMask = allOnesMask(fn.Module, m.length)
		}
		merge := b.Call(mergeCallee.Ty.Ret, mergeCallee, dataBuf, maskBuf, m.dataBuf, memberMask,
			ir.Int(ir.I64, m.offset-start), ir.Int(ir.I64, m.length))
		bb.Remove(merge)
		replaceInSitu(bb, m.insn, merge)
		if m == latest {
			latestMerge = merge
		}
	}

	writeCallee := intrinsics.Declare(fn.Module, intrinsics.PacketWriteMasked)
	bigWrite := b.Call(writeCallee.Ty.Ret, writeCallee, packet, dataBuf, maskBuf, ir.Int(ir.I64, start), ir.Int(ir.I64, length))
	bb.Remove(bigWrite)
	bb.InsertAfter(latestMerge, bigWrite)
	return nil
}
