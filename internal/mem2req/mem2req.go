// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package mem2req implements mem2req: it replaces every
// load/store/memcpy/memset whose pointer's root is packet or map
// memory with explicit Nanotube request intrinsics.
package mem2req

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/alias"
	"github.com/Xilinx/nanotube-sub001/internal/apidecode"
	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/Xilinx/nanotube-sub001/internal/ptr"
)

// aliasCacheBytes bounds the per-invocation byte-range cache; the
// engine is discarded with the pass.
const aliasCacheBytes = 1 << 20

// map_op "type" values, matching the capsule wire format's opcode
// numbering so the in-IR call and the on-wire encoding agree.
const (
	mapOpRead  = 0
	mapOpWrite = 3
)

// Result records every call mem2req synthesized, for diagnostics and
// tests; Optimise-Requests does not read it and rescans each block.
type Result struct {
	Inserted []*ir.Call
}

func nullPtr() ir.Value { return &ir.ConstNull{Ty: ir.PointerTy(ir.I8)} }

// Run rewrites fn in place. packetArg identifies the kernel's packet
// parameter: the Argument root that makes a pointer a packet access
// rather than ordinary local memory.
func Run(fn *ir.Function, packetArg *ir.Argument) (*Result, error) {
	info, err := ptr.Analyze(fn)
	if err != nil {
		return nil, fmt.Errorf("mem2req: %w", err)
	}
	eng := alias.NewEngine(aliasCacheBytes)
	res := &Result{}
	for _, bb := range fn.Blocks {
		for _, insn := range append([]ir.Instruction(nil), bb.Instrs...) {
			switch x := insn.(type) {
			case *ir.Load:
				if err := rewriteLoad(fn, bb, x, info, packetArg, res); err != nil {
					return nil, err
				}
			case *ir.Store:
				if err := rewriteStore(fn, bb, x, info, packetArg, res); err != nil {
					return nil, err
				}
			case *ir.Call:
				switch intrinsics.GetIntrinsic(x) {
				case intrinsics.LLVMMemcpy:
					if err := rewriteMemcpy(fn, bb, x, eng, info, packetArg, res); err != nil {
						return nil, err
					}
				case intrinsics.LLVMMemset:
					if err := rewriteMemset(fn, bb, x, eng, info, packetArg, res); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return res, nil
}

// accessedBytes resolves how many bytes call touches through argument
// argIndex, using the alias helper's size-argument reasoning: plain
// constants fold, a PHI whose incoming values agree folds, and an
// imprecise bound (distinct constants at a join) is rejected the same
// way a non-constant size is -- the lowering needs an exact count.
func accessedBytes(eng *alias.Engine, call *ir.Call, argIndex int) (int64, error) {
	r, err := eng.MemoryLocation(call, argIndex)
	if err != nil {
		return 0, fmt.Errorf("mem2req: size of %s must be a compile-time constant: %w", call.Ident(), err)
	}
	if !r.Precise {
		return 0, fmt.Errorf("mem2req: size of %s is only bounded, not exact", call.Ident())
	}
	return r.Length, nil
}

type accessKind int

const (
	accessNone accessKind = iota
	accessPacket
	accessMap
)

// classify reports what kind of Nanotube-managed memory v's pointer
// value is rooted at. A zero-value ptr.Info (the map lookup miss case)
// reports Kind ptr.Unknown, which callers must treat as fatal at a
// load/store -- the address cannot be proven packet-, map- or
// stack-rooted; Stack, ChannelHandle and
// Argument roots other than packetArg are ordinary local memory and
// are left untouched.
func classify(info ptr.Result, packetArg *ir.Argument, v ir.Value) (accessKind, ptr.Info) {
	in := info[v]
	switch in.Kind {
	case ptr.MapData:
		return accessMap, in
	case ptr.Argument:
		if in.Base == ir.Value(packetArg) {
			return accessPacket, in
		}
	}
	return accessNone, in
}

func moveBefore(bb *ir.BasicBlock, ins, before ir.Instruction) {
	bb.Remove(ins)
	bb.InsertBefore(before, ins)
}

func rewriteLoad(fn *ir.Function, bb *ir.BasicBlock, ld *ir.Load, info ptr.Result, packetArg *ir.Argument, res *Result) error {
	kind, in := classify(info, packetArg, ld.Ptr)
	if kind == accessNone {
		if in.Kind == ptr.Unknown {
			return fmt.Errorf("mem2req: load %s has a pointer operand of unknown classification", ld.Ident())
		}
		return nil
	}
	length := ld.Type().StoreSize()
	b := ir.NewBuilder(bb)
	buf := b.Alloca(ld.Type(), nil)
	moveBefore(bb, buf, ld)

	var call *ir.Call
	var err error
	switch kind {
	case accessPacket:
		call, err = emitPacketRead(fn, bb, in.Base, buf, in.Offset, length)
	case accessMap:
		rootCall, ok := in.Base.(*ir.Call)
		if !ok {
			return fmt.Errorf("mem2req: load %s map root is not a call", ld.Ident())
		}
		call, err = emitMapOp(fn, bb, rootCall, mapOpRead, nil, buf, in.Offset, length)
	}
	if err != nil {
		return err
	}
	moveBefore(bb, call, ld)

	newLoad := b.Load(ld.Type(), buf)
	moveBefore(bb, newLoad, ld)

	ir.ReplaceUses(fn, ld, newLoad)
	bb.Remove(ld)
	res.Inserted = append(res.Inserted, call)
	return nil
}

func rewriteStore(fn *ir.Function, bb *ir.BasicBlock, st *ir.Store, info ptr.Result, packetArg *ir.Argument, res *Result) error {
	kind, in := classify(info, packetArg, st.Ptr)
	if kind == accessNone {
		if in.Kind == ptr.Unknown {
			return fmt.Errorf("mem2req: store %s has a pointer operand of unknown classification", st.Ident())
		}
		return nil
	}
	valTy := st.Val.Type()
	length := valTy.StoreSize()
	b := ir.NewBuilder(bb)
	buf := b.Alloca(valTy, nil)
	moveBefore(bb, buf, st)
	newStore := b.Store(st.Val, buf)
	moveBefore(bb, newStore, st)

	var call *ir.Call
	var err error
	switch kind {
	case accessPacket:
		maskBuf, merr := buildFullMask(bb, st, length)
		if merr != nil {
			return merr
		}
		call, err = emitPacketWriteMasked(fn, bb, in.Base, buf, maskBuf, in.Offset, length)
	case accessMap:
		rootCall, ok := in.Base.(*ir.Call)
		if !ok {
			return fmt.Errorf("mem2req: store %s map root is not a call", st.Ident())
		}
		call, err = emitMapOp(fn, bb, rootCall, mapOpWrite, buf, nil, in.Offset, length)
	}
	if err != nil {
		return err
	}
	moveBefore(bb, call, st)
	bb.Remove(st)
	res.Inserted = append(res.Inserted, call)
	return nil
}

func rewriteMemcpy(fn *ir.Function, bb *ir.BasicBlock, call *ir.Call, eng *alias.Engine, info ptr.Result, packetArg *ir.Argument, res *Result) error {
	if len(call.Args) < 3 {
		return fmt.Errorf("mem2req: memcpy %s has too few arguments", call.Ident())
	}
	dst, src := call.Args[0], call.Args[1]
	n, err := accessedBytes(eng, call, 0)
	if err != nil {
		return err
	}
	dstKind, dstInfo := classify(info, packetArg, dst)
	srcKind, srcInfo := classify(info, packetArg, src)
	if dstKind == accessNone && srcKind == accessNone {
		if dstInfo.Kind == ptr.Unknown || srcInfo.Kind == ptr.Unknown {
			return fmt.Errorf("mem2req: memcpy %s has a pointer operand of unknown classification", call.Ident())
		}
		return nil
	}

	b := ir.NewBuilder(bb)
	var inserted []*ir.Call
	switch {
	case dstKind != accessNone && srcKind == accessNone:
		out, err := emitWrite(fn, bb, call, dstKind, dstInfo, src, n)
		if err != nil {
			return err
		}
		inserted = append(inserted, out)

	case srcKind != accessNone && dstKind == accessNone:
		out, err := emitRead(fn, bb, srcKind, srcInfo, dst, n)
		if err != nil {
			return err
		}
		inserted = append(inserted, out)

	default:
		tmp := b.Alloca(ir.ArrayTy(ir.I8, int(n)), nil)
		moveBefore(bb, tmp, call)
		readCall, err := emitRead(fn, bb, srcKind, srcInfo, tmp, n)
		if err != nil {
			return err
		}
		writeCall, err := emitWrite(fn, bb, call, dstKind, dstInfo, tmp, n)
		if err != nil {
			return err
		}
		inserted = append(inserted, readCall, writeCall)
	}
	res.Inserted = append(res.Inserted, inserted...)
	bb.Remove(call)
	return nil
}

func rewriteMemset(fn *ir.Function, bb *ir.BasicBlock, call *ir.Call, eng *alias.Engine, info ptr.Result, packetArg *ir.Argument, res *Result) error {
	if len(call.Args) < 3 {
		return fmt.Errorf("mem2req: memset %s has too few arguments", call.Ident())
	}
	dst, fillArg := call.Args[0], call.Args[1]
	dstKind, dstInfo := classify(info, packetArg, dst)
	if dstKind == accessNone {
		if dstInfo.Kind == ptr.Unknown {
			return fmt.Errorf("mem2req: memset %s has a pointer operand of unknown classification", call.Ident())
		}
		return nil
	}
	n, err := accessedBytes(eng, call, 0)
	if err != nil {
		return err
	}
	fill, err := apidecode.ConstInt(fillArg)
	if err != nil {
		return fmt.Errorf("mem2req: memset %s fill value must be a compile-time constant: %w", call.Ident(), err)
	}

	b := ir.NewBuilder(bb)
	buf := b.Alloca(ir.ArrayTy(ir.I8, int(n)), nil)
	moveBefore(bb, buf, call)
	for i := int64(0); i < n; i++ {
		gep := b.GEP(ir.I8, buf, ir.Int(ir.I64, i))
		moveBefore(bb, gep, call)
		fillStore := b.Store(ir.Int(ir.I8, fill), gep)
		moveBefore(bb, fillStore, call)
	}

	out, err := emitWrite(fn, bb, call, dstKind, dstInfo, buf, n)
	if err != nil {
		return err
	}
	res.Inserted = append(res.Inserted, out)
	bb.Remove(call)
	return nil
}

// emitRead/emitWrite dispatch a scalar packet/map access to the right
// intrinsic for memcpy/memset lowering, where the root kind is only
// known at the call site rather than baked into a dedicated function.
func emitRead(fn *ir.Function, bb *ir.BasicBlock, kind accessKind, in ptr.Info, dst ir.Value, length int64) (*ir.Call, error) {
	switch kind {
	case accessPacket:
		return emitPacketRead(fn, bb, in.Base, dst, in.Offset, length)
	case accessMap:
		rootCall, ok := in.Base.(*ir.Call)
		if !ok {
			return nil, fmt.Errorf("mem2req: map access root is not a call")
		}
		return emitMapOp(fn, bb, rootCall, mapOpRead, nil, dst, in.Offset, length)
	default:
		return nil, fmt.Errorf("mem2req: emitRead called with no access kind")
	}
}

func emitWrite(fn *ir.Function, bb *ir.BasicBlock, before ir.Instruction, kind accessKind, in ptr.Info, src ir.Value, length int64) (*ir.Call, error) {
	switch kind {
	case accessPacket:
		maskBuf, err := buildFullMask(bb, before, length)
		if err != nil {
			return nil, err
		}
		return emitPacketWriteMasked(fn, bb, in.Base, src, maskBuf, in.Offset, length)
	case accessMap:
		rootCall, ok := in.Base.(*ir.Call)
		if !ok {
			return nil, fmt.Errorf("mem2req: map access root is not a call")
		}
		return emitMapOp(fn, bb, rootCall, mapOpWrite, src, nil, in.Offset, length)
	default:
		return nil, fmt.Errorf("mem2req: emitWrite called with no access kind")
	}
}

// buildFullMask allocates and fully sets a mask buffer sized for a
// length-byte access (the lowering always hands Optimise-Requests a
// mask it can AND/OR against; mem2req itself never leaves an access
// partially masked since it only ever replaces whole load/store values).
func buildFullMask(bb *ir.BasicBlock, before ir.Instruction, length int64) (ir.Value, error) {
	maskBytes := (length + 7) / 8
	if maskBytes <= 0 {
		maskBytes = 1
	}
	b := ir.NewBuilder(bb)
	buf := b.Alloca(ir.ArrayTy(ir.I8, int(maskBytes)), nil)
	moveBefore(bb, buf, before)
	for i := int64(0); i < maskBytes; i++ {
		gep := b.GEP(ir.I8, buf, ir.Int(ir.I64, i))
		moveBefore(bb, gep, before)
		st := b.Store(ir.Int(ir.I8, 0xFF), gep)
		moveBefore(bb, st, before)
	}
	return buf, nil
}

func emitPacketRead(fn *ir.Function, bb *ir.BasicBlock, packet, buf ir.Value, offset, length int64) (*ir.Call, error) {
	callee := intrinsics.Declare(fn.Module, intrinsics.PacketRead)
	b := ir.NewBuilder(bb)
	call := b.Call(callee.Ty.Ret, callee, packet, buf, ir.Int(ir.I64, offset), ir.Int(ir.I64, length))
	bb.Remove(call)
	return call, nil
}

func emitPacketWriteMasked(fn *ir.Function, bb *ir.BasicBlock, packet, dataBuf, maskBuf ir.Value, offset, length int64) (*ir.Call, error) {
	callee := intrinsics.Declare(fn.Module, intrinsics.PacketWriteMasked)
	b := ir.NewBuilder(bb)
	call := b.Call(callee.Ty.Ret, callee, packet, dataBuf, maskBuf, ir.Int(ir.I64, offset), ir.Int(ir.I64, length))
	bb.Remove(call)
	return call, nil
}

// emitMapOp synthesizes a nanotube_map_op call reusing the root
// map_lookup (or map_op_receive)'s context/map-id/key operands, the
// way map accesses lower uniformly
// through map_op rather than the narrower map_read/map_write variants
// (which Converge and Optimise-Requests never special-case).
func emitMapOp(fn *ir.Function, bb *ir.BasicBlock, rootCall *ir.Call, opType int64, dataIn, dataOut ir.Value, offset, length int64) (*ir.Call, error) {
	dec, err := apidecode.Decode(rootCall)
	if err != nil {
		return nil, fmt.Errorf("mem2req: map access root %s: %w", rootCall.Ident(), err)
	}
	ctxV, ok := dec.Arg(intrinsics.RoleContext)
	if !ok {
		return nil, fmt.Errorf("mem2req: map access root %s has no context argument", rootCall.Ident())
	}
	mapIDV, ok := dec.Arg(intrinsics.RoleMapID)
	if !ok {
		return nil, fmt.Errorf("mem2req: map access root %s has no map_id argument", rootCall.Ident())
	}
	keyV, ok := dec.Arg(intrinsics.RoleKey)
	if !ok {
		keyV = nullPtr()
	}
	keyLenV, ok := dec.Arg(intrinsics.RoleLength)
	if !ok {
		keyLenV = ir.Int(ir.I64, 0)
	}
	if dataIn == nil {
		dataIn = nullPtr()
	}
	if dataOut == nil {
		dataOut = nullPtr()
	}
	callee := intrinsics.Declare(fn.Module, intrinsics.MapOp)
	b := ir.NewBuilder(bb)
	call := b.Call(callee.Ty.Ret, callee, ctxV, mapIDV, ir.Int(ir.I32, opType), keyV, keyLenV,
		dataIn, dataOut, nullPtr(), ir.Int(ir.I64, offset), ir.Int(ir.I64, length))
	bb.Remove(call)
	return call, nil
}
