// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package optreq

import (
	"testing"

	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kernelEnv struct {
	m        *ir.Module
	fn       *ir.Function
	entry    *ir.BasicBlock
	b        *ir.Builder
	readFn   *ir.Function
	writeFn  *ir.Function
	resizeFn *ir.Function
}

func newKernelEnv(t *testing.T) *kernelEnv {
	t.Helper()
	m := ir.NewModule("t")
	readFn := m.NewFunction("nanotube_packet_read", ir.FuncTy(ir.I64,
		ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.I64, ir.I64))
	writeFn := m.NewFunction("nanotube_packet_write_masked", ir.FuncTy(ir.I64,
		ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.I64, ir.I64))
	resizeFn := m.NewFunction("nanotube_packet_resize", ir.FuncTy(ir.I32,
		ir.PointerTy(ir.I8), ir.I64, ir.I64))

	fn := m.NewFunction("kernel", ir.FuncTy(ir.I32, ir.PointerTy(ir.I8), ir.PointerTy(ir.I8)))
	entry := fn.NewBlock("entry")
	return &kernelEnv{
		m: m, fn: fn, entry: entry, b: ir.NewBuilder(entry),
		readFn: readFn, writeFn: writeFn, resizeFn: resizeFn,
	}
}

func (e *kernelEnv) packet() ir.Value { return e.fn.Params[1] }

func (e *kernelEnv) read(offset, length int64) *ir.Call {
	buf := e.b.Alloca(ir.ArrayTy(ir.I8, int(length)), nil)
	return e.b.Call(ir.I64, e.readFn, e.packet(), buf, ir.Int(ir.I64, offset), ir.Int(ir.I64, length))
}

func (e *kernelEnv) writeMasked(offset, length int64) *ir.Call {
	buf := e.b.Alloca(ir.ArrayTy(ir.I8, int(length)), nil)
	mask := e.b.Alloca(ir.ArrayTy(ir.I8, int((length+7)/8)), nil)
	return e.b.Call(ir.I64, e.writeFn, e.packet(), buf, mask, ir.Int(ir.I64, offset), ir.Int(ir.I64, length))
}

func (e *kernelEnv) finish() { e.b.Ret(ir.Int(ir.I32, 0)) }

func callsByID(fn *ir.Function) map[intrinsics.ID][]*ir.Call {
	out := map[intrinsics.ID][]*ir.Call{}
	for _, bb := range fn.Blocks {
		for _, insn := range bb.Instrs {
			if c, ok := insn.(*ir.Call); ok {
				out[intrinsics.GetIntrinsic(c)] = append(out[intrinsics.GetIntrinsic(c)], c)
			}
		}
	}
	return out
}

func mustPolicy(t *testing.T) *Policy {
	t.Helper()
	p, err := DefaultPolicy()
	require.NoError(t, err)
	return p
}

func constArg(t *testing.T, c *ir.Call, i int) int64 {
	t.Helper()
	ci, ok := c.Args[i].(*ir.ConstInt)
	require.True(t, ok, "argument %d of %s is not constant", i, c.Ident())
	return ci.Val
}

// Three adjacent reads collapse to one covering read plus three memcpy
// shims at the right buffer offsets.
func TestMergeAdjacentReads(t *testing.T) {
	e := newKernelEnv(t)
	e.read(10, 4)
	e.read(14, 2)
	e.read(16, 1)
	e.finish()

	res, err := Run(e.fn, mustPolicy(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReadGroups)

	calls := callsByID(e.fn)
	reads := calls[intrinsics.PacketRead]
	require.Len(t, reads, 1)
	assert.Equal(t, int64(10), constArg(t, reads[0], 2))
	assert.Equal(t, int64(7), constArg(t, reads[0], 3))

	memcpys := calls[intrinsics.LLVMMemcpy]
	require.Len(t, memcpys, 3)
	wantLens := []int64{4, 2, 1}
	wantOffs := []int64{0, 4, 6}
	for i, cp := range memcpys {
		assert.Equal(t, wantLens[i], constArg(t, cp, 2))
		gep, ok := cp.Args[1].(*ir.GetElementPtr)
		require.True(t, ok)
		assert.Equal(t, wantOffs[i], gep.Indices[0].(*ir.ConstInt).Val)
	}
}

// A packet_resize between two reads is a blocker: neither read may be
// hoisted past it.
func TestNoMergeAcrossResize(t *testing.T) {
	e := newKernelEnv(t)
	e.read(10, 4)
	e.b.Call(ir.I32, e.resizeFn, e.packet(), ir.Int(ir.I64, 8), ir.Int(ir.I64, 4))
	e.read(14, 2)
	e.finish()

	res, err := Run(e.fn, mustPolicy(t))
	require.NoError(t, err)
	assert.Zero(t, res.ReadGroups)

	calls := callsByID(e.fn)
	assert.Len(t, calls[intrinsics.PacketRead], 2)
	assert.Empty(t, calls[intrinsics.LLVMMemcpy])
}

// Two masked writes at 20/2 and 22/2 become one masked write at 20/4
// fed by per-site data+mask merges.
func TestMergeMaskedWrites(t *testing.T) {
	e := newKernelEnv(t)
	e.writeMasked(20, 2)
	e.writeMasked(22, 2)
	e.finish()

	res, err := Run(e.fn, mustPolicy(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.WriteGroups)

	calls := callsByID(e.fn)
	writes := calls[intrinsics.PacketWriteMasked]
	require.Len(t, writes, 1)
	assert.Equal(t, int64(20), constArg(t, writes[0], 3))
	assert.Equal(t, int64(4), constArg(t, writes[0], 4))

	merges := calls[intrinsics.MergeDataMask]
	require.Len(t, merges, 2)
	assert.Equal(t, int64(0), constArg(t, merges[0], 4))
	assert.Equal(t, int64(2), constArg(t, merges[1], 4))
	for _, mg := range merges {
		// The group buffers feed the final write; the member's own data
		// and mask feed the merge.
		assert.Equal(t, writes[0].Args[1], mg.Args[0])
		assert.Equal(t, writes[0].Args[2], mg.Args[1])
		assert.NotNil(t, mg.Args[3])
	}
}

// Reads separated by a large hole stay separate.
func TestHoleHeuristicSplits(t *testing.T) {
	e := newKernelEnv(t)
	e.read(0, 4)
	e.read(200, 4)
	e.finish()

	res, err := Run(e.fn, mustPolicy(t))
	require.NoError(t, err)
	assert.Zero(t, res.ReadGroups)
	assert.Len(t, callsByID(e.fn)[intrinsics.PacketRead], 2)
}

// Running the pass on its own output changes nothing.
func TestRunIsIdempotent(t *testing.T) {
	e := newKernelEnv(t)
	e.read(10, 4)
	e.read(14, 2)
	e.finish()

	res, err := Run(e.fn, mustPolicy(t))
	require.NoError(t, err)
	require.Equal(t, 1, res.ReadGroups)
	countBefore := len(e.entry.Instrs)

	res2, err := Run(e.fn, mustPolicy(t))
	require.NoError(t, err)
	assert.Zero(t, res2.ReadGroups)
	assert.Zero(t, res2.WriteGroups)
	assert.Equal(t, countBefore, len(e.entry.Instrs))
}

// buildPhiLengthKernel routes a read's length operand through a PHI
// across a diamond, with lenA/lenB as the incoming constants; both
// reads sit in the join block.
func buildPhiLengthKernel(t *testing.T, lenA, lenB int64) *ir.Function {
	t.Helper()
	m := ir.NewModule("t")
	readFn := m.NewFunction("nanotube_packet_read", ir.FuncTy(ir.I64,
		ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.I64, ir.I64))
	fn := m.NewFunction("kernel", ir.FuncTy(ir.I32, ir.PointerTy(ir.I8), ir.PointerTy(ir.I8)))
	entry := fn.NewBlock("entry")
	aBB := fn.NewBlock("a")
	bBB := fn.NewBlock("b")
	join := fn.NewBlock("join")

	ir.NewBuilder(entry).CondBr(ir.Int(ir.I1, 1), aBB, bBB)
	ir.NewBuilder(aBB).Br(join)
	ir.NewBuilder(bBB).Br(join)

	jb := ir.NewBuilder(join)
	phiLen := jb.Phi(ir.I64)
	phiLen.AddIncoming(ir.Int(ir.I64, lenA), aBB)
	phiLen.AddIncoming(ir.Int(ir.I64, lenB), bBB)
	buf1 := jb.Alloca(ir.ArrayTy(ir.I8, int(lenB)), nil)
	jb.Call(ir.I64, readFn, fn.Params[1], buf1, ir.Int(ir.I64, 10), phiLen)
	buf2 := jb.Alloca(ir.ArrayTy(ir.I8, 4), nil)
	jb.Call(ir.I64, readFn, fn.Params[1], buf2, ir.Int(ir.I64, 10+lenB), ir.Int(ir.I64, 4))
	jb.Ret(ir.Int(ir.I32, 0))
	return fn
}

// A PHI join of identical constant lengths is still an exact size and
// the reads merge.
func TestMergeThroughPhiJoinedEqualLengths(t *testing.T) {
	fn := buildPhiLengthKernel(t, 4, 4)
	res, err := Run(fn, mustPolicy(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReadGroups)

	reads := callsByID(fn)[intrinsics.PacketRead]
	require.Len(t, reads, 1)
	assert.Equal(t, int64(10), constArg(t, reads[0], 2))
	assert.Equal(t, int64(8), constArg(t, reads[0], 3))
}

// Distinct constants at the join give only an upper bound; the access
// still blocks but never merges.
func TestNoMergeThroughImpreciseLength(t *testing.T) {
	fn := buildPhiLengthKernel(t, 4, 8)
	res, err := Run(fn, mustPolicy(t))
	require.NoError(t, err)
	assert.Zero(t, res.ReadGroups)
	assert.Len(t, callsByID(fn)[intrinsics.PacketRead], 2)
}

// Reads and writes on disjoint ranges merge independently of each
// other.
func TestDisjointReadAndWriteBothMerge(t *testing.T) {
	e := newKernelEnv(t)
	e.read(0, 2)
	e.read(2, 2)
	e.writeMasked(40, 2)
	e.writeMasked(42, 2)
	e.finish()

	res, err := Run(e.fn, mustPolicy(t))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReadGroups)
	assert.Equal(t, 1, res.WriteGroups)
}
