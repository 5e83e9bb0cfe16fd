// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package ebpfadapter

import (
	"testing"

	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKernel(m *ir.Module) *ir.Function {
	fn := m.NewFunction("process_packet", ir.FuncTy(ir.I32,
		ir.PointerTy(ir.I8), ir.PointerTy(ir.I8)))
	fn.NewBlock("entry")
	return fn
}

func callsOf(fn *ir.Function, id intrinsics.ID) []*ir.Call {
	var out []*ir.Call
	for _, bb := range fn.Blocks {
		for _, insn := range bb.Instrs {
			if c, ok := insn.(*ir.Call); ok && intrinsics.GetIntrinsic(c) == id {
				out = append(out, c)
			}
		}
	}
	return out
}

func TestConvertsMapLookup(t *testing.T) {
	m := ir.NewModule("t")
	lookup := m.NewFunction("bpf_map_lookup_elem", ir.FuncTy(
		ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.PointerTy(ir.I8)))
	mapDef := m.NewGlobalString("flow_table", "")

	fn := newKernel(m)
	b := ir.NewBuilder(fn.Entry())
	key := b.Alloca(ir.I32, nil)
	mapPtr := b.BitCast(mapDef, ir.PointerTy(ir.I8))
	val := b.Call(ir.PointerTy(ir.I8), lookup, mapPtr, key)
	ld := b.Load(ir.I8, val)
	b.Ret(ld)

	res, err := Run(fn, map[string]MapSpec{
		"flow_table": {ID: 7, KeySize: 4, ValueSize: 8},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Converted)
	assert.Zero(t, res.Skipped)

	calls := callsOf(fn, intrinsics.MapLookup)
	require.Len(t, calls, 1)
	nt := calls[0]
	assert.Equal(t, ir.Value(fn.Params[0]), nt.Args[0])
	assert.Equal(t, int64(7), nt.Args[1].(*ir.ConstInt).Val)
	assert.Equal(t, ir.Value(key), nt.Args[2])
	assert.Equal(t, int64(4), nt.Args[3].(*ir.ConstInt).Val)
	assert.Equal(t, int64(8), nt.Args[4].(*ir.ConstInt).Val)

	// The load now reads through the converted call.
	loadBack := fn.Entry().Instrs[len(fn.Entry().Instrs)-2].(*ir.Load)
	assert.Equal(t, ir.Value(nt), loadBack.Ptr)
	assert.Empty(t, callsOf(fn, intrinsics.None))
}

func TestUnknownMapLeftInPlace(t *testing.T) {
	m := ir.NewModule("t")
	lookup := m.NewFunction("bpf_map_lookup_elem", ir.FuncTy(
		ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.PointerTy(ir.I8)))
	mapDef := m.NewGlobalString("mystery_map", "")

	fn := newKernel(m)
	b := ir.NewBuilder(fn.Entry())
	key := b.Alloca(ir.I32, nil)
	b.Call(ir.PointerTy(ir.I8), lookup, mapDef, key)
	b.Ret(ir.Int(ir.I32, 0))

	res, err := Run(fn, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Converted)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, callsOf(fn, intrinsics.MapLookup))
}

func TestConvertsMapUpdateFlags(t *testing.T) {
	for flags, wantOp := range map[int64]int64{0: 3, 1: 1, 2: 2} {
		m := ir.NewModule("t")
		update := m.NewFunction("bpf_map_update_elem", ir.FuncTy(ir.I64,
			ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.I64))
		mapDef := m.NewGlobalString("flow_table", "")

		fn := newKernel(m)
		b := ir.NewBuilder(fn.Entry())
		key := b.Alloca(ir.I32, nil)
		value := b.Alloca(ir.I64, nil)
		b.Call(ir.I64, update, mapDef, key, value, ir.Int(ir.I64, flags))
		b.Ret(ir.Int(ir.I32, 0))

		res, err := Run(fn, map[string]MapSpec{
			"flow_table": {ID: 3, KeySize: 4, ValueSize: 8},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Converted)

		calls := callsOf(fn, intrinsics.MapOp)
		require.Len(t, calls, 1)
		assert.Equal(t, wantOp, calls[0].Args[2].(*ir.ConstInt).Val, "flags %d", flags)

		// The mask argument is the shared all-ones byte-enable global.
		mask, ok := calls[0].Args[7].(*ir.GlobalVariable)
		require.True(t, ok)
		assert.Equal(t, []byte{0xff}, mask.StringData)
	}
}

func TestConvertsContextLoadsAndAdjustHead(t *testing.T) {
	m := ir.NewModule("t")
	adjust := m.NewFunction("bpf_xdp_adjust_head", ir.FuncTy(ir.I32,
		ir.PointerTy(ir.I8), ir.I32))

	fn := newKernel(m)
	b := ir.NewBuilder(fn.Entry())
	packet := fn.Params[1]
	data := b.Load(ir.PointerTy(ir.I8), packet)
	endPtr := b.GEP(ir.I8, packet, ir.Int(ir.I64, 4))
	dataEnd := b.Load(ir.I32, endPtr)
	b.Call(ir.I32, adjust, packet, ir.Int(ir.I32, -14))
	b.Store(dataEnd, data)
	b.Ret(ir.Int(ir.I32, 0))

	res, err := Run(fn, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Converted)

	require.Len(t, callsOf(fn, intrinsics.PacketData), 1)
	require.Len(t, callsOf(fn, intrinsics.PacketEnd), 1)
	resize := callsOf(fn, intrinsics.PacketResize)
	require.Len(t, resize, 1)
	assert.Equal(t, int64(0), resize[0].Args[1].(*ir.ConstInt).Val)
	assert.Equal(t, int64(-14), resize[0].Args[2].(*ir.ConstInt).Val)

	// The data_end load was integer-typed, so a ptrtoint bridges it.
	var sawCast bool
	for _, insn := range fn.Entry().Instrs {
		if c, ok := insn.(*ir.Cast); ok && c.Op == ir.PtrToInt {
			sawCast = true
		}
	}
	assert.True(t, sawCast)
}

func TestAdjustMetaSkippedWithWarning(t *testing.T) {
	m := ir.NewModule("t")
	adjustMeta := m.NewFunction("bpf_xdp_adjust_meta", ir.FuncTy(ir.I32,
		ir.PointerTy(ir.I8), ir.I32))

	fn := newKernel(m)
	b := ir.NewBuilder(fn.Entry())
	b.Call(ir.I32, adjustMeta, fn.Params[1], ir.Int(ir.I32, 8))
	b.Ret(ir.Int(ir.I32, 0))

	res, err := Run(fn, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Converted)
	assert.Equal(t, 1, res.Skipped)
}
