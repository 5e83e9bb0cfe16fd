// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package alias

import (
	"testing"

	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMatchesDirectComputation(t *testing.T) {
	m := ir.NewModule("t")
	readFn := m.NewFunction("nanotube_packet_read", ir.FuncTy(ir.I64,
		ir.PointerTy(ir.I8), ir.PointerTy(ir.I8), ir.I64, ir.I64))
	fn := m.NewFunction("k", ir.FuncTy(ir.I32, ir.PointerTy(ir.I8), ir.PointerTy(ir.I8)))
	entry := fn.NewBlock("entry")
	b := ir.NewBuilder(entry)
	buf := b.Alloca(ir.ArrayTy(ir.I8, 8), nil)
	call := b.Call(ir.I64, readFn, fn.Params[1], buf, ir.Int(ir.I64, 10), ir.Int(ir.I64, 8))
	b.Ret(ir.Int(ir.I32, 0))

	want, err := MemoryLocation(call, 1)
	require.NoError(t, err)

	e := NewEngine(1 << 16)
	for i := 0; i < 3; i++ {
		got, err := e.MemoryLocation(call, 1)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// Errors memoize too.
	_, wantErr := MemoryLocation(call, 0)
	require.Error(t, wantErr)
	_, gotErr := e.MemoryLocation(call, 0)
	assert.EqualError(t, gotErr, wantErr.Error())
}
