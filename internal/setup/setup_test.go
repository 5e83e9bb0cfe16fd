// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package setup

import (
	"bytes"
	"testing"

	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type setupEnv struct {
	m *ir.Module
	b *ir.Builder

	chCreate, ctxCreate, addChannel, threadCreate *ir.Function
	setupFn                                       *ir.Function
}

func newSetupEnv(t *testing.T) *setupEnv {
	t.Helper()
	m := ir.NewModule("t")
	i8p := ir.PointerTy(ir.I8)
	e := &setupEnv{m: m}
	e.chCreate = m.NewFunction("nanotube_channel_create", ir.FuncTy(i8p, i8p, ir.I64, ir.I64))
	e.ctxCreate = m.NewFunction("nanotube_context_create", ir.FuncTy(i8p))
	e.addChannel = m.NewFunction("nanotube_context_add_channel", ir.FuncTy(ir.VoidTy(), i8p, ir.I32, i8p, ir.I32))
	e.threadCreate = m.NewFunction("nanotube_thread_create", ir.FuncTy(i8p, i8p, i8p, i8p, i8p, ir.I64))

	e.setupFn = m.NewFunction("nanotube_setup", ir.FuncTy(ir.VoidTy()))
	entry := e.setupFn.NewBlock("entry")
	e.b = ir.NewBuilder(entry)
	return e
}

func (e *setupEnv) threadFunc(name string) *ir.Function {
	return e.m.NewFunction(name, ir.FuncTy(ir.VoidTy(),
		ir.PointerTy(ir.I8), ir.PointerTy(ir.I8)))
}

// buildCrossPair builds a cross-connected pair: channels A and B, contexts c0
// and c1 cross-connected, one thread per context.
func buildCrossPair(t *testing.T, e *setupEnv) {
	t.Helper()
	i8p := ir.PointerTy(ir.I8)
	nameA := e.m.NewGlobalString("ch_a", "A")
	nameB := e.m.NewGlobalString("ch_b", "B")
	nameT0 := e.m.NewGlobalString("th_t0", "t0")
	nameT1 := e.m.NewGlobalString("th_t1", "t1")
	t0 := e.threadFunc("thread0")
	t1 := e.threadFunc("thread1")

	b := e.b
	chA := b.Call(i8p, e.chCreate, nameA, ir.Int(ir.I64, 64), ir.Int(ir.I64, 16))
	chB := b.Call(i8p, e.chCreate, nameB, ir.Int(ir.I64, 64), ir.Int(ir.I64, 16))
	c0 := b.Call(i8p, e.ctxCreate)
	c1 := b.Call(i8p, e.ctxCreate)

	b.Call(ir.VoidTy(), e.addChannel, c0, ir.Int(ir.I32, 0), chA, ir.Int(ir.I32, 2)) // A write @ c0
	b.Call(ir.VoidTy(), e.addChannel, c1, ir.Int(ir.I32, 0), chA, ir.Int(ir.I32, 1)) // A read @ c1
	b.Call(ir.VoidTy(), e.addChannel, c1, ir.Int(ir.I32, 1), chB, ir.Int(ir.I32, 2)) // B write @ c1
	b.Call(ir.VoidTy(), e.addChannel, c0, ir.Int(ir.I32, 1), chB, ir.Int(ir.I32, 1)) // B read @ c0

	info0 := b.Alloca(ir.ArrayTy(ir.I8, 16), nil)
	info1 := b.Alloca(ir.ArrayTy(ir.I8, 16), nil)
	b.Call(i8p, e.threadCreate, c0, nameT0, t0, info0, ir.Int(ir.I64, 16))
	b.Call(i8p, e.threadCreate, c1, nameT1, t1, info1, ir.Int(ir.I64, 16))
}

func TestSetupCrossConnectedPair(t *testing.T) {
	e := newSetupEnv(t)
	buildCrossPair(t, e)
	e.b.Ret(nil)

	topo, err := Run(e.setupFn, true)
	require.NoError(t, err)

	require.Len(t, topo.Channels, 2)
	require.Len(t, topo.Contexts, 2)
	require.Len(t, topo.Threads, 2)

	a := topo.Channels[0]
	assert.Equal(t, "A", a.Name)
	assert.Equal(t, uint32(64), a.ElemSize)
	assert.Equal(t, uint32(16), a.NumElem)
	assert.Equal(t, 0, a.WriterContext)
	assert.Equal(t, 1, a.ReaderContext)

	bCh := topo.Channels[1]
	assert.Equal(t, 1, bCh.WriterContext)
	assert.Equal(t, 0, bCh.ReaderContext)

	for i, ctx := range topo.Contexts {
		assert.Len(t, ctx.Ports, 2, "context %d", i)
		assert.Equal(t, i, topo.Threads[ctx.ThreadIndex].ContextIndex)
	}
}

func TestSetupSecondReaderIsFatal(t *testing.T) {
	e := newSetupEnv(t)
	buildCrossPair(t, e)

	// A third context tries to read channel A again.
	i8p := ir.PointerTy(ir.I8)
	c2 := e.b.Call(i8p, e.ctxCreate)
	chA := e.setupFn.Entry().Instrs[0]
	e.b.Call(ir.VoidTy(), e.addChannel, c2, ir.Int(ir.I32, 0), chA.(*ir.Call), ir.Int(ir.I32, 1))
	e.b.Ret(nil)

	_, err := Run(e.setupFn, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has a reader")
}

func TestSetupReadWriteFlagMustBeExclusive(t *testing.T) {
	e := newSetupEnv(t)
	i8p := ir.PointerTy(ir.I8)
	name := e.m.NewGlobalString("ch", "X")
	ch := e.b.Call(i8p, e.chCreate, name, ir.Int(ir.I64, 8), ir.Int(ir.I64, 4))
	ctx := e.b.Call(i8p, e.ctxCreate)
	e.b.Call(ir.VoidTy(), e.addChannel, ctx, ir.Int(ir.I32, 0), ch, ir.Int(ir.I32, 3))
	e.b.Ret(nil)

	_, err := Run(e.setupFn, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READ or WRITE")
}

func TestSetupUnknownCallStrictVsLoose(t *testing.T) {
	e := newSetupEnv(t)
	other := e.m.NewFunction("mystery_helper", ir.FuncTy(ir.VoidTy()))
	e.b.Call(ir.VoidTy(), other)
	e.b.Ret(nil)

	_, err := Run(e.setupFn, true)
	require.Error(t, err)

	e2 := newSetupEnv(t)
	other2 := e2.m.NewFunction("mystery_helper", ir.FuncTy(ir.VoidTy()))
	e2.b.Call(ir.VoidTy(), other2)
	e2.b.Ret(nil)
	_, err = Run(e2.setupFn, false)
	assert.NoError(t, err)
}

func TestTopologyDumpIsDeterministicAndRoundTrips(t *testing.T) {
	e := newSetupEnv(t)
	buildCrossPair(t, e)
	e.b.Ret(nil)

	topo1, err := Run(e.setupFn, true)
	require.NoError(t, err)
	topo2, err := Run(e.setupFn, true)
	require.NoError(t, err)

	var d1, d2 bytes.Buffer
	require.NoError(t, topo1.DumpJSON(&d1))
	require.NoError(t, topo2.DumpJSON(&d2))
	assert.Equal(t, d1.Bytes(), d2.Bytes())

	parsed, err := ParseJSON(d1.Bytes(), e.m)
	require.NoError(t, err)
	var d3 bytes.Buffer
	require.NoError(t, parsed.DumpJSON(&d3))
	assert.Equal(t, d1.Bytes(), d3.Bytes())

	_, err = ParseJSON([]byte(`{"threads": [{"func": "nope"}]}`), e.m)
	assert.Error(t, err)
}
