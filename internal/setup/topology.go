// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package setup is the setup-function interpreter: an abstract
// interpreter that executes the user-supplied setup routine at compile
// time to enumerate contexts, channels, channel ports, maps, threads
// and packet kernels, producing a Topology.
package setup

import (
	"fmt"
	"strings"

	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// ExportType is a channel's bus export kind.
type ExportType int

const (
	ExportNone ExportType = iota
	ExportSimplePacket
	ExportSofthubPacket
	ExportX3rxPacket
)

// MapType enumerates the supported map backing stores.
type MapType int

const (
	MapIllegal MapType = iota
	MapHash
	MapLruHash
	MapArrayLE
)

// Port is one endpoint of a channel as seen from a context.
type Port struct {
	ChannelIndex int
	IsRead       bool
}

// ChannelInfo describes one point-to-point channel. A channel
// has at most one writer port and at most one reader port.
type ChannelInfo struct {
	Index                int
	Name                 string
	ElemSize             uint32
	NumElem              uint32
	SidebandSize         uint32
	SidebandSignalsSize  uint32
	WriterContext        int // -1 if unbound
	WriterPort           int // -1 if unbound
	ReaderContext        int
	ReaderPort           int
	WriteExportType      ExportType
	ReadExportType       ExportType
}

func newChannel(index int, name string, elemSize, numElem uint32) *ChannelInfo {
	return &ChannelInfo{
		Index: index, Name: name, ElemSize: elemSize, NumElem: numElem,
		WriterContext: -1, WriterPort: -1, ReaderContext: -1, ReaderPort: -1,
	}
}

// ContextInfo is a thread context: the per-thread handle owning the
// thread's channel ports and map references.
type ContextInfo struct {
	Index          int
	ThreadIndex    int // -1 if no thread bound yet
	Ports          []Port
	LocalChannelID map[uint32]int // local channel id -> port index
	LocalMapID     map[uint32]int // local map id -> map index
}

func newContext(index int) *ContextInfo {
	return &ContextInfo{
		Index: index, ThreadIndex: -1,
		LocalChannelID: map[uint32]int{},
		LocalMapID:     map[uint32]int{},
	}
}

// ThreadInfo is one nanotube_thread_create call's result.
type ThreadInfo struct {
	Index        int
	Creator      *ir.Call
	Name         string
	Func         *ir.Function
	InfoArea     uint64
	ContextIndex int
}

// MapInfo is one nanotube_map_create call's result.
type MapInfo struct {
	Index        int
	Creator      *ir.Call
	MapID        uint16
	Type         MapType
	KeySize      uint32
	ValueSize    uint32
	ContextIndex int
}

// KernelInfo is one add_plain_packet_kernel call's result.
type KernelInfo struct {
	Index     int
	Creator   *ir.Call
	Name      string
	Func      *ir.Function
	BusType   int64
	IsCapsule bool
}

// Topology is the immutable (after interpretation) system model built
// by the setup interpreter: channels, contexts, maps, threads and
// kernels, referenced by index rather than pointer ("index-based
// references into sequence containers owned by the topology object").
type Topology struct {
	Channels []*ChannelInfo
	Contexts []*ContextInfo
	Maps     []*MapInfo
	Threads  []*ThreadInfo
	Kernels  []*KernelInfo
}

func newTopology() *Topology { return &Topology{} }

func (t *Topology) addChannel(name string, elemSize, numElem uint32) *ChannelInfo {
	c := newChannel(len(t.Channels), name, elemSize, numElem)
	t.Channels = append(t.Channels, c)
	return c
}

func (t *Topology) addContext() *ContextInfo {
	c := newContext(len(t.Contexts))
	t.Contexts = append(t.Contexts, c)
	return c
}

func (t *Topology) addMap(id uint16, ty MapType, keySize, valueSize uint32, ctxIdx int) *MapInfo {
	m := &MapInfo{Index: len(t.Maps), MapID: id, Type: ty, KeySize: keySize, ValueSize: valueSize, ContextIndex: ctxIdx}
	t.Maps = append(t.Maps, m)
	return m
}

func (t *Topology) addThread(creator *ir.Call, name string, fn *ir.Function, infoArea uint64, ctxIdx int) *ThreadInfo {
	th := &ThreadInfo{Index: len(t.Threads), Creator: creator, Name: name, Func: fn, InfoArea: infoArea, ContextIndex: ctxIdx}
	t.Threads = append(t.Threads, th)
	return th
}

func (t *Topology) addKernel(creator *ir.Call, name string, fn *ir.Function, busType int64, isCapsule bool) *KernelInfo {
	k := &KernelInfo{Index: len(t.Kernels), Creator: creator, Name: name, Func: fn, BusType: busType, IsCapsule: isCapsule}
	t.Kernels = append(t.Kernels, k)
	return k
}

// String renders a human-readable topology dump, the Go equivalent of
// the original back-end's print_setup.cpp.
func (t *Topology) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "topology: %d channels, %d contexts, %d maps, %d threads, %d kernels\n",
		len(t.Channels), len(t.Contexts), len(t.Maps), len(t.Threads), len(t.Kernels))
	for _, c := range t.Channels {
		fmt.Fprintf(&b, "  channel %d %q elem=%d num=%d writer=(ctx %d, port %d) reader=(ctx %d, port %d)\n",
			c.Index, c.Name, c.ElemSize, c.NumElem, c.WriterContext, c.WriterPort, c.ReaderContext, c.ReaderPort)
	}
	for _, c := range t.Contexts {
		fmt.Fprintf(&b, "  context %d thread=%d ports=%d\n", c.Index, c.ThreadIndex, len(c.Ports))
	}
	for _, m := range t.Maps {
		fmt.Fprintf(&b, "  map %d id=%d type=%v key=%d value=%d ctx=%d\n",
			m.Index, m.MapID, m.Type, m.KeySize, m.ValueSize, m.ContextIndex)
	}
	for _, th := range t.Threads {
		fmt.Fprintf(&b, "  thread %d %q ctx=%d\n", th.Index, th.Name, th.ContextIndex)
	}
	for _, k := range t.Kernels {
		fmt.Fprintf(&b, "  kernel %d %q bus=%d capsule=%v\n", k.Index, k.Name, k.BusType, k.IsCapsule)
	}
	return b.String()
}
