// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package setup

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Xilinx/nanotube-sub001/internal/ir"
)

// The JSON view of a topology: the handoff format for the external HLS
// printer and the serialization the topology cache stores. Function
// and creator values flatten to names; everything else is index-based
// already.

type jsonChannel struct {
	Index               int    `json:"index"`
	Name                string `json:"name"`
	ElemSize            uint32 `json:"elem_size"`
	NumElem             uint32 `json:"num_elem"`
	SidebandSize        uint32 `json:"sideband_size"`
	SidebandSignalsSize uint32 `json:"sideband_signals_size"`
	WriterContext       int    `json:"writer_context"`
	WriterPort          int    `json:"writer_port"`
	ReaderContext       int    `json:"reader_context"`
	ReaderPort          int    `json:"reader_port"`
	WriteExportType     int    `json:"write_export_type"`
	ReadExportType      int    `json:"read_export_type"`
}

type jsonPort struct {
	ChannelIndex int  `json:"channel_index"`
	IsRead       bool `json:"is_read"`
}

type jsonContext struct {
	Index       int        `json:"index"`
	ThreadIndex int        `json:"thread_index"`
	Ports       []jsonPort `json:"ports"`
}

type jsonMap struct {
	Index        int    `json:"index"`
	MapID        uint16 `json:"map_id"`
	Type         int    `json:"type"`
	KeySize      uint32 `json:"key_size"`
	ValueSize    uint32 `json:"value_size"`
	ContextIndex int    `json:"context_index"`
}

type jsonThread struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	Func         string `json:"func"`
	ContextIndex int    `json:"context_index"`
}

type jsonKernel struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Func      string `json:"func"`
	BusType   int64  `json:"bus_type"`
	IsCapsule bool   `json:"is_capsule"`
}

type jsonTopology struct {
	Channels []jsonChannel `json:"channels"`
	Contexts []jsonContext `json:"contexts"`
	Maps     []jsonMap     `json:"maps"`
	Threads  []jsonThread  `json:"threads"`
	Kernels  []jsonKernel  `json:"kernels"`
}

func (t *Topology) jsonView() *jsonTopology {
	out := &jsonTopology{
		Channels: []jsonChannel{},
		Contexts: []jsonContext{},
		Maps:     []jsonMap{},
		Threads:  []jsonThread{},
		Kernels:  []jsonKernel{},
	}
	for _, c := range t.Channels {
		out.Channels = append(out.Channels, jsonChannel{
			Index: c.Index, Name: c.Name,
			ElemSize: c.ElemSize, NumElem: c.NumElem,
			SidebandSize:        c.SidebandSize,
			SidebandSignalsSize: c.SidebandSignalsSize,
			WriterContext:       c.WriterContext, WriterPort: c.WriterPort,
			ReaderContext: c.ReaderContext, ReaderPort: c.ReaderPort,
			WriteExportType: int(c.WriteExportType),
			ReadExportType:  int(c.ReadExportType),
		})
	}
	for _, c := range t.Contexts {
		jc := jsonContext{Index: c.Index, ThreadIndex: c.ThreadIndex, Ports: []jsonPort{}}
		for _, p := range c.Ports {
			jc.Ports = append(jc.Ports, jsonPort{ChannelIndex: p.ChannelIndex, IsRead: p.IsRead})
		}
		out.Contexts = append(out.Contexts, jc)
	}
	for _, m := range t.Maps {
		out.Maps = append(out.Maps, jsonMap{
			Index: m.Index, MapID: m.MapID, Type: int(m.Type),
			KeySize: m.KeySize, ValueSize: m.ValueSize,
			ContextIndex: m.ContextIndex,
		})
	}
	for _, th := range t.Threads {
		jt := jsonThread{Index: th.Index, Name: th.Name, ContextIndex: th.ContextIndex}
		if th.Func != nil {
			jt.Func = th.Func.Name
		}
		out.Threads = append(out.Threads, jt)
	}
	for _, k := range t.Kernels {
		jk := jsonKernel{
			Index: k.Index, Name: k.Name,
			BusType: k.BusType, IsCapsule: k.IsCapsule,
		}
		if k.Func != nil {
			jk.Func = k.Func.Name
		}
		out.Kernels = append(out.Kernels, jk)
	}
	return out
}

// DumpJSON writes the topology's JSON handoff form to w. Two identical
// interpreter runs produce byte-identical output.
func (t *Topology) DumpJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t.jsonView())
}

// ParseJSON rebuilds a Topology from its DumpJSON form, resolving
// thread and kernel function names against m. Creator call sites are
// not representable in the JSON form and come back nil; only the
// compile cache uses this path, after the setup function was already
// interpreted once.
func ParseJSON(data []byte, m *ir.Module) (*Topology, error) {
	var jt jsonTopology
	if err := json.Unmarshal(data, &jt); err != nil {
		return nil, fmt.Errorf("setup: decoding topology: %w", err)
	}
	t := newTopology()
	for _, c := range jt.Channels {
		ch := t.addChannel(c.Name, c.ElemSize, c.NumElem)
		ch.SidebandSize = c.SidebandSize
		ch.SidebandSignalsSize = c.SidebandSignalsSize
		ch.WriterContext, ch.WriterPort = c.WriterContext, c.WriterPort
		ch.ReaderContext, ch.ReaderPort = c.ReaderContext, c.ReaderPort
		ch.WriteExportType = ExportType(c.WriteExportType)
		ch.ReadExportType = ExportType(c.ReadExportType)
	}
	for _, c := range jt.Contexts {
		ctx := t.addContext()
		ctx.ThreadIndex = c.ThreadIndex
		for _, p := range c.Ports {
			ctx.Ports = append(ctx.Ports, Port{ChannelIndex: p.ChannelIndex, IsRead: p.IsRead})
		}
	}
	for _, jm := range jt.Maps {
		t.addMap(jm.MapID, MapType(jm.Type), jm.KeySize, jm.ValueSize, jm.ContextIndex)
	}
	for _, th := range jt.Threads {
		fn := m.FindFunction(th.Func)
		if fn == nil {
			return nil, fmt.Errorf("setup: cached topology names unknown thread function %q", th.Func)
		}
		t.addThread(nil, th.Name, fn, 0, th.ContextIndex)
	}
	for _, k := range jt.Kernels {
		fn := m.FindFunction(k.Func)
		if fn == nil {
			return nil, fmt.Errorf("setup: cached topology names unknown kernel function %q", k.Func)
		}
		t.addKernel(nil, k.Name, fn, k.BusType, k.IsCapsule)
	}
	return t, nil
}
