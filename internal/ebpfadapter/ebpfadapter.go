// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ebpfadapter recognizes the foreign intrinsics an eBPF/XDP
// front-end leaves in kernel functions (bpf_map_lookup_elem, XDP
// context field reads, adjust-head) and rewrites them to Nanotube
// intrinsics before the core pipeline runs. Constructs it cannot
// translate are reported as warnings and left in place.
package ebpfadapter

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/apidecode"
	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/Xilinx/nanotube-sub001/pkg/log"
)

// map_op type values, matching the capsule opcode numbering the rest
// of the pipeline uses.
const (
	mapOpInsert = 1
	mapOpUpdate = 2
	mapOpWrite  = 3
)

// xdp_md field byte offsets (all fields are u32).
const (
	xdpMDData     = 0
	xdpMDDataEnd  = 4
	xdpMDDataMeta = 8
)

// MapSpec describes one eBPF map the input program references, keyed
// by its map-definition global's name. It plays the role of the BTF
// map-definition table the real front-end parses.
type MapSpec struct {
	ID        uint16
	KeySize   uint32
	ValueSize uint32
}

// Result summarizes one adapter run.
type Result struct {
	Converted int
	Skipped   int
}

// Run rewrites fn in place. The function is expected in kernel shape:
// Params[0] is the Nanotube context and Params[1] the packet (the
// former xdp_md pointer).
func Run(fn *ir.Function, maps map[string]MapSpec) (*Result, error) {
	if len(fn.Params) < 2 {
		return nil, fmt.Errorf("ebpfadapter: function %s is not in (context, packet) kernel shape", fn.Name)
	}
	res := &Result{}
	ctx := fn.Params[0]
	packet := fn.Params[1]

	for _, bb := range fn.Blocks {
		for _, insn := range append([]ir.Instruction(nil), bb.Instrs...) {
			var err error
			switch x := insn.(type) {
			case *ir.Call:
				err = convertCall(fn, bb, x, ctx, packet, maps, res)
			case *ir.Load:
				err = convertContextLoad(fn, bb, x, packet, res)
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func calleeName(call *ir.Call) string {
	if f, ok := call.Callee.(*ir.Function); ok {
		return f.Name
	}
	return ""
}

func convertCall(fn *ir.Function, bb *ir.BasicBlock, call *ir.Call,
	ctx, packet ir.Value, maps map[string]MapSpec, res *Result,
) error {
	switch calleeName(call) {
	case "bpf_map_lookup_elem":
		return convertMapLookup(fn, bb, call, ctx, maps, res)
	case "bpf_map_update_elem":
		return convertMapUpdate(fn, bb, call, ctx, maps, res)
	case "bpf_xdp_adjust_head":
		return convertAdjustHead(fn, bb, call, packet, res)
	case "bpf_xdp_adjust_meta":
		// The metadata area is not modelled as a resizable region here;
		// leaving the call in place keeps the warning tier contract.
		log.Warnf("ebpfadapter: leaving unhandled call %s in %s", call.Ident(), fn.Name)
		res.Skipped++
		return nil
	case "bpf_ktime_get_ns":
		callee := intrinsics.Declare(fn.Module, intrinsics.GetTimeNs)
		repl := ir.NewBuilder(bb).Call(ir.I64, callee)
		return swapCall(fn, bb, call, repl, res)
	default:
		return nil
	}
}

// lookupSpec resolves a map operand (a possibly bitcast pointer to the
// map-definition global) against the spec table.
func lookupSpec(v ir.Value, maps map[string]MapSpec) (MapSpec, string, bool) {
	for {
		switch x := v.(type) {
		case *ir.BitCast:
			v = x.Val
		case *ir.GetElementPtr:
			v = x.Ptr
		case *ir.GlobalVariable:
			spec, ok := maps[x.Name]
			return spec, x.Name, ok
		default:
			return MapSpec{}, "", false
		}
	}
}

func convertMapLookup(fn *ir.Function, bb *ir.BasicBlock, call *ir.Call,
	ctx ir.Value, maps map[string]MapSpec, res *Result,
) error {
	if len(call.Args) != 2 {
		return fmt.Errorf("ebpfadapter: call %s has %d arguments, expected 2", call.Ident(), len(call.Args))
	}
	spec, name, ok := lookupSpec(call.Args[0], maps)
	if !ok {
		log.Warnf("ebpfadapter: unknown map in %s; leaving call in place", call.Ident())
		res.Skipped++
		return nil
	}
	callee := intrinsics.Declare(fn.Module, intrinsics.MapLookup)
	repl := ir.NewBuilder(bb).Call(ir.PointerTy(ir.I8), callee,
		ctx,
		ir.Int(ir.I64, int64(spec.ID)),
		call.Args[1],
		ir.Int(ir.I64, int64(spec.KeySize)),
		ir.Int(ir.I64, int64(spec.ValueSize)))
	log.Debugf("ebpfadapter: %s: map lookup on %q -> nanotube_map_lookup", fn.Name, name)
	return swapCall(fn, bb, call, repl, res)
}

func convertMapUpdate(fn *ir.Function, bb *ir.BasicBlock, call *ir.Call,
	ctx ir.Value, maps map[string]MapSpec, res *Result,
) error {
	if len(call.Args) != 4 {
		return fmt.Errorf("ebpfadapter: call %s has %d arguments, expected 4", call.Ident(), len(call.Args))
	}
	spec, _, ok := lookupSpec(call.Args[0], maps)
	if !ok {
		log.Warnf("ebpfadapter: unknown map in %s; leaving call in place", call.Ident())
		res.Skipped++
		return nil
	}
	flags, ok := call.Args[3].(*ir.ConstInt)
	if !ok {
		return fmt.Errorf("ebpfadapter: flags argument of %s is not a constant", call.Ident())
	}
	var op int64
	switch flags.Val {
	case 0: // BPF_ANY
		op = mapOpWrite
	case 1: // BPF_NOEXIST
		op = mapOpInsert
	case 2: // BPF_EXIST
		op = mapOpUpdate
	default:
		return fmt.Errorf("ebpfadapter: unsupported map update flags %d in %s", flags.Val, call.Ident())
	}

	callee := intrinsics.Declare(fn.Module, intrinsics.MapOp)
	repl := ir.NewBuilder(bb).Call(ir.I64, callee,
		ctx,
		ir.Int(ir.I64, int64(spec.ID)),
		ir.Int(ir.I32, op),
		call.Args[1],
		ir.Int(ir.I64, int64(spec.KeySize)),
		call.Args[2],
		&ir.ConstNull{Ty: ir.PointerTy(ir.I8)},
		allOnesMask(fn.Module, int(spec.ValueSize)),
		ir.Int(ir.I64, 0),
		ir.Int(ir.I64, int64(spec.ValueSize)))
	return swapCall(fn, bb, call, repl, res)
}

func convertAdjustHead(fn *ir.Function, bb *ir.BasicBlock, call *ir.Call,
	packet ir.Value, res *Result,
) error {
	if len(call.Args) != 2 {
		return fmt.Errorf("ebpfadapter: call %s has %d arguments, expected 2", call.Ident(), len(call.Args))
	}
	callee := intrinsics.Declare(fn.Module, intrinsics.PacketResize)
	repl := ir.NewBuilder(bb).Call(ir.I32, callee,
		packet,
		ir.Int(ir.I64, 0),
		call.Args[1])
	return swapCall(fn, bb, call, repl, res)
}

// convertContextLoad rewrites loads of xdp_md fields into the
// corresponding packet pointer intrinsics.
func convertContextLoad(fn *ir.Function, bb *ir.BasicBlock, ld *ir.Load,
	packet ir.Value, res *Result,
) error {
	offset, rooted := contextFieldOffset(ld.Ptr, packet)
	if !rooted {
		return nil
	}
	var id intrinsics.ID
	var name string
	switch offset {
	case xdpMDData:
		id, name = intrinsics.PacketData, "packet_data"
	case xdpMDDataEnd:
		id, name = intrinsics.PacketEnd, "packet_end"
	case xdpMDDataMeta:
		id, name = intrinsics.PacketMeta, "packet_meta"
	default:
		log.Warnf("ebpfadapter: load of unknown context field at offset %d in %s", offset, fn.Name)
		res.Skipped++
		return nil
	}

	b := ir.NewBuilder(bb)
	callee := intrinsics.Declare(fn.Module, id)
	repl := b.Call(ir.PointerTy(ir.I8), callee, packet)
	bb.Remove(repl)
	bb.InsertBefore(ld, repl)
	log.Debugf("ebpfadapter: %s: context load at offset %d -> %s", fn.Name, offset, name)

	var result ir.Value = repl
	if ld.Type().Kind == ir.KindInt {
		cast := b.Cast(ir.PtrToInt, repl, ld.Type())
		bb.Remove(cast)
		bb.InsertBefore(ld, cast)
		result = cast
	}
	ir.ReplaceUses(fn, ld, result)
	bb.Remove(ld)
	res.Converted++
	return nil
}

// contextFieldOffset reports the constant byte offset of ptr relative
// to the packet/context argument, walking bitcasts and constant GEPs.
func contextFieldOffset(ptr, packet ir.Value) (int64, bool) {
	var offset int64
	for {
		if ptr == packet {
			return offset, true
		}
		switch x := ptr.(type) {
		case *ir.BitCast:
			ptr = x.Val
		case *ir.GetElementPtr:
			off, err := apidecode.GEPConstantOffset(x)
			if err != nil {
				return 0, false
			}
			offset += off
			ptr = x.Ptr
		default:
			return 0, false
		}
	}
}

// allOnesMask returns (creating on first use) a constant global holding
// an all-ones byte-enable mask covering dataBytes bytes.
func allOnesMask(m *ir.Module, dataBytes int) ir.Value {
	n := (dataBytes + 7) / 8
	name := fmt.Sprintf("update_one_mask.%d", n)
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

// swapCall moves the freshly built repl (appended by the builder) to
// where call sits and rewires every use.
func swapCall(fn *ir.Function, bb *ir.BasicBlock, call *ir.Call, repl *ir.Call, res *Result) error {
	bb.Remove(repl)
	bb.InsertBefore(call, repl)
	ir.ReplaceUses(fn, call, repl)
	bb.Remove(call)
	res.Converted++
	return nil
}
