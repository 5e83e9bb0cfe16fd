// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package setup

import (
	"fmt"

	"github.com/Xilinx/nanotube-sub001/internal/apidecode"
	"github.com/Xilinx/nanotube-sub001/internal/intrinsics"
	"github.com/Xilinx/nanotube-sub001/internal/ir"
	"github.com/Xilinx/nanotube-sub001/pkg/log"
)

const (
	channelFlagRead  = 1
	channelFlagWrite = 2
)

const (
	attrSidebandBytes   = 0
	attrSidebandSignals = 1
)

func mapTypeFromInt(v int64) MapType {
	switch v {
	case 0:
		return MapHash
	case 1:
		return MapLruHash
	case 2:
		return MapArrayLE
	default:
		return MapIllegal
	}
}

// execCall dispatches a recognized Nanotube setup-time call to its
// topology-building semantics.
func (s *Interp) execCall(call *ir.Call) error {
	id := intrinsics.GetIntrinsic(call)

	switch id {
	case intrinsics.LLVMMemcpy:
		return s.execMemcpy(call)
	case intrinsics.LLVMMemset:
		return s.execMemset(call)
	case intrinsics.Malloc:
		return s.execMalloc(call)

	case intrinsics.ContextCreate:
		ctx := s.topo.addContext()
		s.values[call] = SetupValue{Kind: svContext, Index: ctx.Index}
		return nil

	case intrinsics.ContextAddChannel:
		return s.execContextAddChannel(call)

	case intrinsics.ContextAddMap:
		return s.execContextAddMap(call)

	case intrinsics.ChannelCreate:
		return s.execChannelCreate(call)

	case intrinsics.ChannelSetAttr:
		return s.execChannelSetAttr(call)

	case intrinsics.ChannelExport:
		return s.execChannelExport(call)

	case intrinsics.ThreadCreate:
		return s.execThreadCreate(call)

	case intrinsics.MapCreate:
		return s.execMapCreate(call)

	case intrinsics.AddPlainPacketKernel:
		return s.execAddPlainPacketKernel(call)

	default:
		if id.IsNop() {
			return nil
		}
		fn, _ := call.Callee.(*ir.Function)
		name := "<indirect>"
		if fn != nil {
			name = fn.Name
		}
		if s.strict {
			return fmt.Errorf("setup interpreter: unrecognized call to %s (strict mode)", name)
		}
		log.Warnf("setup interpreter: unrecognized call to %s, leaving in place (loose mode)", name)
		return nil
	}
}

func (s *Interp) execMemcpy(call *ir.Call) error {
	dst, src := s.eval(call.Args[0]), s.eval(call.Args[1])
	if dst.Kind != svPtr || src.Kind != svPtr {
		return fmt.Errorf("setup interpreter: memcpy %s has a non-constant pointer operand", call.Ident())
	}
	n, err := s.intArg(call, 2)
	if err != nil {
		return fmt.Errorf("setup interpreter: memcpy size must be constant: %w", err)
	}
	s.store(dst.Ptr, n, s.load(src.Ptr, n))
	return nil
}

func (s *Interp) execMemset(call *ir.Call) error {
	dst := s.eval(call.Args[0])
	if dst.Kind != svPtr {
		return fmt.Errorf("setup interpreter: memset %s has a non-constant pointer operand", call.Ident())
	}
	val, err := s.intArg(call, 1)
	if err != nil {
		return fmt.Errorf("setup interpreter: memset fill value must be constant: %w", err)
	}
	n, err := s.intArg(call, 2)
	if err != nil {
		return fmt.Errorf("setup interpreter: memset size must be constant: %w", err)
	}
	s.store(dst.Ptr, n, SetupValue{Kind: svMemset, Byte: byte(val)})
	return nil
}

func (s *Interp) execMalloc(call *ir.Call) error {
	n, err := s.intArg(call, 0)
	if err != nil {
		return fmt.Errorf("setup interpreter: malloc size must be constant: %w", err)
	}
	s.values[call] = SetupValue{Kind: svPtr, Ptr: s.alloc(n, call)}
	return nil
}

func (s *Interp) execContextAddChannel(call *ir.Call) error {
	ctxVal := s.eval(call.Args[0])
	chVal := s.eval(call.Args[2])
	if ctxVal.Kind != svContext || chVal.Kind != svChannel {
		return fmt.Errorf("setup interpreter: %s: context/channel argument is not a topology handle", call.Ident())
	}
	localID, err := s.intArg(call, 1)
	if err != nil {
		return err
	}
	flags, err := s.intArg(call, 3)
	if err != nil {
		return err
	}
	if flags != channelFlagRead && flags != channelFlagWrite {
		return fmt.Errorf("setup interpreter: %s: flags must be exactly READ or WRITE, got %d", call.Ident(), flags)
	}
	ctx := s.topo.Contexts[ctxVal.Index]
	ch := s.topo.Channels[chVal.Index]
	isRead := flags == channelFlagRead
	portIdx := len(ctx.Ports)
	if isRead {
		if ch.ReaderContext != -1 {
			return fmt.Errorf("setup interpreter: channel %q already has a reader", ch.Name)
		}
		ch.ReaderContext, ch.ReaderPort = ctx.Index, portIdx
	} else {
		if ch.WriterContext != -1 {
			return fmt.Errorf("setup interpreter: channel %q already has a writer", ch.Name)
		}
		ch.WriterContext, ch.WriterPort = ctx.Index, portIdx
	}
	ctx.Ports = append(ctx.Ports, Port{ChannelIndex: ch.Index, IsRead: isRead})
	ctx.LocalChannelID[uint32(localID)] = portIdx
	return nil
}

func (s *Interp) execContextAddMap(call *ir.Call) error {
	ctxVal := s.eval(call.Args[0])
	mapVal := s.eval(call.Args[1])
	if ctxVal.Kind != svContext || mapVal.Kind != svMap {
		return fmt.Errorf("setup interpreter: %s: context/map argument is not a topology handle", call.Ident())
	}
	ctx := s.topo.Contexts[ctxVal.Index]
	m := s.topo.Maps[mapVal.Index]
	ctx.LocalMapID[uint32(m.MapID)] = m.Index
	if m.ContextIndex == -1 {
		m.ContextIndex = ctx.Index
	}
	return nil
}

func (s *Interp) execChannelCreate(call *ir.Call) error {
	name, err := apidecode.ConstString(call.Args[0])
	if err != nil {
		return fmt.Errorf("setup interpreter: channel_create: %w", err)
	}
	elemSize, err := s.intArg(call, 1)
	if err != nil {
		return err
	}
	numElem, err := s.intArg(call, 2)
	if err != nil {
		return err
	}
	ch := s.topo.addChannel(name, uint32(elemSize), uint32(numElem))
	s.values[call] = SetupValue{Kind: svChannel, Index: ch.Index}
	return nil
}

func (s *Interp) execChannelSetAttr(call *ir.Call) error {
	chVal := s.eval(call.Args[0])
	if chVal.Kind != svChannel {
		return fmt.Errorf("setup interpreter: %s: channel argument is not a topology handle", call.Ident())
	}
	attrID, err := s.intArg(call, 1)
	if err != nil {
		return err
	}
	val, err := s.intArg(call, 2)
	if err != nil {
		return err
	}
	ch := s.topo.Channels[chVal.Index]
	switch attrID {
	case attrSidebandBytes:
		ch.SidebandSize = uint32(val)
	case attrSidebandSignals:
		ch.SidebandSignalsSize = uint32(val)
	default:
		return fmt.Errorf("setup interpreter: %s: unknown channel attribute id %d", call.Ident(), attrID)
	}
	return nil
}

func (s *Interp) execChannelExport(call *ir.Call) error {
	chVal := s.eval(call.Args[0])
	if chVal.Kind != svChannel {
		return fmt.Errorf("setup interpreter: %s: channel argument is not a topology handle", call.Ident())
	}
	typ, err := s.intArg(call, 1)
	if err != nil {
		return err
	}
	flags, err := s.intArg(call, 2)
	if err != nil {
		return err
	}
	ch := s.topo.Channels[chVal.Index]
	et := ExportType(typ)
	if flags&channelFlagRead != 0 {
		ch.ReadExportType = et
	}
	if flags&channelFlagWrite != 0 {
		ch.WriteExportType = et
	}
	return nil
}

func (s *Interp) execThreadCreate(call *ir.Call) error {
	ctxVal := s.eval(call.Args[0])
	if ctxVal.Kind != svContext {
		return fmt.Errorf("setup interpreter: %s: context argument is not a topology handle", call.Ident())
	}
	name, err := apidecode.ConstString(call.Args[1])
	if err != nil {
		return fmt.Errorf("setup interpreter: thread_create: %w", err)
	}
	fn, err := apidecode.ConstFunction(call.Args[2])
	if err != nil {
		return fmt.Errorf("setup interpreter: thread_create: %w", err)
	}
	if len(fn.Params) != 2 {
		return fmt.Errorf("setup interpreter: thread function %s must have exactly two parameters", fn.Name)
	}
	infoArea := s.eval(call.Args[3])
	if infoArea.Kind != svPtr {
		return fmt.Errorf("setup interpreter: %s: info_area argument is not constant", call.Ident())
	}
	ctx := s.topo.Contexts[ctxVal.Index]
	if ctx.ThreadIndex != -1 {
		return fmt.Errorf("setup interpreter: context %d is already bound to a thread", ctx.Index)
	}
	th := s.topo.addThread(call, name, fn, infoArea.Ptr, ctx.Index)
	ctx.ThreadIndex = th.Index
	return nil
}

func (s *Interp) execMapCreate(call *ir.Call) error {
	id, err := s.intArg(call, 0)
	if err != nil {
		return err
	}
	typ, err := s.intArg(call, 1)
	if err != nil {
		return err
	}
	keySz, err := s.intArg(call, 2)
	if err != nil {
		return err
	}
	valSz, err := s.intArg(call, 3)
	if err != nil {
		return err
	}
	mt := mapTypeFromInt(typ)
	if mt == MapIllegal {
		return fmt.Errorf("setup interpreter: %s: unsupported map type %d", call.Ident(), typ)
	}
	m := s.topo.addMap(uint16(id), mt, uint32(keySz), uint32(valSz), -1)
	s.values[call] = SetupValue{Kind: svMap, Index: m.Index}
	return nil
}

func (s *Interp) execAddPlainPacketKernel(call *ir.Call) error {
	name, err := apidecode.ConstString(call.Args[0])
	if err != nil {
		return fmt.Errorf("setup interpreter: add_plain_packet_kernel: %w", err)
	}
	fn, err := apidecode.ConstFunction(call.Args[1])
	if err != nil {
		return fmt.Errorf("setup interpreter: add_plain_packet_kernel: %w", err)
	}
	if len(fn.Params) != 2 {
		return fmt.Errorf("setup interpreter: kernel function %s must have signature (context, packet)", fn.Name)
	}
	busType, err := s.intArg(call, 2)
	if err != nil {
		return err
	}
	capsules, err := s.intArg(call, 3)
	if err != nil {
		return err
	}
	s.topo.addKernel(call, name, fn, busType, capsules != 0)
	return nil
}
