// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

// Package intrinsics is the Nanotube intrinsic registry: it maps
// call sites onto a closed set of recognized intrinsics and exposes,
// per intrinsic, the memory-effect contract later passes rely on.
package intrinsics

// ID is the closed enumeration of everything get_intrinsic can return.
type ID int

const (
	None ID = iota

	// Host (LLVM) intrinsics recognized without a Nanotube-specific
	// argument contract.
	LLVMBswap
	LLVMDbgDeclare
	LLVMDbgValue
	LLVMLifetimeStart
	LLVMLifetimeEnd
	LLVMMemset
	LLVMMemcpy
	LLVMMemcmp
	LLVMStacksave
	LLVMStackrestore
	LLVMUnknown

	// Channel intrinsics.
	ChannelCreate
	ChannelSetAttr
	ChannelExport
	ChannelRead
	ChannelTryRead
	ChannelWrite
	ChannelHasSpace

	// Context / thread intrinsics.
	ContextCreate
	ContextAddChannel
	ContextAddMap
	ThreadCreate
	ThreadWait
	AddPlainPacketKernel

	// Map intrinsics.
	MapCreate
	MapOp
	MapOpSend
	MapOpReceive
	MapLookup
	MapRead
	MapWrite
	MapInsert
	MapUpdate
	MapRemove
	MapGetID
	MapProcessCapsule

	// Packet intrinsics.
	PacketRead
	PacketWrite
	PacketWriteMasked
	PacketBoundedLength
	PacketGetPort
	PacketSetPort
	PacketData
	PacketEnd
	PacketMeta
	PacketResize
	PacketResizeIngress
	PacketResizeEgress
	PacketDrop
	PacketEdit
	PacketIsEOP

	// Synthesized exclusively by Optimise-Requests when it merges
	// several masked writes into one: ORs a member's data+mask bytes
	// into the group's shared buffers at the member's offset within the
	// group.
	MergeDataMask

	// Misc.
	GetTimeNs
	DebugTrace
	Malloc
	CapsuleClassify

	// Bit-exact tap family; each bus format registers its own taps
	// under this shared kind so mem2req/optimise-requests never needs
	// to know about bus formats.
	TapPacketRead
	TapPacketWrite
	TapPacketLength
	TapPacketResizeIngress
	TapPacketResizeEgress
	TapPacketIsEOP

	// end is not an intrinsic; it marks the maximum enumerator value.
	end
)

var names = map[ID]string{
	None:                   "none",
	LLVMBswap:              "llvm.bswap",
	LLVMDbgDeclare:         "llvm.dbg.declare",
	LLVMDbgValue:           "llvm.dbg.value",
	LLVMLifetimeStart:      "llvm.lifetime.start",
	LLVMLifetimeEnd:        "llvm.lifetime.end",
	LLVMMemset:             "llvm.memset",
	LLVMMemcpy:             "llvm.memcpy",
	LLVMMemcmp:             "llvm.memcmp",
	LLVMStacksave:          "llvm.stacksave",
	LLVMStackrestore:       "llvm.stackrestore",
	LLVMUnknown:            "llvm.unknown",
	ChannelCreate:          "nanotube_channel_create",
	ChannelSetAttr:         "nanotube_channel_set_attr",
	ChannelExport:          "nanotube_channel_export",
	ChannelRead:            "nanotube_channel_read",
	ChannelTryRead:         "nanotube_channel_try_read",
	ChannelWrite:           "nanotube_channel_write",
	ChannelHasSpace:        "nanotube_channel_has_space",
	ContextCreate:          "nanotube_context_create",
	ContextAddChannel:      "nanotube_context_add_channel",
	ContextAddMap:          "nanotube_context_add_map",
	ThreadCreate:           "nanotube_thread_create",
	ThreadWait:             "nanotube_thread_wait",
	AddPlainPacketKernel:   "nanotube_add_plain_packet_kernel",
	MapCreate:              "nanotube_map_create",
	MapOp:                  "nanotube_map_op",
	MapOpSend:              "nanotube_map_op_send",
	MapOpReceive:           "nanotube_map_op_receive",
	MapLookup:              "nanotube_map_lookup",
	MapRead:                "nanotube_map_read",
	MapWrite:               "nanotube_map_write",
	MapInsert:              "nanotube_map_insert",
	MapUpdate:              "nanotube_map_update",
	MapRemove:              "nanotube_map_remove",
	MapGetID:               "nanotube_map_get_id",
	MapProcessCapsule:      "nanotube_map_process_capsule",
	PacketRead:             "nanotube_packet_read",
	PacketWrite:            "nanotube_packet_write",
	PacketWriteMasked:      "nanotube_packet_write_masked",
	PacketBoundedLength:    "nanotube_packet_bounded_length",
	PacketGetPort:          "nanotube_packet_get_port",
	PacketSetPort:          "nanotube_packet_set_port",
	PacketData:             "nanotube_packet_data",
	PacketEnd:              "nanotube_packet_end",
	PacketMeta:             "nanotube_packet_meta",
	PacketResize:           "nanotube_packet_resize",
	PacketResizeIngress:    "nanotube_packet_resize_ingress",
	PacketResizeEgress:     "nanotube_packet_resize_egress",
	PacketDrop:             "nanotube_packet_drop",
	PacketEdit:             "nanotube_packet_edit",
	PacketIsEOP:            "nanotube_packet_is_eop",
	MergeDataMask:          "nanotube_merge_data_mask",
	GetTimeNs:              "nanotube_get_time_ns",
	DebugTrace:             "nanotube_debug_trace",
	Malloc:                 "nanotube_malloc",
	CapsuleClassify:        "nanotube_capsule_classify",
	TapPacketRead:          "tap_packet_read",
	TapPacketWrite:         "tap_packet_write",
	TapPacketLength:        "tap_packet_length",
	TapPacketResizeIngress: "tap_packet_resize_ingress",
	TapPacketResizeEgress:  "tap_packet_resize_egress",
	TapPacketIsEOP:         "tap_packet_is_eop",
}

func (id ID) String() string {
	if s, ok := names[id]; ok {
		return s
	}
	return "unknown"
}

// IsNop reports whether the intrinsic is known to have no runtime
// effect -- it exists purely to carry compile-time information.
func (id ID) IsNop() bool {
	switch id {
	case LLVMLifetimeStart, LLVMLifetimeEnd, LLVMDbgDeclare, LLVMDbgValue:
		return true
	default:
		return false
	}
}

// IsPacketAccess reports whether id reads or writes packet memory
// through the request-based API (used pervasively by mem2req and
// optimise-requests to decide what it must reason about).
func (id ID) IsPacketAccess() bool {
	switch id {
	case PacketRead, PacketWrite, PacketWriteMasked:
		return true
	default:
		return false
	}
}

// IsMapAccess reports whether id is one of the map read/write/op
// variants.
func (id ID) IsMapAccess() bool {
	switch id {
	case MapOp, MapRead, MapWrite, MapInsert, MapUpdate, MapRemove:
		return true
	default:
		return false
	}
}
