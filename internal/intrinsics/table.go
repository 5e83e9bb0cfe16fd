// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package intrinsics

// table is the Intrinsics.def equivalent: one row per recognized
// Nanotube intrinsic, declared once as data. Nothing downstream
// should hard-code a symbol name or a mod/ref pattern -- it all comes
// from here.
//
// sz is a small helper building a SizeLink so the table stays readable.
func sz(argIndex int, unit SizeUnit) *SizeLink { return &SizeLink{ArgIndex: argIndex, Unit: unit} }

var table = []Descriptor{
	{ID: ContextCreate, Symbol: "nanotube_context_create", FMRB: OnlyAccessesInaccessibleMem},
	{ID: ContextAddChannel, Symbol: "nanotube_context_add_channel", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustMod},
		{Role: RoleChannelID},
		{Role: RoleChannelHandle, ModRef: MustRef},
		{Role: RoleFlags},
	}},
	{ID: ContextAddMap, Symbol: "nanotube_context_add_map", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustMod},
		{Role: RoleMapHandle, ModRef: MustRef},
	}},
	{ID: ChannelCreate, Symbol: "nanotube_channel_create", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleNameString, ModRef: MustRef},
		{Role: RoleLength},
		{Role: RoleLength},
	}},
	{ID: ChannelSetAttr, Symbol: "nanotube_channel_set_attr", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RoleChannelHandle, ModRef: MustMod},
		{Role: RoleType},
		{Role: RoleFlags},
	}},
	{ID: ChannelExport, Symbol: "nanotube_channel_export", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RoleChannelHandle, ModRef: MustMod},
		{Role: RoleType},
		{Role: RoleFlags},
	}},
	{ID: ChannelRead, Symbol: "nanotube_channel_read", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleChannelID},
		{Role: RoleDataOut, ModRef: MustMod, Size: sz(3, SizeBytes)},
		{Role: RoleLength},
	}},
	{ID: ChannelTryRead, Symbol: "nanotube_channel_try_read", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleChannelID},
		{Role: RoleDataOut, ModRef: MustMod, Size: sz(3, SizeBytes)},
		{Role: RoleLength},
	}},
	{ID: ChannelWrite, Symbol: "nanotube_channel_write", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleChannelID},
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(3, SizeBytes)},
		{Role: RoleLength},
	}},
	{ID: ChannelHasSpace, Symbol: "nanotube_channel_has_space", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleChannelID},
	}},
	{ID: ThreadCreate, Symbol: "nanotube_thread_create", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleNameString, ModRef: MustRef},
		{Role: RoleFunctionPtr},
		{Role: RoleInfoArea, ModRef: ModRefBoth, Size: sz(4, SizeBytes)},
		{Role: RoleInfoAreaSize},
	}},
	{ID: ThreadWait, Symbol: "nanotube_thread_wait", FMRB: OnlyAccessesInaccessibleMem},
	{ID: AddPlainPacketKernel, Symbol: "nanotube_add_plain_packet_kernel", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleNameString, ModRef: MustRef},
		{Role: RoleFunctionPtr},
		{Role: RoleType},
		{Role: RoleFlags},
	}},
	{ID: MapCreate, Symbol: "nanotube_map_create", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RoleMapID},
		{Role: RoleType},
		{Role: RoleLength},
		{Role: RoleLength},
	}},
	{ID: MapLookup, Symbol: "nanotube_map_lookup", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleMapID},
		{Role: RoleKey, ModRef: MustRef, Size: sz(3, SizeBytes)},
		{Role: RoleLength},
		{Role: RoleLength, ModRef: MustMod},
	}},
	{ID: MapOp, Symbol: "nanotube_map_op", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleMapID},
		{Role: RoleType},
		{Role: RoleKey, ModRef: MustRef, Size: sz(4, SizeBytes)},
		{Role: RoleLength},
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(9, SizeBytes)},
		{Role: RoleDataOut, ModRef: MustMod, Size: sz(9, SizeBytes)},
		{Role: RoleMask, ModRef: ModRefBoth, Size: sz(9, SizeBits)},
		{Role: RoleOffset},
		{Role: RoleLength},
	}},
	{ID: MapRead, Symbol: "nanotube_map_read", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleMapID},
		{Role: RoleKey, ModRef: MustRef, Size: sz(3, SizeBytes)},
		{Role: RoleLength},
		{Role: RoleDataOut, ModRef: MustMod, Size: sz(5, SizeBytes)},
		{Role: RoleLength},
	}},
	{ID: MapWrite, Symbol: "nanotube_map_write", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleMapID},
		{Role: RoleKey, ModRef: MustRef, Size: sz(3, SizeBytes)},
		{Role: RoleLength},
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(5, SizeBytes)},
		{Role: RoleLength},
	}},
	{ID: MapInsert, Symbol: "nanotube_map_insert", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleMapID},
		{Role: RoleKey, ModRef: MustRef, Size: sz(3, SizeBytes)},
		{Role: RoleLength},
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(5, SizeBytes)},
		{Role: RoleLength},
	}},
	{ID: MapUpdate, Symbol: "nanotube_map_update", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleMapID},
		{Role: RoleKey, ModRef: MustRef, Size: sz(3, SizeBytes)},
		{Role: RoleLength},
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(5, SizeBytes)},
		{Role: RoleLength},
	}},
	{ID: MapRemove, Symbol: "nanotube_map_remove", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleMapID},
		{Role: RoleKey, ModRef: MustRef, Size: sz(3, SizeBytes)},
		{Role: RoleLength},
	}},
	{ID: MapGetID, Symbol: "nanotube_map_get_id", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RoleMapHandle, ModRef: MustRef},
	}},
	{ID: MapProcessCapsule, Symbol: "nanotube_map_process_capsule", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleContext, ModRef: MustRef},
		{Role: RoleMapID},
		{Role: RolePacket, ModRef: ModRefBoth},
	}},
	{ID: PacketRead, Symbol: "nanotube_packet_read", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustRef},
		{Role: RoleDataOut, ModRef: MustMod, Size: sz(3, SizeBytes)},
		{Role: RoleOffset},
		{Role: RoleLength},
	}},
	{ID: PacketWrite, Symbol: "nanotube_packet_write", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustMod},
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(3, SizeBytes)},
		{Role: RoleOffset},
		{Role: RoleLength},
	}},
	{ID: PacketWriteMasked, Symbol: "nanotube_packet_write_masked", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustMod},
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(4, SizeBytes)},
		{Role: RoleMask, ModRef: MustRef, Size: sz(4, SizeBits)},
		{Role: RoleOffset},
		{Role: RoleLength},
	}},
	{ID: PacketBoundedLength, Symbol: "nanotube_packet_bounded_length", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustRef},
		{Role: RoleLength},
	}},
	{ID: PacketGetPort, Symbol: "nanotube_packet_get_port", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustRef},
	}},
	{ID: PacketSetPort, Symbol: "nanotube_packet_set_port", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustMod},
		{Role: RoleFlags},
	}},
	{ID: PacketData, Symbol: "nanotube_packet_data", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustRef},
	}},
	{ID: PacketEnd, Symbol: "nanotube_packet_end", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustRef},
	}},
	{ID: PacketMeta, Symbol: "nanotube_packet_meta", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustRef},
	}},
	{ID: PacketResize, Symbol: "nanotube_packet_resize", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustMod},
		{Role: RoleOffset},
		{Role: RoleOffset},
	}},
	{ID: PacketResizeIngress, Symbol: "nanotube_packet_resize_ingress", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustMod},
		{Role: RoleOffset},
		{Role: RoleLength},
		{Role: RoleLength},
	}},
	{ID: PacketResizeEgress, Symbol: "nanotube_packet_resize_egress", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustMod},
		{Role: RoleOffset},
		{Role: RoleLength},
		{Role: RoleLength},
	}},
	{ID: PacketDrop, Symbol: "nanotube_packet_drop", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustMod},
	}},
	{ID: PacketEdit, Symbol: "nanotube_packet_edit", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RolePacket, ModRef: ModRefBoth},
	}},
	{ID: PacketIsEOP, Symbol: "nanotube_packet_is_eop", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustRef},
	}},
	{ID: MergeDataMask, Symbol: "nanotube_merge_data_mask", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RoleDataOut, ModRef: ModRefBoth, Size: sz(5, SizeBytes)},
		{Role: RoleMask, ModRef: ModRefBoth, Size: sz(5, SizeBits)},
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(5, SizeBytes)},
		{Role: RoleMask, ModRef: MustRef, Size: sz(5, SizeBits)},
		{Role: RoleOffset},
		{Role: RoleLength},
	}},
	{ID: GetTimeNs, Symbol: "nanotube_get_time_ns", FMRB: OnlyAccessesInaccessibleMem},
	{ID: DebugTrace, Symbol: "nanotube_debug_trace", FMRB: OnlyAccessesInaccessibleMem},
	{ID: Malloc, Symbol: "nanotube_malloc", FMRB: OnlyAccessesInaccessibleMem, Args: []Arg{
		{Role: RoleLength},
	}},
	{ID: CapsuleClassify, Symbol: "nanotube_capsule_classify", FMRB: OnlyAccessesInaccessibleOrArgMem, Args: []Arg{
		{Role: RolePacket, ModRef: MustRef},
	}},
	// Host memory intrinsics carry an argument contract too, so the
	// alias helper's size-argument links cover memcpy/memset accesses
	// the same way they cover the Nanotube calls. The symbols here are
	// the unmangled prefixes; classification matches the mangled names
	// by prefix, the descriptor is then found by ID.
	{ID: LLVMMemcpy, Symbol: "llvm.memcpy", FMRB: OnlyAccessesArgumentPointees, Args: []Arg{
		{Role: RoleDataOut, ModRef: MustMod, Size: sz(2, SizeBytes)},
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(2, SizeBytes)},
		{Role: RoleLength},
	}},
	{ID: LLVMMemset, Symbol: "llvm.memset", FMRB: OnlyAccessesArgumentPointees, Args: []Arg{
		{Role: RoleDataOut, ModRef: MustMod, Size: sz(2, SizeBytes)},
		{Role: RoleFlags},
		{Role: RoleLength},
	}},
	{ID: LLVMMemcmp, Symbol: "llvm.memcmp", FMRB: OnlyReadsArgumentPointees, Args: []Arg{
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(2, SizeBytes)},
		{Role: RoleDataIn, ModRef: MustRef, Size: sz(2, SizeBytes)},
		{Role: RoleLength},
	}},
}

var (
	bySymbol = map[string]*Descriptor{}
	byID     = map[ID]*Descriptor{}
)

func init() {
	for i := range table {
		d := &table[i]
		bySymbol[d.Symbol] = d
		byID[d.ID] = d
	}
}

// Lookup returns the descriptor for id, or nil for ids that carry no
// argument contract (none, and the llvm_* tags other than memcpy,
// memset and memcmp).
func Lookup(id ID) *Descriptor { return byID[id] }

// LookupSymbol returns the descriptor whose Symbol matches name, or nil
// if name is not a recognized Nanotube intrinsic.
func LookupSymbol(name string) *Descriptor { return bySymbol[name] }
