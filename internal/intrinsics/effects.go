// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package intrinsics

// FMRB is the function memory-reference behavior: a coarse summary of
// what memory a whole call can touch.
type FMRB int

const (
	DoesNotAccess FMRB = iota
	OnlyReadsArgumentPointees
	OnlyAccessesArgumentPointees
	OnlyAccessesInaccessibleMem
	OnlyAccessesInaccessibleOrArgMem
	UnknownFMRB
)

// ModRef is the per-argument modify/reference pattern.
type ModRef int

const (
	NoModRef ModRef = iota
	MustRef
	MustMod
	MustModRef
	ModRefBoth
)

// ArgRole names what an argument of a recognized intrinsic call means;
// the registry derives mod/ref bits and size-argument links from it.
type ArgRole int

const (
	RoleNone ArgRole = iota
	RoleContext
	RoleChannelID
	RoleChannelHandle
	RoleMapID
	RoleMapHandle
	RolePacket
	RoleDataIn
	RoleDataOut
	RoleMask
	RoleKey
	RoleOffset
	RoleLength
	RoleType
	RoleFlags
	RoleNameString
	RoleFunctionPtr
	RoleInfoArea
	RoleInfoAreaSize
)

// SizeUnit is the unit a size-argument link is expressed in.
type SizeUnit int

const (
	SizeBytes SizeUnit = iota
	SizeBits
)

// SizeLink tells the alias helper which other argument encodes a
// given argument's length, and in what unit.
type SizeLink struct {
	ArgIndex int
	Unit     SizeUnit
}

// Arg describes one formal argument of an intrinsic's call contract.
type Arg struct {
	Role ArgRole
	// ModRef, defaulted from Role (see defaultModRef) unless explicitly
	// overridden.
	ModRef ModRef
	// Size, if set, names the argument that carries this argument's
	// accessed length (e.g. a data buffer's size argument).
	Size *SizeLink
}

// Descriptor is one full row of the Intrinsics.def-equivalent table:
// the per-intrinsic memory-effect contract.
type Descriptor struct {
	ID     ID
	Symbol string
	FMRB   FMRB
	Args   []Arg
}
