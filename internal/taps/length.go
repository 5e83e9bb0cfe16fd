// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package taps

// PacketLengthReq asks for the packet's length, capped at max_length.
type PacketLengthReq struct {
	Valid     uint8
	MaxLength uint16
}

// PacketLengthResp carries min(packet length, req.max_length).
type PacketLengthResp struct {
	Valid        uint8
	ResultLength uint16
}

// PacketLengthState accumulates the observed length across bus words.
type PacketLengthState struct {
	PacketLength uint16
	Done         uint8
}

// PacketLengthTap consumes one bus word, adding its valid data bytes to
// the running length. The response fires on the EOP word when a request
// is pending; without a pending request the length is simply discarded
// at the packet boundary.
func (f *Format) PacketLengthTap(resp *PacketLengthResp,
	state *PacketLengthState, word []byte, req *PacketLengthReq,
) {
	f.checkWord(word)
	resp.Valid = 0
	resp.ResultLength = 0

	state.PacketLength += uint16(f.WordLength(word))
	if !f.EOP(word) {
		return
	}
	if req.Valid != 0 && state.Done == 0 {
		length := state.PacketLength
		if length > req.MaxLength {
			length = req.MaxLength
		}
		resp.Valid = 1
		resp.ResultLength = length
	}
	*state = PacketLengthState{}
}
