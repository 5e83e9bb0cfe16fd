// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package taps

// PacketReadReq asks the read tap for read_length packet bytes starting
// at read_offset. Valid is level-sensitive: the caller holds the same
// request across every word of the packet it applies to.
type PacketReadReq struct {
	Valid      uint8
	ReadOffset uint16
	ReadLength uint16
}

// PacketReadResp is asserted on the bus word that completes the
// request. ResultLength is capped by the smaller of the requested
// length and the bytes actually present past read_offset.
type PacketReadResp struct {
	Valid        uint8
	ResultLength uint16
}

// PacketReadState is the per-request state carried across bus words.
type PacketReadState struct {
	PacketLength uint16 // bytes seen so far in this packet
	PacketOffset uint16 // offset of the next word's first byte
	RotateAmount uint16 // read_offset modulo the data width
	ResultOffset uint16 // result bytes gathered so far
	Done         uint8  // response already produced for this packet
	DataEOPSeen  uint8
}

// PacketReadTap consumes one bus word and gathers the bytes the request
// covers into resultBuffer. The response fires exactly once per
// (request, packet) pair: on the word where the requested range is
// complete, or on the EOP word when the packet ends short.
//
// resultBufferLength bounds the caller's buffer; resultBufferIndexBits
// is part of the generated-code ABI (the index port width) and does not
// affect the byte semantics here.
func (f *Format) PacketReadTap(resp *PacketReadResp, resultBuffer []byte,
	resultBufferLength uint16, resultBufferIndexBits uint8,
	state *PacketReadState, word []byte, req *PacketReadReq,
) {
	f.checkWord(word)
	resp.Valid = 0
	resp.ResultLength = 0

	data := f.Data(word)
	wordLen := uint16(f.WordLength(word))
	eop := f.EOP(word)

	if req.Valid != 0 && state.Done == 0 {
		if state.PacketOffset == 0 {
			state.RotateAmount = req.ReadOffset % uint16(f.DataBytes)
		}
		reqEnd := req.ReadOffset + req.ReadLength
		for i := uint16(0); i < wordLen; i++ {
			pos := state.PacketOffset + i
			if pos < req.ReadOffset || pos >= reqEnd {
				continue
			}
			idx := pos - req.ReadOffset
			if idx >= resultBufferLength {
				break
			}
			resultBuffer[idx] = data[i]
			if idx+1 > state.ResultOffset {
				state.ResultOffset = idx + 1
			}
		}
		if state.PacketOffset+wordLen >= reqEnd || eop {
			resp.Valid = 1
			length := req.ReadLength
			packetEnd := state.PacketOffset + wordLen
			if packetEnd < reqEnd {
				if packetEnd > req.ReadOffset {
					length = packetEnd - req.ReadOffset
				} else {
					length = 0
				}
			}
			if length > resultBufferLength {
				length = resultBufferLength
			}
			resp.ResultLength = length
			state.Done = 1
		}
	}

	state.PacketOffset += wordLen
	state.PacketLength += wordLen
	state.DataEOPSeen = 0
	if eop {
		// The request is complete by now in every case; rearm for the
		// next packet.
		*state = PacketReadState{DataEOPSeen: 1}
	}
}
