// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package taps

// PacketWriteReq asks the write tap to overlay write_length bytes at
// write_offset, gated by a per-byte mask. Like the read request it is
// held level-stable across the packet's words.
type PacketWriteReq struct {
	Valid       uint8
	WriteOffset uint16
	WriteLength uint16
}

// PacketWriteResp fires on the word that completes the write.
type PacketWriteResp struct {
	Valid        uint8
	ResultLength uint16
}

// PacketWriteState mirrors the read tap's state record.
type PacketWriteState struct {
	PacketLength uint16
	PacketOffset uint16
	RotateAmount uint16
	ResultOffset uint16
	Done         uint8
	DataEOPSeen  uint8
}

// PacketWriteTap rewrites one bus word in place. Request bytes come
// from reqData; mask holds one bit per request byte (bit i of byte i/8
// enables reqData[i]). Unmasked bytes keep the packet's content. The
// response reports how many request bytes landed inside the packet.
func (f *Format) PacketWriteTap(resp *PacketWriteResp,
	state *PacketWriteState, word []byte,
	req *PacketWriteReq, reqData []byte, mask []byte,
) {
	f.checkWord(word)
	resp.Valid = 0
	resp.ResultLength = 0

	data := f.Data(word)
	wordLen := uint16(f.WordLength(word))
	eop := f.EOP(word)

	if req.Valid != 0 && state.Done == 0 {
		if state.PacketOffset == 0 {
			state.RotateAmount = req.WriteOffset % uint16(f.DataBytes)
		}
		reqEnd := req.WriteOffset + req.WriteLength
		for i := uint16(0); i < wordLen; i++ {
			pos := state.PacketOffset + i
			if pos < req.WriteOffset || pos >= reqEnd {
				continue
			}
			idx := pos - req.WriteOffset
			if mask[idx/8]&(1<<(idx%8)) != 0 {
				data[i] = reqData[idx]
			}
			if idx+1 > state.ResultOffset {
				state.ResultOffset = idx + 1
			}
		}
		if state.PacketOffset+wordLen >= reqEnd || eop {
			resp.Valid = 1
			length := req.WriteLength
			packetEnd := state.PacketOffset + wordLen
			if packetEnd < reqEnd {
				if packetEnd > req.WriteOffset {
					length = packetEnd - req.WriteOffset
				} else {
					length = 0
				}
			}
			resp.ResultLength = length
			state.Done = 1
		}
	}

	state.PacketOffset += wordLen
	state.PacketLength += wordLen
	state.DataEOPSeen = 0
	if eop {
		*state = PacketWriteState{DataEOPSeen: 1}
	}
}
