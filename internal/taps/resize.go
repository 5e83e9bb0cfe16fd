// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package taps

// ResizeReq is one packet edit: delete delete_length bytes at
// write_offset, then insert insert_length fresh (zero) bytes at the
// same position. The inserted bytes are placeholders a later write
// fills in; the tap pair only makes room for them.
type ResizeReq struct {
	WriteOffset  uint16
	DeleteLength uint16
	InsertLength uint16
}

// ResizeCword is the per-bus-word control word the ingress tap hands
// the egress tap. It fully determines the egress behaviour for the
// word it accompanies:
//
//   - WordLength is the unshifted (input-side) valid byte count.
//   - PacketRot is the index of the first kept tail byte within the
//     input word; bytes between the kept head and PacketRot are the
//     deleted range's share of this word.
//   - OutputInsertStart/OutputInsertEnd delimit the fresh-byte range
//     within this word's output contribution (head, then inserted
//     zeros, then rotated tail).
//   - CarriedInsertStart/CarriedInsertEnd are the part of the insert
//     range that lands past the current output word boundary, relative
//     to the next output word.
//   - SelectCarried is set when the output word in progress already
//     holds bytes carried from earlier words.
//   - Push1/Push2 report one/at-least-two output words completing on
//     this input word.
//   - EOP marks the input word that ends the packet.
type ResizeCword struct {
	PacketRot          uint16
	OutputInsertStart  uint16
	OutputInsertEnd    uint16
	CarriedInsertStart uint16
	CarriedInsertEnd   uint16
	SelectCarried      uint8
	Push1              uint8
	Push2              uint8
	EOP                uint8
	WordLength         uint16
}

// ResizeIngressState holds the in-flight edit plan across the words of
// one packet. The request is latched on the packet's first word, so
// the caller's request lines may move mid-packet without effect.
type ResizeIngressState struct {
	Req        ResizeReq
	HaveReq    uint8
	InOffset   uint16 // offset of the next input word's first byte
	OutFill    uint16 // output word fill level, mirrors the egress
	InsertDone uint8
}

// PacketResizeIngressTap consumes one input word and emits the control
// word describing the edit's effect on it.
func (f *Format) PacketResizeIngressTap(cw *ResizeCword,
	state *ResizeIngressState, word []byte, req *ResizeReq,
) {
	f.checkWord(word)
	if state.HaveReq == 0 {
		state.Req = *req
		state.HaveReq = 1
	}
	r := state.Req
	w := uint16(f.DataBytes)
	wl := uint16(f.WordLength(word))
	eop := f.EOP(word)

	head := clampU16(r.WriteOffset-state.InOffset, wl)
	if r.WriteOffset < state.InOffset {
		head = 0
	}
	tail := clampU16(r.WriteOffset+r.DeleteLength-state.InOffset, wl)
	if r.WriteOffset+r.DeleteLength < state.InOffset {
		tail = 0
	}
	if tail < head {
		tail = head
	}

	// The insertion anchors on the word containing write_offset, or on
	// the EOP word when the offset lies at or past the packet's end.
	var ins uint16
	if state.InsertDone == 0 {
		anchored := r.WriteOffset >= state.InOffset && r.WriteOffset < state.InOffset+wl
		if anchored || (eop && r.WriteOffset >= state.InOffset+wl) {
			ins = r.InsertLength
			state.InsertDone = 1
		}
	}

	contribution := head + ins + (wl - tail)

	*cw = ResizeCword{
		PacketRot:         tail,
		OutputInsertStart: head,
		OutputInsertEnd:   head + ins,
		WordLength:        wl,
	}
	if state.OutFill > 0 {
		cw.SelectCarried = 1
	}
	if eop {
		cw.EOP = 1
	}

	// Completed output words and the carried share of the insert range.
	pushed := (state.OutFill + contribution) / w
	if pushed >= 1 {
		cw.Push1 = 1
	}
	if pushed >= 2 {
		cw.Push2 = 1
	}
	if ins > 0 && pushed > 0 {
		insStart := state.OutFill + head
		insEnd := insStart + ins
		boundary := pushed * w
		if insEnd > boundary {
			carried := insStart
			if carried < boundary {
				carried = boundary
			}
			cw.CarriedInsertStart = carried - boundary
			cw.CarriedInsertEnd = insEnd - boundary
		}
	}

	state.OutFill = (state.OutFill + contribution) % w
	state.InOffset += wl
	if eop {
		*state = ResizeIngressState{}
	}
}

func clampU16(v, max uint16) uint16 {
	// v may have wrapped below zero; callers check that case after the
	// call and replace the clamped result with 0.
	if v > max {
		return max
	}
	return v
}

// ResizeEgressState carries the egress tap's output accumulation.
type ResizeEgressState struct {
	fill    []byte
	fillLen uint16
	outPos  uint32 // total output bytes emitted, including fill
	done    bool
}

// PacketResizeEgressTap consumes one (control word, input word) pair
// plus the edited packet's new total length and emits the rewritten
// output words that complete on this input word. inputConsumed reports
// that the input word has been fully absorbed (always true for this
// model, which widens its output port instead of stalling);
// packetValid is set once the packet's final output word has been
// produced.
func (f *Format) PacketResizeEgressTap(state *ResizeEgressState,
	cw *ResizeCword, word []byte, newLength uint16,
) (out [][]byte, inputConsumed, packetValid bool) {
	f.checkWord(word)
	w := uint16(f.DataBytes)
	if state.fill == nil {
		state.fill = make([]byte, f.DataBytes)
	}
	data := f.Data(word)

	emit := func(b byte) {
		state.fill[state.fillLen] = b
		state.fillLen++
		state.outPos++
		if state.fillLen == w {
			out = append(out, state.flush(f, newLength, &packetValid))
		}
	}

	for i := uint16(0); i < cw.OutputInsertStart; i++ {
		emit(data[i])
	}
	for i := cw.OutputInsertStart; i < cw.OutputInsertEnd; i++ {
		emit(0)
	}
	for i := cw.PacketRot; i < cw.WordLength; i++ {
		emit(data[i])
	}

	if cw.EOP != 0 && !state.done {
		if state.fillLen > 0 || state.outPos == 0 {
			out = append(out, state.flush(f, newLength, &packetValid))
		}
	}
	if cw.EOP != 0 {
		*state = ResizeEgressState{}
	}
	return out, true, packetValid
}

// flush turns the current fill buffer into an outgoing word, marking
// it EOP when it holds the packet's final byte.
func (s *ResizeEgressState) flush(f *Format, newLength uint16, packetValid *bool) []byte {
	word := f.NewWord()
	copy(f.Data(word), s.fill[:s.fillLen])
	if s.outPos >= uint32(newLength) {
		f.SetEOP(word, int(s.fillLen))
		s.done = true
		*packetValid = true
	} else {
		f.ClearEOP(word)
	}
	for i := range s.fill {
		s.fill[i] = 0
	}
	s.fillLen = 0
	return word
}
