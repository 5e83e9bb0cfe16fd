// Copyright (C) 2024, Advanced Micro Devices, Inc. All rights reserved.
// SPDX-License-Identifier: MIT

package taps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// packetize splits payload into bus words of f's format, marking the
// final word EOP with the right empty count.
func packetize(t *testing.T, f *Format, payload []byte) [][]byte {
	t.Helper()
	var words [][]byte
	for off := 0; ; off += f.DataBytes {
		w := f.NewWord()
		n := copy(f.Data(w), payload[off:])
		if off+n >= len(payload) {
			f.SetEOP(w, n)
			words = append(words, w)
			return words
		}
		f.ClearEOP(w)
		words = append(words, w)
	}
}

// reassemble concatenates the valid data bytes of a word stream.
func reassemble(f *Format, words [][]byte) []byte {
	var out []byte
	for _, w := range words {
		out = append(out, f.Data(w)[:f.WordLength(w)]...)
	}
	return out
}

func testPayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + 3)
	}
	return p
}

func TestFormatGeometry(t *testing.T) {
	simple, err := FormatFor(SimpleBus)
	require.NoError(t, err)
	assert.Equal(t, 65, simple.TotalBytes())

	softhub, err := FormatFor(SofthubBus)
	require.NoError(t, err)
	assert.Equal(t, 64+28+17, softhub.TotalBytes())

	_, err = FormatFor(BusID(99))
	assert.Error(t, err)
}

func TestSimpleControlByte(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	w := f.NewWord()
	assert.False(t, f.EOP(w))
	assert.Equal(t, 64, f.WordLength(w))

	f.SetEOP(w, 10)
	assert.True(t, f.EOP(w))
	assert.Equal(t, 54, f.EmptyBytes(w))
	assert.Equal(t, 10, f.WordLength(w))
	assert.Equal(t, byte(0x80|54), w[64])

	f.ClearEOP(w)
	assert.False(t, f.EOP(w))
}

func TestSofthubKeepAndLast(t *testing.T) {
	f, _ := FormatFor(SofthubBus)
	w := f.NewWord()
	assert.False(t, f.EOP(w))
	assert.Equal(t, 64, f.WordLength(w))

	f.SetEOP(w, 3)
	assert.True(t, f.EOP(w))
	assert.Equal(t, 3, f.WordLength(w))
	// TKEEP holds 3 set bits in its lowest byte, TLAST is asserted.
	assert.Equal(t, byte(0x07), w[64+28])
	assert.Equal(t, byte(1), w[f.TotalBytes()-1])
}

func TestSofthubPortBitLayout(t *testing.T) {
	f, _ := FormatFor(SofthubBus)
	w := f.NewWord()
	f.SetPort(w, 0x1234)
	assert.Equal(t, uint16(0x1234), f.Port(w))

	// The route field straddles header bytes 0..2 with masks
	// 0x80/0xff/0x7f: bit 0 of the port lands in bit 7 of byte 0.
	h := w[64:]
	assert.Equal(t, byte(0x00), h[0]&0x80)            // port bit 0 = 0
	assert.Equal(t, byte((0x1234>>1)&0xff), h[1])     // port bits 1..8
	assert.Equal(t, byte(0x1234>>9)&0x7f, h[2]&0x7f)  // port bits 9..15
}

func TestSofthubCapsuleLength(t *testing.T) {
	f, _ := FormatFor(SofthubBus)
	w := f.NewWord()
	f.SetCapsuleLength(w, 0x2abc)
	assert.Equal(t, uint16(0x2abc), f.CapsuleLength(w))
	assert.Equal(t, byte(0xbc), w[64+3])
	assert.Equal(t, byte(0x2a), w[64+4]&0x3f)
}

func TestX3RXPortField(t *testing.T) {
	f, _ := FormatFor(X3RXBus)
	w := f.NewWord()
	f.SetPort(w, 0xbeef)
	assert.Equal(t, uint16(0xbeef), f.Port(w))
}

func runReadTap(t *testing.T, f *Format, payload []byte, off, length uint16) (PacketReadResp, []byte) {
	t.Helper()
	words := packetize(t, f, payload)
	buf := make([]byte, length)
	state := PacketReadState{}
	req := PacketReadReq{Valid: 1, ReadOffset: off, ReadLength: length}
	var final PacketReadResp
	for _, w := range words {
		var resp PacketReadResp
		f.PacketReadTap(&resp, buf, length, 16, &state, w, &req)
		if resp.Valid != 0 {
			require.Zero(t, final.Valid, "response fired twice")
			final = resp
		}
	}
	require.NotZero(t, final.Valid, "no response produced")
	return final, buf
}

func TestReadTapWithinOneWord(t *testing.T) {
	for _, id := range []BusID{SimpleBus, SofthubBus, X3RXBus} {
		f, _ := FormatFor(id)
		payload := testPayload(40)
		resp, buf := runReadTap(t, f, payload, 16, 2)
		assert.Equal(t, uint16(2), resp.ResultLength)
		assert.Equal(t, payload[16:18], buf)
	}
}

func TestReadTapAcrossWords(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	payload := testPayload(200)
	resp, buf := runReadTap(t, f, payload, 60, 20)
	assert.Equal(t, uint16(20), resp.ResultLength)
	assert.Equal(t, payload[60:80], buf)
}

func TestReadTapCappedAtPacketEnd(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	payload := testPayload(70)
	resp, buf := runReadTap(t, f, payload, 65, 16)
	assert.Equal(t, uint16(5), resp.ResultLength)
	assert.Equal(t, payload[65:70], buf[:5])
}

func TestReadTapOffsetBeyondPacket(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	payload := testPayload(32)
	resp, _ := runReadTap(t, f, payload, 100, 4)
	assert.Equal(t, uint16(0), resp.ResultLength)
}

func TestReadTapStateRearmsPerPacket(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	state := PacketReadState{}
	req := PacketReadReq{Valid: 1, ReadOffset: 0, ReadLength: 4}
	buf := make([]byte, 4)

	for packet := 0; packet < 2; packet++ {
		payload := testPayload(30 + packet)
		fired := 0
		for _, w := range packetize(t, f, payload) {
			var resp PacketReadResp
			f.PacketReadTap(&resp, buf, 4, 16, &state, w, &req)
			fired += int(resp.Valid)
		}
		assert.Equal(t, 1, fired, "packet %d", packet)
		assert.Equal(t, payload[:4], buf)
	}
}

func TestWriteTapMaskedAcrossWords(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	payload := testPayload(130)
	words := packetize(t, f, payload)

	// Overlay 8 bytes at offset 60 with every second byte masked off.
	reqData := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	mask := []byte{0b01010101}
	state := PacketWriteState{}
	req := PacketWriteReq{Valid: 1, WriteOffset: 60, WriteLength: 8}
	fired := 0
	for _, w := range words {
		var resp PacketWriteResp
		f.PacketWriteTap(&resp, &state, w, &req, reqData, mask)
		if resp.Valid != 0 {
			fired++
			assert.Equal(t, uint16(8), resp.ResultLength)
		}
	}
	assert.Equal(t, 1, fired)

	want := append([]byte(nil), payload...)
	for i := 0; i < 8; i++ {
		if i%2 == 0 {
			want[60+i] = reqData[i]
		}
	}
	assert.Equal(t, want, reassemble(f, words))
}

func TestLengthTap(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	payload := testPayload(150)
	state := PacketLengthState{}
	req := PacketLengthReq{Valid: 1, MaxLength: 1000}
	var got PacketLengthResp
	for _, w := range packetize(t, f, payload) {
		var resp PacketLengthResp
		f.PacketLengthTap(&resp, &state, w, &req)
		if resp.Valid != 0 {
			got = resp
		}
	}
	require.NotZero(t, got.Valid)
	assert.Equal(t, uint16(150), got.ResultLength)

	// A capped request reports max_length instead.
	req.MaxLength = 64
	for _, w := range packetize(t, f, payload) {
		var resp PacketLengthResp
		f.PacketLengthTap(&resp, &state, w, &req)
		if resp.Valid != 0 {
			got = resp
		}
	}
	assert.Equal(t, uint16(64), got.ResultLength)
}

func TestIsEOPTap(t *testing.T) {
	f, _ := FormatFor(SofthubBus)
	words := packetize(t, f, testPayload(100))
	assert.False(t, f.IsEOPTap(words[0]))
	assert.True(t, f.IsEOPTap(words[1]))
}

// resizeReference computes the edited packet: delete, then insert
// zeros, at write_offset.
func resizeReference(payload []byte, req ResizeReq) []byte {
	wo := int(req.WriteOffset)
	if wo > len(payload) {
		wo = len(payload)
	}
	delEnd := wo + int(req.DeleteLength)
	if delEnd > len(payload) {
		delEnd = len(payload)
	}
	out := append([]byte(nil), payload[:wo]...)
	out = append(out, make([]byte, req.InsertLength)...)
	return append(out, payload[delEnd:]...)
}

func runResize(t *testing.T, f *Format, payload []byte, req ResizeReq) []byte {
	t.Helper()
	want := resizeReference(payload, req)
	newLength := uint16(len(want))

	inState := ResizeIngressState{}
	egState := ResizeEgressState{}
	var outWords [][]byte
	sawValid := false
	for _, w := range packetize(t, f, payload) {
		var cw ResizeCword
		f.PacketResizeIngressTap(&cw, &inState, w, &req)
		words, consumed, valid := f.PacketResizeEgressTap(&egState, &cw, w, newLength)
		assert.True(t, consumed)
		outWords = append(outWords, words...)
		sawValid = sawValid || valid
	}
	require.True(t, sawValid, "egress never marked the packet complete")
	got := reassemble(f, outWords)
	require.Equal(t, want, got)
	return got
}

func TestResizeDeleteWithinWord(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	runResize(t, f, testPayload(100), ResizeReq{WriteOffset: 10, DeleteLength: 4})
}

func TestResizeInsertWithinWord(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	runResize(t, f, testPayload(100), ResizeReq{WriteOffset: 8, InsertLength: 4})
}

func TestResizeReplaceAcrossWordBoundary(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	runResize(t, f, testPayload(200),
		ResizeReq{WriteOffset: 60, DeleteLength: 10, InsertLength: 6})
}

func TestResizeGrowPastWordBoundary(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	// 60 bytes in one word grow past a word boundary.
	runResize(t, f, testPayload(60), ResizeReq{WriteOffset: 30, InsertLength: 40})
}

func TestResizeInsertAtPacketEnd(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	runResize(t, f, testPayload(70), ResizeReq{WriteOffset: 70, InsertLength: 8})
}

func TestResizeDeleteAlmostEverything(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	payload := testPayload(50)
	got := runResize(t, f, payload, ResizeReq{WriteOffset: 0, DeleteLength: 49})
	assert.Equal(t, payload[49:], got)
}

func TestResizeShrinkLosesWord(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	// 130 bytes (3 words) shrink to 66 (2 words).
	runResize(t, f, testPayload(130), ResizeReq{WriteOffset: 0, DeleteLength: 64})
}

func TestResizeSofthubFormat(t *testing.T) {
	f, _ := FormatFor(SofthubBus)
	runResize(t, f, testPayload(150),
		ResizeReq{WriteOffset: 64, DeleteLength: 8, InsertLength: 16})
}

func TestResizeDeterminism(t *testing.T) {
	f, _ := FormatFor(SimpleBus)
	req := ResizeReq{WriteOffset: 20, DeleteLength: 5, InsertLength: 9}
	a := runResize(t, f, testPayload(180), req)
	b := runResize(t, f, testPayload(180), req)
	assert.Equal(t, a, b)
}
