package dma

// HDMA implements the CGB general-purpose and HBlank VRAM DMA controller
// (FF51-FF55). General-purpose transfers complete in one lump; HBlank
// transfers copy one 16-byte block each time the PPU enters mode 0 and
// leave the CPU running in between.
type HDMA struct {
	srcHi, srcLo byte
	dstHi, dstLo byte

	active          bool // HBlank-paced transfer in progress
	canceled        bool // last FF55 write cancelled an active HBlank transfer
	blocksRemaining byte
	cursor          uint16 // offset from the transfer's starting source/dest
	srcBase, dstBase uint16
}

func NewHDMA() *HDMA { return &HDMA{} }

func (h *HDMA) SetHDMA1(v byte) { h.srcHi = v }
func (h *HDMA) SetHDMA2(v byte) { h.srcLo = v &^ 0x0F }
func (h *HDMA) SetHDMA3(v byte) { h.dstHi = v & 0x1F }
func (h *HDMA) SetHDMA4(v byte) { h.dstLo = v &^ 0x0F }

func (h *HDMA) source() uint16 { return uint16(h.srcHi)<<8 | uint16(h.srcLo) }
func (h *HDMA) dest() uint16 {
	return 0x8000 | ((uint16(h.dstHi)<<8 | uint16(h.dstLo)) & 0x1FF0)
}

// WriteControl handles a write to FF55.
//
// Writing with bit 7 clear while an HBlank transfer is active cancels it;
// the remaining block count is preserved so StatusFF55 keeps reporting it
// with bit 7 set until the next transfer is started.
// Writing with bit 7 clear otherwise requests a general-purpose transfer:
// the caller must copy lengthBytes bytes from src to dst immediately
// (startGDMA is true) and account for the DMA's M-cycle cost itself.
// Writing with bit 7 set starts an HBlank-paced transfer: Active() becomes
// true and the caller should invoke StepBlock once per HBlank entry.
func (h *HDMA) WriteControl(value byte) (src, dst uint16, lengthBytes int, startGDMA bool) {
	if h.active && value&0x80 == 0 {
		h.active = false
		h.canceled = true
		return 0, 0, 0, false
	}

	length := int(value&0x7F) + 1
	s, d := h.source(), h.dest()

	if value&0x80 == 0 {
		h.canceled = false
		return s, d, length * 16, true
	}

	h.active = true
	h.canceled = false
	h.blocksRemaining = byte(length)
	h.cursor = 0
	h.srcBase, h.dstBase = s, d
	return s, d, length * 16, false
}

func (h *HDMA) Active() bool { return h.active }

// StatusFF55 returns the value read back from FF55: bit 7 set plus the
// remaining block count (minus one) while an HBlank transfer is active or
// was just cancelled, 0xFF once it has completed normally or none has ever
// run.
func (h *HDMA) StatusFF55() byte {
	if h.active || h.canceled {
		return 0x80 | (h.blocksRemaining - 1)
	}
	return 0xFF
}

// StepBlock copies the next 16-byte block, called once per HBlank entry
// while a transfer is active. Grounded on the original HBlank DMA stepping
// (one block per HBlank), simplified here to a single loop copy per block
// rather than a byte-by-byte interleave with PPU/timer ticking: HDMA only
// ever runs during HBlank, when the CPU cannot observe VRAM mid-copy, so the
// two are indistinguishable to software.
func (h *HDMA) StepBlock(read func(uint16) byte, write func(uint16, byte)) (bytesCopied int) {
	if !h.active {
		return 0
	}
	for i := 0; i < 16; i++ {
		write(h.dstBase+h.cursor, read(h.srcBase+h.cursor))
		h.cursor++
	}
	h.blocksRemaining--
	if h.blocksRemaining == 0 {
		h.active = false
	}
	return 16
}

type HDMAState struct {
	SrcHi, SrcLo, DstHi, DstLo byte
	Active                     bool
	Canceled                   bool
	BlocksRemaining            byte
	Cursor                     uint16
	SrcBase, DstBase           uint16
}

func (h *HDMA) SaveState() HDMAState {
	return HDMAState{
		SrcHi: h.srcHi, SrcLo: h.srcLo, DstHi: h.dstHi, DstLo: h.dstLo,
		Active: h.active, Canceled: h.canceled, BlocksRemaining: h.blocksRemaining,
		Cursor: h.cursor, SrcBase: h.srcBase, DstBase: h.dstBase,
	}
}

func (h *HDMA) LoadState(s HDMAState) {
	h.srcHi, h.srcLo, h.dstHi, h.dstLo = s.SrcHi, s.SrcLo, s.DstHi, s.DstLo
	h.active, h.canceled, h.blocksRemaining = s.Active, s.Canceled, s.BlocksRemaining
	h.cursor, h.srcBase, h.dstBase = s.Cursor, s.SrcBase, s.DstBase
}
